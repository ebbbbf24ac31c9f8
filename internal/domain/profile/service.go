package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/realtime"
)

var (
	ErrInvalidUser = errors.New("profile: invalid user")
	ErrInvalidRole = errors.New("profile: invalid role")
)

// Service manages the user directory and presence. Doctors browse patients
// and vice versa; the chat layer joins on the same provider-issued ids.
type Service struct {
	repo      Repository
	publisher realtime.Publisher
	log       zerolog.Logger
}

func NewService(repo Repository, publisher realtime.Publisher, logger zerolog.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, log: logger}
}

// Save creates or updates a profile keyed by the provider subject.
func (s *Service) Save(ctx context.Context, u *User) error {
	if u == nil || strings.TrimSpace(u.ID) == "" || strings.TrimSpace(u.DisplayName) == "" {
		return ErrInvalidUser
	}
	if !ValidRole(u.Role) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, u.Role)
	}
	return s.repo.Upsert(ctx, u)
}

// Get loads one profile.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidUser
	}
	return s.repo.Get(ctx, id)
}

// Directory lists the profiles a user may start a conversation with: doctors
// see patients, patients see doctors, admins see everyone.
func (s *Service) Directory(ctx context.Context, viewerRole string) ([]*User, error) {
	var (
		users []*User
		err   error
	)
	switch viewerRole {
	case RoleDoctor:
		users, err = s.repo.ListByRole(ctx, RolePatient)
	case RolePatient:
		users, err = s.repo.ListByRole(ctx, RoleDoctor)
	case RoleAdmin:
		users, err = s.repo.List(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, viewerRole)
	}
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*User{}
	}
	return users, nil
}

// SetOnline flips the presence flag and broadcasts the change. Called by the
// websocket layer on connect and disconnect.
func (s *Service) SetOnline(ctx context.Context, id string, online bool) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidUser
	}
	if err := s.repo.SetOnline(ctx, id, online); err != nil {
		return fmt.Errorf("set online: %w", err)
	}

	now := time.Now().UTC()
	evt, err := realtime.NewEvent(EventPresence, PresenceTopic, PresencePayload{
		UserID:     id,
		Online:     online,
		LastSeenAt: &now,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("marshal presence event")
		return nil
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn().Err(err).Str("user_id", id).Msg("publish presence event")
	}
	return nil
}
