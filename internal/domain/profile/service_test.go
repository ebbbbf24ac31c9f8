package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/realtime"
)

type mockRepo struct {
	mu    sync.Mutex
	items map[string]*User
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[string]*User)}
}

func (m *mockRepo) Get(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepo) Upsert(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	if prev, ok := m.items[u.ID]; ok {
		cp.Online = prev.Online
		cp.LastSeenAt = prev.LastSeenAt
	}
	m.items[u.ID] = &cp
	return nil
}

func (m *mockRepo) ListByRole(_ context.Context, role string) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*User
	for _, u := range m.items {
		if u.Role == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) List(_ context.Context) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*User
	for _, u := range m.items {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) SetOnline(_ context.Context, id string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.items[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	now := time.Now()
	u.Online = online
	u.LastSeenAt = &now
	return nil
}

func newTestService() (*Service, *mockRepo, *realtime.Bus) {
	repo := newMockRepo()
	bus := realtime.NewBus()
	return NewService(repo, bus, zerolog.Nop()), repo, bus
}

func TestService_Save_Validates(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name string
		user *User
		want error
	}{
		{"missing id", &User{DisplayName: "Dr. Chen", Role: RoleDoctor}, ErrInvalidUser},
		{"missing name", &User{ID: "u1", Role: RoleDoctor}, ErrInvalidUser},
		{"bad role", &User{ID: "u1", DisplayName: "Dr. Chen", Role: "janitor"}, ErrInvalidRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.Save(ctx, tc.user); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if err := svc.Save(ctx, &User{ID: "u1", DisplayName: "Dr. Chen", Role: RoleDoctor}); err != nil {
		t.Errorf("valid user must save: %v", err)
	}
}

func TestService_Directory_FiltersByCounterpartRole(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	repo.items["d1"] = &User{ID: "d1", DisplayName: "Dr. Chen", Role: RoleDoctor}
	repo.items["p1"] = &User{ID: "p1", DisplayName: "Sam Flores", Role: RolePatient}
	repo.items["a1"] = &User{ID: "a1", DisplayName: "Admin", Role: RoleAdmin}

	patients, err := svc.Directory(ctx, RoleDoctor)
	if err != nil {
		t.Fatalf("Directory(doctor): %v", err)
	}
	if len(patients) != 1 || patients[0].ID != "p1" {
		t.Errorf("doctors must see patients, got %+v", patients)
	}

	doctors, err := svc.Directory(ctx, RolePatient)
	if err != nil {
		t.Fatalf("Directory(patient): %v", err)
	}
	if len(doctors) != 1 || doctors[0].ID != "d1" {
		t.Errorf("patients must see doctors, got %+v", doctors)
	}

	everyone, err := svc.Directory(ctx, RoleAdmin)
	if err != nil {
		t.Fatalf("Directory(admin): %v", err)
	}
	if len(everyone) != 3 {
		t.Errorf("admins must see everyone, got %d", len(everyone))
	}

	if _, err := svc.Directory(ctx, "guest"); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestService_SetOnline_PublishesPresence(t *testing.T) {
	svc, repo, bus := newTestService()
	ctx := context.Background()

	repo.items["d1"] = &User{ID: "d1", DisplayName: "Dr. Chen", Role: RoleDoctor}

	var events []realtime.Event
	dispose := bus.Subscribe(PresenceTopic, func(e realtime.Event) {
		events = append(events, e)
	})
	defer dispose()

	if err := svc.SetOnline(ctx, "d1", true); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	if err := svc.SetOnline(ctx, "d1", false); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 presence events, got %d", len(events))
	}
	var p PresencePayload
	if err := json.Unmarshal(events[1].Data, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.UserID != "d1" || p.Online {
		t.Errorf("unexpected payload: %+v", p)
	}
	if p.LastSeenAt == nil {
		t.Error("expected last_seen_at on the offline flip")
	}

	u, _ := repo.Get(ctx, "d1")
	if u.Online {
		t.Error("expected offline in the store")
	}
}
