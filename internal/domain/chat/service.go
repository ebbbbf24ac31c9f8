package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/realtime"
)

// Service owns every write to the messaging data and publishes a realtime
// event for each one. Reads used by live feeds go through it as well so the
// degrade-gracefully policy lives in one place.
type Service struct {
	conversations ConversationRepository
	messages      MessageRepository
	publisher     realtime.Publisher
	log           zerolog.Logger
}

func NewService(conversations ConversationRepository, messages MessageRepository, publisher realtime.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		publisher:     publisher,
		log:           logger,
	}
}

// SendMessage appends a message to the stream and upserts the conversation
// summary. Empty text (after trimming) is a silent no-op. The message row is
// written before the summary so a crash between the two leaves the directory
// under-reporting, never pointing at a message that does not exist. Store
// failures propagate so the caller can restore the user's draft.
func (s *Service) SendMessage(ctx context.Context, key, senderID, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	participants, err := Participants(key)
	if err != nil {
		return nil, err
	}
	if senderID != participants[0] && senderID != participants[1] {
		return nil, ErrNotParticipant
	}

	m := &Message{
		ID:              uuid.New(),
		ConversationKey: key,
		SenderID:        senderID,
		Text:            text,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	last := LastMessage{
		Text:     text,
		SenderID: senderID,
		SentAt:   m.CreatedAt,
		Seen:     false,
	}
	if err := s.conversations.UpdateLastMessage(ctx, key, participants, last); err != nil {
		return nil, fmt.Errorf("update conversation summary: %w", err)
	}

	// Sending ends the sender's typing state. Best effort: the message is
	// already durable, and the flag expires on the debounce timer anyway.
	if err := s.conversations.SetTyping(ctx, key, participants, senderID, false); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("clear typing on send failed")
	}

	s.publish(ctx, EventMessageNew, ConversationTopic(key), m)
	for _, p := range participants {
		s.publish(ctx, EventConversationUpdated, InboxTopic(p), map[string]string{"key": key})
	}
	s.publish(ctx, EventTyping, ConversationTopic(key), TypingPayload{UserID: senderID, IsTyping: false})

	return m, nil
}

// MarkRead flips the conversation summary to seen. Idempotent, and a no-op
// when the conversation does not exist yet.
func (s *Service) MarkRead(ctx context.Context, key string) error {
	participants, err := Participants(key)
	if err != nil {
		return err
	}
	if err := s.conversations.MarkRead(ctx, key); err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	for _, p := range participants {
		s.publish(ctx, EventConversationRead, InboxTopic(p), map[string]string{"key": key})
	}
	return nil
}

// SetTyping merges the typing flag for one participant. Only the two users
// derived from the key may appear in the map.
func (s *Service) SetTyping(ctx context.Context, key, userID string, isTyping bool) error {
	participants, err := Participants(key)
	if err != nil {
		return err
	}
	if userID != participants[0] && userID != participants[1] {
		return ErrNotParticipant
	}
	if err := s.conversations.SetTyping(ctx, key, participants, userID, isTyping); err != nil {
		return fmt.Errorf("set typing: %w", err)
	}
	s.publish(ctx, EventTyping, ConversationTopic(key), TypingPayload{UserID: userID, IsTyping: isTyping})
	return nil
}

// Conversation loads one conversation document.
func (s *Service) Conversation(ctx context.Context, key string) (*Conversation, error) {
	if _, _, err := SplitKey(key); err != nil {
		return nil, err
	}
	return s.conversations.GetByKey(ctx, key)
}

// ListMine returns every conversation the user participates in, most
// recently active first.
func (s *Service) ListMine(ctx context.Context, userID string) ([]*Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidParticipants
	}
	sessions, err := s.conversations.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []*Conversation{}
	}
	return sessions, nil
}

// History returns the full ordered message stream for a key.
func (s *Service) History(ctx context.Context, key string) ([]*Message, error) {
	if _, _, err := SplitKey(key); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	return msgs, nil
}

// HistoryPage returns a window of the stream for paginated REST reads.
func (s *Service) HistoryPage(ctx context.Context, key string, limit, offset int) ([]*Message, int, error) {
	if _, _, err := SplitKey(key); err != nil {
		return nil, 0, err
	}
	return s.messages.ListByKeyPage(ctx, key, limit, offset)
}

// TypingState returns the current typing map for a key. A conversation that
// does not exist yet reads as nobody typing.
func (s *Service) TypingState(ctx context.Context, key string) (map[string]bool, error) {
	if _, _, err := SplitKey(key); err != nil {
		return nil, err
	}
	typing, err := s.conversations.GetTyping(ctx, key)
	if err != nil {
		return map[string]bool{}, nil
	}
	return typing, nil
}

func (s *Service) publish(ctx context.Context, eventType, topic string, payload any) {
	evt, err := realtime.NewEvent(eventType, topic, payload)
	if err != nil {
		s.log.Error().Err(err).Str("type", eventType).Msg("marshal event")
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn().Err(err).Str("type", eventType).Str("topic", topic).Msg("publish event")
	}
}
