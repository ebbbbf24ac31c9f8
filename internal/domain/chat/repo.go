package chat

import (
	"context"
)

// ConversationRepository persists conversation documents. All writes are
// field-level merges: concurrent writers touching different fields (typing
// vs. last-message summary) must not clobber each other.
type ConversationRepository interface {
	GetByKey(ctx context.Context, key string) (*Conversation, error)
	ListByParticipant(ctx context.Context, userID string) ([]*Conversation, error)
	// UpdateLastMessage upserts the conversation (create-if-absent) and sets
	// participants, the last-message summary with seen=false, and updated_at.
	UpdateLastMessage(ctx context.Context, key string, participants []string, last LastMessage) error
	// MarkRead flips the summary's seen flag to true. Idempotent; a missing
	// conversation is a no-op, not an error.
	MarkRead(ctx context.Context, key string) error
	// SetTyping upserts the conversation and merges typing[userID]=isTyping
	// without touching any other field.
	SetTyping(ctx context.Context, key string, participants []string, userID string, isTyping bool) error
	GetTyping(ctx context.Context, key string) (map[string]bool, error)
}

// MessageRepository persists the append-only message stream.
type MessageRepository interface {
	// Create appends the message; the creation timestamp is assigned
	// server-side and written back onto m.
	Create(ctx context.Context, m *Message) error
	// ListByKey returns the full stream ordered by (created_at, id) ascending.
	ListByKey(ctx context.Context, key string) ([]*Message, error)
	ListByKeyPage(ctx context.Context, key string, limit, offset int) ([]*Message, int, error)
}
