package chat

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Realtime event types published by the chat service.
const (
	EventMessageNew          = "message.new"
	EventConversationUpdated = "conversation.updated"
	EventConversationRead    = "conversation.read"
	EventTyping              = "typing"
)

// LastMessage is the denormalized summary stored on a conversation so inbox
// screens render without scanning message streams.
type LastMessage struct {
	Text     string    `json:"text"`
	SenderID string    `json:"sender_id"`
	SentAt   time.Time `json:"sent_at"`
	Seen     bool      `json:"seen"`
}

// Conversation is one document per conversation key. Participants are always
// derivable from the key; every send rewrites them to repair legacy rows.
type Conversation struct {
	Key          string          `db:"key" json:"key"`
	Participants []string        `db:"participants" json:"participants"`
	LastMessage  *LastMessage    `json:"last_message,omitempty"`
	Typing       map[string]bool `db:"typing" json:"typing,omitempty"`
	UpdatedAt    *time.Time      `db:"updated_at" json:"updated_at,omitempty"`
}

// UnreadFor reports whether the conversation holds a message the given user
// has not seen: the summary is unseen and was sent by the counterpart.
func (c *Conversation) UnreadFor(userID string) bool {
	return c.LastMessage != nil && !c.LastMessage.Seen && c.LastMessage.SenderID != userID
}

// Counterpart returns the other participant relative to userID.
func (c *Conversation) Counterpart(userID string) (string, bool) {
	for _, p := range c.Participants {
		if p != userID {
			return p, true
		}
	}
	return "", false
}

// TypingOf reports whether the given user is currently typing.
func (c *Conversation) TypingOf(userID string) bool {
	return c.Typing[userID]
}

// SortByActivity orders conversations most recently active first.
// Conversations without a timestamp sort to the bottom (zero-time fallback).
func SortByActivity(conversations []*Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		var ti, tj time.Time
		if conversations[i].UpdatedAt != nil {
			ti = *conversations[i].UpdatedAt
		}
		if conversations[j].UpdatedAt != nil {
			tj = *conversations[j].UpdatedAt
		}
		return ti.After(tj)
	})
}

// Message is an immutable entry in a conversation's stream. CreatedAt is
// assigned by the database; client clocks are never used for ordering.
type Message struct {
	ID              uuid.UUID `db:"id" json:"id"`
	ConversationKey string    `db:"conversation_key" json:"conversation_key"`
	SenderID        string    `db:"sender_id" json:"sender_id"`
	Text            string    `db:"text" json:"text"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// TypingPayload is the event payload published when a typing flag changes.
type TypingPayload struct {
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}
