// Package chat implements one-to-one clinical messaging: deterministic
// conversation identity, the server-ordered message stream, the per-user
// conversation directory with read state, and the typing signal.
package chat

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidParticipants is returned when a participant identifier is
	// missing or blank. No key is produced; callers must not touch the store.
	ErrInvalidParticipants = errors.New("both participant ids are required")
	// ErrInvalidKey is returned for keys that cannot be split back into two
	// ordered participant ids.
	ErrInvalidKey = errors.New("invalid conversation key")
	// ErrNotParticipant is returned when the acting user is not one of the
	// two participants derived from the key.
	ErrNotParticipant = errors.New("user is not a participant of this conversation")
)

const keySeparator = "_"

// ResolveKey derives the canonical conversation key for two users. The key
// is order-independent: the lexicographically smaller trimmed id comes
// first. Identifiers are opaque strings issued by the auth provider and are
// not expected to contain the separator.
func ResolveKey(idA, idB string) (string, error) {
	a := strings.TrimSpace(idA)
	b := strings.TrimSpace(idB)
	if a == "" || b == "" {
		return "", ErrInvalidParticipants
	}
	if a == b {
		return "", ErrInvalidParticipants
	}
	if a > b {
		a, b = b, a
	}
	return a + keySeparator + b, nil
}

// SplitKey recovers the two participant ids from a conversation key. The
// participants array on a stored conversation is always rewritten from this
// split, so the key is the single source of truth for membership.
func SplitKey(key string) (string, string, error) {
	parts := strings.SplitN(key, keySeparator, 2)
	if len(parts) != 2 {
		return "", "", ErrInvalidKey
	}
	a, b := parts[0], parts[1]
	if a == "" || b == "" || a == b {
		return "", "", ErrInvalidKey
	}
	if a > b {
		return "", "", ErrInvalidKey
	}
	return a, b, nil
}

// Participants returns the two ids of a key as a slice, for storage.
func Participants(key string) ([]string, error) {
	a, b, err := SplitKey(key)
	if err != nil {
		return nil, err
	}
	return []string{a, b}, nil
}

// Counterpart returns the other participant of a key relative to userID.
func Counterpart(key, userID string) (string, error) {
	a, b, err := SplitKey(key)
	if err != nil {
		return "", err
	}
	switch userID {
	case a:
		return b, nil
	case b:
		return a, nil
	}
	return "", ErrNotParticipant
}

const (
	conversationTopicPrefix = "conversation:"
	inboxTopicPrefix        = "inbox:"
)

// ConversationTopic is the realtime topic carrying message and typing
// events for one conversation.
func ConversationTopic(key string) string {
	return conversationTopicPrefix + key
}

// InboxTopic is the realtime topic carrying directory changes for one user.
func InboxTopic(userID string) string {
	return inboxTopicPrefix + userID
}

// CanSubscribe reports whether userID may follow a chat realtime topic.
// Conversation topics require participation; inbox topics are private to
// their owner. Unknown topics are denied.
func CanSubscribe(userID, topic string) bool {
	switch {
	case strings.HasPrefix(topic, conversationTopicPrefix):
		_, err := Counterpart(strings.TrimPrefix(topic, conversationTopicPrefix), userID)
		return err == nil
	case strings.HasPrefix(topic, inboxTopicPrefix):
		return strings.TrimPrefix(topic, inboxTopicPrefix) == userID
	}
	return false
}
