package chat

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/realtime"
)

// Feed turns bus notifications into live, full-snapshot deliveries. Every
// change re-reads the backing store and hands the subscriber the complete
// ordered result, never a diff, so re-subscribing after a dispose always
// reproduces history from the store rather than any cache.
//
// Read failures — including permission denials — degrade to an empty
// delivery by policy: a user who cannot yet read a conversation sees an
// empty thread, not an error surface.
type Feed struct {
	svc *Service
	bus *realtime.Bus
	log zerolog.Logger
}

func NewFeed(svc *Service, bus *realtime.Bus, logger zerolog.Logger) *Feed {
	return &Feed{svc: svc, bus: bus, log: logger}
}

// SubscribeMessages delivers the full ascending-ordered stream for key
// immediately and again after every appended message. The disposer cancels
// the feed; the UI must dispose before subscribing to a different key.
func (f *Feed) SubscribeMessages(key string, fn func([]*Message)) (realtime.Disposer, error) {
	if _, _, err := SplitKey(key); err != nil {
		return nil, err
	}

	deliver := func() {
		msgs, err := f.svc.History(context.Background(), key)
		if err != nil {
			f.log.Debug().Err(err).Str("key", key).Msg("message feed read degraded to empty")
			msgs = []*Message{}
		}
		fn(msgs)
	}

	dispose := f.bus.Subscribe(ConversationTopic(key), func(e realtime.Event) {
		if e.Type == EventMessageNew {
			deliver()
		}
	})
	deliver()
	return dispose, nil
}

// SubscribeMyConversations delivers the user's conversation list, sorted by
// activity, immediately and on every directory change (new message sent or
// received, read-state flip).
func (f *Feed) SubscribeMyConversations(userID string, fn func([]*Conversation)) (realtime.Disposer, error) {
	if userID == "" {
		return nil, ErrInvalidParticipants
	}

	deliver := func() {
		sessions, err := f.svc.ListMine(context.Background(), userID)
		if err != nil {
			f.log.Debug().Err(err).Str("user_id", userID).Msg("directory feed read degraded to empty")
			sessions = []*Conversation{}
		}
		fn(sessions)
	}

	dispose := f.bus.Subscribe(InboxTopic(userID), func(realtime.Event) {
		deliver()
	})
	deliver()
	return dispose, nil
}

// SubscribeTyping delivers the conversation's current typing map on every
// typing change. Subscribers read only the counterpart's entry.
func (f *Feed) SubscribeTyping(key string, fn func(map[string]bool)) (realtime.Disposer, error) {
	if _, _, err := SplitKey(key); err != nil {
		return nil, err
	}

	deliver := func() {
		typing, err := f.svc.TypingState(context.Background(), key)
		if err != nil {
			typing = map[string]bool{}
		}
		fn(typing)
	}

	dispose := f.bus.Subscribe(ConversationTopic(key), func(e realtime.Event) {
		if e.Type == EventTyping {
			deliver()
		}
	})
	deliver()
	return dispose, nil
}
