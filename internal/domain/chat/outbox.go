package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// reconcileWindow bounds how far apart a confirmed timestamp may be from the
// local queue time for the two to be treated as the same message.
const reconcileWindow = time.Minute

// PendingMessage is the optimistic local copy shown while the server write
// is in flight. It carries a client-generated correlation id and a local
// provisional timestamp; the authoritative copy supersedes it.
type PendingMessage struct {
	CorrelationID uuid.UUID `json:"correlation_id"`
	SenderID      string    `json:"sender_id"`
	Text          string    `json:"text"`
	QueuedAt      time.Time `json:"queued_at"`
}

// DisplayMessage is what thread views render: either a confirmed message or
// a pending optimistic entry.
type DisplayMessage struct {
	Message
	Pending bool `json:"pending,omitempty"`
}

// Outbox reconciles optimistic sends with the authoritative stream. Each
// subscription delivery replaces the confirmed buffer wholesale; pending
// entries that match a confirmed message from the same sender with the same
// text inside the reconcile window are dropped. A failed send returns the
// draft so the UI can restore it.
type Outbox struct {
	mu        sync.Mutex
	pending   []PendingMessage
	confirmed []*Message
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

// Stage records an optimistic copy and returns it so the caller can
// correlate the eventual success or failure.
func (o *Outbox) Stage(senderID, text string) PendingMessage {
	p := PendingMessage{
		CorrelationID: uuid.New(),
		SenderID:      senderID,
		Text:          text,
		QueuedAt:      time.Now(),
	}
	o.mu.Lock()
	o.pending = append(o.pending, p)
	o.mu.Unlock()
	return p
}

// Fail removes a staged entry after a rejected send and hands back the draft
// text so it is not lost.
func (o *Outbox) Fail(correlationID uuid.UUID) (draft string, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, p := range o.pending {
		if p.CorrelationID == correlationID {
			o.pending = append(o.pending[:i], o.pending[i+1:]...)
			return p.Text, true
		}
	}
	return "", false
}

// Reconcile installs a fresh authoritative delivery and drops any pending
// entry it confirms.
func (o *Outbox) Reconcile(confirmed []*Message) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.confirmed = confirmed

	remaining := o.pending[:0]
	for _, p := range o.pending {
		if !matchesConfirmed(p, confirmed) {
			remaining = append(remaining, p)
		}
	}
	o.pending = remaining
}

func matchesConfirmed(p PendingMessage, confirmed []*Message) bool {
	for _, m := range confirmed {
		if m.SenderID != p.SenderID || m.Text != p.Text {
			continue
		}
		delta := m.CreatedAt.Sub(p.QueuedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= reconcileWindow {
			return true
		}
	}
	return false
}

// Snapshot returns the thread as it should render right now: the confirmed
// stream in server order followed by still-pending optimistic entries.
func (o *Outbox) Snapshot() []DisplayMessage {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]DisplayMessage, 0, len(o.confirmed)+len(o.pending))
	for _, m := range o.confirmed {
		out = append(out, DisplayMessage{Message: *m})
	}
	for _, p := range o.pending {
		out = append(out, DisplayMessage{
			Message: Message{
				ID:        p.CorrelationID,
				SenderID:  p.SenderID,
				Text:      p.Text,
				CreatedAt: p.QueuedAt,
			},
			Pending: true,
		})
	}
	return out
}

// PendingCount reports how many optimistic entries await confirmation.
func (o *Outbox) PendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}
