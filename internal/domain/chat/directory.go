package chat

import "sync"

// Directory is a local read-model over one user's conversation subscription.
// The UI keeps exactly one directory subscription per signed-in user and
// answers per-counterpart unread lookups from this cache instead of opening
// a subscription per contact.
type Directory struct {
	mu            sync.RWMutex
	userID        string
	sessions      []*Conversation
	byCounterpart map[string]*Conversation
}

func NewDirectory(userID string) *Directory {
	return &Directory{
		userID:        userID,
		byCounterpart: make(map[string]*Conversation),
	}
}

// Update replaces the cached sessions with a fresh subscription delivery.
// The delivery slice is shared with other subscribers, so it is copied
// before sorting.
func (d *Directory) Update(sessions []*Conversation) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sorted := make([]*Conversation, len(sessions))
	copy(sorted, sessions)
	SortByActivity(sorted)

	d.sessions = sorted
	d.byCounterpart = make(map[string]*Conversation, len(sorted))
	for _, s := range sorted {
		if other, ok := s.Counterpart(d.userID); ok {
			d.byCounterpart[other] = s
		}
	}
}

// Sessions returns the cached conversations, most recently active first.
func (d *Directory) Sessions() []*Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Conversation, len(d.sessions))
	copy(out, d.sessions)
	return out
}

// HasUnread reports whether any session holds an unseen message from a
// counterpart. Drives the aggregate inbox badge.
func (d *Directory) HasUnread() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.sessions {
		if s.UnreadFor(d.userID) {
			return true
		}
	}
	return false
}

// UnreadWith reports unread state for a single counterpart, resolved from
// the cache.
func (d *Directory) UnreadWith(otherID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.byCounterpart[otherID]
	return ok && s.UnreadFor(d.userID)
}
