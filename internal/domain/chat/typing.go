package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTypingWindow is how long after the last keystroke the typing flag
// stays up.
const DefaultTypingWindow = 2 * time.Second

type typingWriter interface {
	SetTyping(ctx context.Context, key, userID string, isTyping bool) error
}

// TypingDebouncer coalesces per-keystroke typing signals into at most one
// store write per transition. Each (conversation, user) pair owns a single
// timer: a keystroke raises the flag if it is down and restarts the timer;
// the timer firing — or an explicit Sent — lowers it. Rapid keystrokes
// therefore produce exactly one false transition after the window elapses,
// never one per keystroke.
type TypingDebouncer struct {
	writer typingWriter
	window time.Duration
	log    zerolog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	active map[string]bool
}

func NewTypingDebouncer(writer typingWriter, window time.Duration, logger zerolog.Logger) *TypingDebouncer {
	if window <= 0 {
		window = DefaultTypingWindow
	}
	return &TypingDebouncer{
		writer: writer,
		window: window,
		log:    logger,
		timers: make(map[string]*time.Timer),
		active: make(map[string]bool),
	}
}

func stateKey(key, userID string) string {
	return key + "\x00" + userID
}

// Keystroke records typing activity. The flag is written only on the
// false-to-true transition; repeated calls just push the expiry out.
func (d *TypingDebouncer) Keystroke(ctx context.Context, key, userID string) error {
	d.mu.Lock()
	sk := stateKey(key, userID)
	raise := !d.active[sk]
	d.active[sk] = true
	if t, ok := d.timers[sk]; ok {
		t.Stop()
	}
	d.timers[sk] = time.AfterFunc(d.window, func() {
		d.expire(key, userID)
	})
	d.mu.Unlock()

	if !raise {
		return nil
	}
	return d.writer.SetTyping(ctx, key, userID, true)
}

// Sent clears the flag immediately, cancelling the pending expiry.
func (d *TypingDebouncer) Sent(ctx context.Context, key, userID string) error {
	d.mu.Lock()
	sk := stateKey(key, userID)
	lower := d.active[sk]
	delete(d.active, sk)
	if t, ok := d.timers[sk]; ok {
		t.Stop()
		delete(d.timers, sk)
	}
	d.mu.Unlock()

	if !lower {
		return nil
	}
	return d.writer.SetTyping(ctx, key, userID, false)
}

func (d *TypingDebouncer) expire(key, userID string) {
	d.mu.Lock()
	sk := stateKey(key, userID)
	lower := d.active[sk]
	delete(d.active, sk)
	delete(d.timers, sk)
	d.mu.Unlock()

	if !lower {
		return
	}
	if err := d.writer.SetTyping(context.Background(), key, userID, false); err != nil {
		// Typing-signal failures are never surfaced.
		d.log.Debug().Err(err).Str("key", key).Msg("typing expiry write failed")
	}
}

// Close stops all pending timers without writing.
func (d *TypingDebouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for sk, t := range d.timers {
		t.Stop()
		delete(d.timers, sk)
		delete(d.active, sk)
	}
}
