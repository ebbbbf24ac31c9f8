package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type typingWrite struct {
	key      string
	userID   string
	isTyping bool
}

type recordingTypingWriter struct {
	mu     sync.Mutex
	writes []typingWrite
}

func (w *recordingTypingWriter) SetTyping(_ context.Context, key, userID string, isTyping bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, typingWrite{key: key, userID: userID, isTyping: isTyping})
	return nil
}

func (w *recordingTypingWriter) snapshot() []typingWrite {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]typingWrite(nil), w.writes...)
}

func TestTypingDebouncer_RapidKeystrokesWriteOnce(t *testing.T) {
	writer := &recordingTypingWriter{}
	d := NewTypingDebouncer(writer, 50*time.Millisecond, zerolog.Nop())
	defer d.Close()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := d.Keystroke(ctx, "alice_bob", "alice"); err != nil {
			t.Fatalf("Keystroke: %v", err)
		}
	}

	writes := writer.snapshot()
	if len(writes) != 1 {
		t.Fatalf("expected exactly one raise for a burst, got %d", len(writes))
	}
	if !writes[0].isTyping {
		t.Error("first write must raise the flag")
	}
}

func TestTypingDebouncer_ExpiresAfterWindow(t *testing.T) {
	writer := &recordingTypingWriter{}
	d := NewTypingDebouncer(writer, 30*time.Millisecond, zerolog.Nop())
	defer d.Close()

	if err := d.Keystroke(context.Background(), "alice_bob", "alice"); err != nil {
		t.Fatalf("Keystroke: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		writes := writer.snapshot()
		if len(writes) == 2 {
			if writes[1].isTyping {
				t.Error("expiry must lower the flag")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expiry never fired, writes: %v", writes)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTypingDebouncer_KeystrokeExtendsWindow(t *testing.T) {
	writer := &recordingTypingWriter{}
	d := NewTypingDebouncer(writer, 60*time.Millisecond, zerolog.Nop())
	defer d.Close()
	ctx := context.Background()

	if err := d.Keystroke(ctx, "alice_bob", "alice"); err != nil {
		t.Fatalf("Keystroke: %v", err)
	}
	// Keep typing past the original window; the flag must stay up.
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		if err := d.Keystroke(ctx, "alice_bob", "alice"); err != nil {
			t.Fatalf("Keystroke: %v", err)
		}
	}

	if writes := writer.snapshot(); len(writes) != 1 {
		t.Errorf("continued typing must not lower the flag, writes: %v", writes)
	}
}

func TestTypingDebouncer_SentLowersImmediately(t *testing.T) {
	writer := &recordingTypingWriter{}
	d := NewTypingDebouncer(writer, time.Hour, zerolog.Nop())
	defer d.Close()
	ctx := context.Background()

	if err := d.Keystroke(ctx, "alice_bob", "alice"); err != nil {
		t.Fatalf("Keystroke: %v", err)
	}
	if err := d.Sent(ctx, "alice_bob", "alice"); err != nil {
		t.Fatalf("Sent: %v", err)
	}

	writes := writer.snapshot()
	if len(writes) != 2 {
		t.Fatalf("expected raise then lower, got %v", writes)
	}
	if !writes[0].isTyping || writes[1].isTyping {
		t.Errorf("expected true then false, got %v", writes)
	}
}

func TestTypingDebouncer_SentWithoutKeystrokeIsNoop(t *testing.T) {
	writer := &recordingTypingWriter{}
	d := NewTypingDebouncer(writer, time.Hour, zerolog.Nop())
	defer d.Close()

	if err := d.Sent(context.Background(), "alice_bob", "alice"); err != nil {
		t.Fatalf("Sent: %v", err)
	}
	if writes := writer.snapshot(); len(writes) != 0 {
		t.Errorf("lowering an already-down flag must not write, got %v", writes)
	}
}

func TestTypingDebouncer_TracksPairsIndependently(t *testing.T) {
	writer := &recordingTypingWriter{}
	d := NewTypingDebouncer(writer, time.Hour, zerolog.Nop())
	defer d.Close()
	ctx := context.Background()

	if err := d.Keystroke(ctx, "alice_bob", "alice"); err != nil {
		t.Fatalf("Keystroke: %v", err)
	}
	if err := d.Keystroke(ctx, "alice_bob", "bob"); err != nil {
		t.Fatalf("Keystroke: %v", err)
	}
	if err := d.Sent(ctx, "alice_bob", "alice"); err != nil {
		t.Fatalf("Sent: %v", err)
	}

	writes := writer.snapshot()
	if len(writes) != 3 {
		t.Fatalf("expected 3 writes, got %v", writes)
	}
	last := writes[2]
	if last.userID != "alice" || last.isTyping {
		t.Errorf("alice's Sent must not touch bob's state: %v", last)
	}
}
