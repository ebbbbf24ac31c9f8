// Package realtime provides the push half of the data layer: an in-process
// topic bus that live feeds and the WebSocket hub subscribe to, and an
// optional Redis bridge that fans events out across server instances.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Event represents a single change notification published to a topic.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Publisher is the write side of the bus. Domain services depend on this
// interface so tests can substitute a recording double.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Disposer cancels a subscription. Safe to call more than once.
type Disposer func()

// Bus is an in-process topic publish/subscribe fanout. Callbacks are invoked
// synchronously on the publisher's goroutine and must not block.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func(Event)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]func(Event))}
}

// Subscribe registers fn for every event published to topic. The returned
// Disposer removes the registration.
func (b *Bus) Subscribe(topic string, fn func(Event)) Disposer {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]func(Event))
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subscribers, ok := b.subs[topic]; ok {
				delete(subscribers, id)
				if len(subscribers) == 0 {
					delete(b.subs, topic)
				}
			}
		})
	}
}

// Publish delivers the event to all subscribers of its topic.
func (b *Bus) Publish(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	subscribers := b.subs[event.Topic]
	fns := make([]func(Event), 0, len(subscribers))
	for _, fn := range subscribers {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(event)
	}
	return nil
}

// TopicCount returns the number of subscribers on a topic.
func (b *Bus) TopicCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// multiPublisher fans a publish out to several publishers in order.
type multiPublisher []Publisher

// Multi combines publishers into one; the first error wins but every
// publisher is still invoked.
func Multi(pubs ...Publisher) Publisher {
	return multiPublisher(pubs)
}

func (m multiPublisher) Publish(ctx context.Context, event Event) error {
	var firstErr error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewEvent marshals payload and wraps it in an Event for the given topic.
func NewEvent(eventType, topic string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:      eventType,
		Topic:     topic,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}
