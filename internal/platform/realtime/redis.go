package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// envelope wraps an Event on the wire so an instance can skip events that
// originated from itself.
type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBridge replicates bus events across server instances via Redis
// pub/sub. Publish sends to the local bus and to the Redis channel; Run
// listens for events published by other instances and replays them locally.
type RedisBridge struct {
	client  *redis.Client
	channel string
	local   Publisher
	origin  string
	log     zerolog.Logger
}

func NewRedisBridge(client *redis.Client, channel string, local Publisher, logger zerolog.Logger) *RedisBridge {
	return &RedisBridge{
		client:  client,
		channel: channel,
		local:   local,
		origin:  uuid.New().String(),
		log:     logger,
	}
}

// Publish delivers the event locally, then broadcasts it to peers. A Redis
// failure does not undo the local delivery; peers simply miss one event.
func (b *RedisBridge) Publish(ctx context.Context, event Event) error {
	if err := b.local.Publish(ctx, event); err != nil {
		return err
	}

	payload, err := json.Marshal(envelope{Origin: b.origin, Event: event})
	if err != nil {
		return fmt.Errorf("marshal realtime envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.log.Warn().Err(err).Str("topic", event.Topic).Msg("redis publish failed")
	}
	return nil
}

// Run consumes the Redis channel until ctx is cancelled, replaying events
// from other instances onto the local bus.
func (b *RedisBridge) Run(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn().Err(err).Msg("malformed realtime envelope")
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			if err := b.local.Publish(ctx, env.Event); err != nil {
				b.log.Warn().Err(err).Str("topic", env.Event.Topic).Msg("replay failed")
			}
		}
	}
}
