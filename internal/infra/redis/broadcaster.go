package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/logger"
)

// EventBus relays game events over a Redis pub/sub channel so every instance
// can fan them out to its own websocket clients.
type EventBus struct {
	log     *logger.Logger
	client  *redis.Client
	channel string
}

func NewEventBus(client *redis.Client, channel string, log *logger.Logger) (*EventBus, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if channel == "" {
		channel = "studybuddy:game-events"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &EventBus{
		log:     log.With("component", "redis_event_bus"),
		client:  client,
		channel: channel,
	}, nil
}

// Broadcast implements app.Broadcaster. Publish failures are logged and dropped.
func (b *EventBus) Broadcast(ctx context.Context, event domain.Event) {
	if err := b.Publish(ctx, event); err != nil {
		b.log.Warn("publish game event failed", "type", event.Type, "game_code", event.GameCode, "error", err)
	}
}

func (b *EventBus) Publish(ctx context.Context, event domain.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes to the channel and hands each decoded event to
// onEvent until ctx is cancelled.
func (b *EventBus) StartForwarder(ctx context.Context, onEvent func(domain.Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.client.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var event domain.Event
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					b.log.Warn("bad game event payload", "error", err)
					continue
				}
				onEvent(event)
			}
		}
	}()

	return nil
}
