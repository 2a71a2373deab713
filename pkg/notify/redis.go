package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "notify:"

// RedisBridge publishes through Redis pub/sub so every instance's Hub sees
// messages for the users connected to it.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	log    *zap.Logger
}

func NewRedisBridge(client *redis.Client, hub *Hub, log *zap.Logger) *RedisBridge {
	return &RedisBridge{
		client: client,
		hub:    hub,
		log:    log.With(zap.String("component", "notify_bridge")),
	}
}

func (b *RedisBridge) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := b.client.Publish(ctx, channelPrefix+msg.UserID, payload).Err(); err != nil {
		// Local subscribers still get it.
		b.hub.Deliver(msg)
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBridge) Subscribe(userID string) *Subscription {
	return b.hub.Subscribe(userID)
}

// Run relays Redis messages into the local hub until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.log.Warn("Dropping malformed notification",
					zap.String("channel", m.Channel),
					zap.Error(err),
				)
				continue
			}
			if msg.UserID == "" {
				msg.UserID = strings.TrimPrefix(m.Channel, channelPrefix)
			}
			b.hub.Deliver(msg)
		}
	}
}
