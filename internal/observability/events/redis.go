package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel lifecycle events are published on.
const DefaultChannel = "jobkeeper:events"

// RedisPublisher publishes lifecycle events on a Redis pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

// RedisPublisherConfig holds configuration for a RedisPublisher.
type RedisPublisherConfig struct {
	// Channel overrides the pub/sub channel name. Empty selects DefaultChannel.
	Channel string
}

// NewRedisPublisher creates a RedisPublisher over an existing client.
func NewRedisPublisher(client redis.UniversalClient, cfg RedisPublisherConfig) *RedisPublisher {
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
	}
}

// Publish serializes the event as JSON and publishes it. Delivery is
// fire-and-forget; there is no acknowledgement from subscribers.
func (p *RedisPublisher) Publish(ctx context.Context, event JobEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Health checks the health of the Redis connection.
func (p *RedisPublisher) Health(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
