package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"zoho-mirror-api/internal/model"
)

// RedisPublisher broadcasts change events on Redis pub/sub channels,
// one channel per record kind.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a publisher on an established Redis client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	log.Printf("[RedisPublisher] Initialized")
	return &RedisPublisher{client: client}
}

// Publish serializes the event and broadcasts it on the group channel.
func (p *RedisPublisher) Publish(ctx context.Context, group string, event model.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := p.client.Publish(ctx, group, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", group, err)
	}
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Ensure RedisPublisher implements Publisher
var _ Publisher = (*RedisPublisher)(nil)
