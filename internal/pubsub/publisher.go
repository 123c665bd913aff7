package pubsub

import (
	"context"
	"log"

	"zoho-mirror-api/internal/model"
)

// Publisher delivers change events to downstream consumers. Delivery is
// fire-and-forget: a failed publish is the caller's to log, never a
// reason to fail the sync run.
type Publisher interface {
	Publish(ctx context.Context, group string, event model.ChangeEvent) error
	Close() error
}

// LogPublisher is the fallback sink used when Redis is unavailable.
// Events are logged and dropped.
type LogPublisher struct{}

// NewLogPublisher creates a log-only publisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

// Publish logs the event and drops it.
func (p *LogPublisher) Publish(_ context.Context, group string, event model.ChangeEvent) error {
	log.Printf("[LogPublisher] %s event on %s (no broker connected)", event.Type, group)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error {
	return nil
}

// Ensure LogPublisher implements Publisher
var _ Publisher = (*LogPublisher)(nil)
