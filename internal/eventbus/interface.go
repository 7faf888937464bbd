// Package eventbus publishes notable middleware events (task created,
// re-triaged, rebalanced, dead-lettered) for downstream consumers, kept
// strictly best-effort and out of the outbox's at-least-once delivery
// path.
package eventbus

import (
	"context"
	"time"
)

// Event is one notable occurrence, published on a best-effort basis.
type Event struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Payload   []byte    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Publisher fans an event out to whatever transport backs it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	Close() error
}
