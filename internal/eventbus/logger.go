package eventbus

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// LogPublisher prints every event, used in dev and as the default when
// no message broker is configured.
type LogPublisher struct {
	logger *log.Logger
}

// NewLogPublisher builds a publisher writing to the default logger.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{logger: log.Default()}
}

func (p *LogPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   data,
		Timestamp: time.Now(),
		Source:    "task-orchestrator",
	}
	eventBytes, _ := json.Marshal(event)
	p.logger.Printf("[eventbus] publish %s: %s", topic, string(eventBytes))
	return nil
}

func (p *LogPublisher) Close() error {
	p.logger.Println("[eventbus] closed log publisher")
	return nil
}
