package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes events onto a NATS subject namespace, one
// subject per topic ("taskmw.events.<topic>"). It is the "real"
// publisher option for clustered deployments that want task-lifecycle
// events fanned out to other services without adding them to the
// outbox's delivery guarantees.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher dials url and returns a publisher prefixing every
// topic with prefix+".".
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Timeout(5*time.Second), nats.MaxReconnects(10))
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
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
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.prefix+"."+topic, eventBytes)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
