// Package outbox implements the transactional outbox that is the only
// path by which task mutations reach third-party backends: a producer
// stamps an idempotency key and writes task state and delivery intent
// in one commit, a worker leases and dispatches rows with bounded
// retry/backoff, and a reclaimer recovers rows stuck behind a crashed
// worker.
package outbox

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/Geralt1983/Project-Archangel/internal/store"
)

// Producer turns a task mutation plus a backend intent into a single
// atomic store write.
type Producer struct {
	store store.Store
}

func NewProducer(s store.Store) *Producer {
	return &Producer{store: s}
}

// Enqueue persists task and a new outbox row describing the mutation to
// send to backend, computing the row's idempotency key from the
// canonicalized payload so a retried caller never double-enqueues the
// same effect.
func (p *Producer) Enqueue(ctx context.Context, task *store.Task, backend string, operation store.OutboxOperation, endpoint string, payload interface{}, headers map[string]string) error {
	canon, err := Canonicalize(payload)
	if err != nil {
		return err
	}

	row := &store.OutboxRow{
		TaskID:         task.ID,
		Backend:        backend,
		Operation:      operation,
		Endpoint:       endpoint,
		Payload:        canon,
		Headers:        headers,
		IdempotencyKey: ComputeIdempotencyKey(backend, string(operation), endpoint, canon),
		Status:         store.OutboxPending,
	}

	return p.store.EnqueueTaskMutation(ctx, task, row)
}

// EnqueueOnly writes an outbox row without an accompanying task write,
// used by the scheduler's stale-nudge job, which emits a backend call
// without mutating task state in the same breath.
func (p *Producer) EnqueueOnly(ctx context.Context, taskID uuid.UUID, backend string, operation store.OutboxOperation, endpoint string, payload interface{}, headers map[string]string) (bool, error) {
	canon, err := Canonicalize(payload)
	if err != nil {
		return false, err
	}
	row := &store.OutboxRow{
		TaskID:         taskID,
		Backend:        backend,
		Operation:      operation,
		Endpoint:       endpoint,
		Payload:        canon,
		Headers:        headers,
		IdempotencyKey: ComputeIdempotencyKey(backend, string(operation), endpoint, canon),
		Status:         store.OutboxPending,
	}
	return p.store.InsertOutboxRow(ctx, row)
}

// decodePayload is a small helper dispatch implementations use to get
// back the structured payload a producer marshaled.
func decodePayload(raw []byte, out interface{}) error {
	return json.Unmarshal(raw, out)
}
