package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the durable persistence contract shared by the Postgres and
// in-memory backends.
type Store interface {
	// Task operations.
	UpsertTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, id uuid.UUID) (*Task, error)
	ListTasksByStatus(ctx context.Context, statuses []TaskStatus) ([]*Task, error)

	// EnqueueTaskMutation persists a task write and an outbox intent in a
	// single atomic commit. If a row with
	// the same idempotency key already exists the outbox insert is a
	// no-op but the task write still applies.
	EnqueueTaskMutation(ctx context.Context, task *Task, row *OutboxRow) error

	// Outbox operations.
	InsertOutboxRow(ctx context.Context, row *OutboxRow) (inserted bool, err error)
	SelectAndLeaseBatch(ctx context.Context, limit int, now time.Time) ([]*OutboxRow, error)
	UpdateOutboxStatus(ctx context.Context, id int64, status OutboxStatus, retryCount int, nextRetryAt *time.Time, lastError string) error
	ReclaimStaleInflight(ctx context.Context, leaseExpiry time.Duration, now time.Time) (int, error)
	OutboxStats(ctx context.Context) (map[OutboxStatus]int, error)
	ListDeadLetters(ctx context.Context, limit int) ([]*OutboxRow, error)
	RequeueDeadLetter(ctx context.Context, id int64) error

	// Task mapping operations.
	UpsertMapping(ctx context.Context, backend, externalID string, taskID uuid.UUID) error
	GetMappingInternalID(ctx context.Context, backend, externalID string) (uuid.UUID, bool, error)

	// Decision / audit trace operations.
	AppendTrace(ctx context.Context, trace *DecisionTrace) error
	ListTraces(ctx context.Context, from, to time.Time) ([]*DecisionTrace, error)
}

// Ledger is the seen-delivery dedup contract. Redis is
// the natural backend (native TTL); a memory variant exists for tests.
type Ledger interface {
	// CheckAndInsert atomically records deliveryID if unseen. Returns
	// fresh=true the first time a delivery ID is recorded, false on any
	// subsequent call within the TTL window.
	CheckAndInsert(ctx context.Context, deliveryID string, ttl time.Duration) (fresh bool, err error)
}
