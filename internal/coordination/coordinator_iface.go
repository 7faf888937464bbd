package coordination

import (
	"context"
	"time"
)

// Coordinator is the distributed locking primitive shared by the
// scheduler's named job locks and the outbox's inflight lease reclaim:
// acquire/renew/release plus a fencing epoch and a scan for the
// janitor sweep.
type Coordinator interface {
	// AcquireLock attempts to take the named lock for ownerID. Returns
	// false if another owner currently holds it.
	AcquireLock(ctx context.Context, key string, ownerID string, ttl time.Duration) (bool, error)

	// RenewLock extends the TTL of a held lock, failing if ownerID no
	// longer holds it.
	RenewLock(ctx context.Context, key string, ownerID string, ttl time.Duration) (bool, error)

	// ReleaseLock releases the lock if held by ownerID.
	ReleaseLock(ctx context.Context, key string, ownerID string) error

	// GetLockOwner returns the current owner's opaque value, or "" if
	// unheld.
	GetLockOwner(ctx context.Context, key string) (string, error)

	// IncrementEpoch returns a monotonically increasing fencing token for
	// the named resource.
	IncrementEpoch(ctx context.Context, key string) (int64, error)

	// ScanLocks lists keys matching pattern, used by the janitor sweep.
	ScanLocks(ctx context.Context, pattern string) ([]string, error)
}
