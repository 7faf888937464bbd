package coordination

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// LockMetadata is the JSON payload stored as a lock's value, carrying
// enough to fence stale holders and attribute ownership in logs.
type LockMetadata struct {
	OwnerID   string    `json:"owner_id"`
	Epoch     int64     `json:"epoch"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// JobLock is a named, renewable, fenced lock used to run a periodic job
// exclusively across scheduler instances: outbox tick, re-score sweep,
// stale nudge, and daily rebalance each take their own named lock
// rather than sharing one global leadership role, since these jobs are
// independent and should not all stall behind one elected node.
type JobLock struct {
	coordinator Coordinator
	name        string
	ownerID     string
	key         string
	ttl         time.Duration

	mu        sync.RWMutex
	held      bool
	epoch     int64
	value     string // exact JSON currently stored at key, needed for CAS-style release
	heldCtx   context.Context
	heldStop  context.CancelFunc

	onAcquired func(context.Context)
	onLost     func()
}

// NewJobLock builds a lock for the named job. ownerID identifies this
// process instance (e.g. hostname+pid) in the held lock's metadata.
func NewJobLock(c Coordinator, name, ownerID string, ttl time.Duration) *JobLock {
	return &JobLock{
		coordinator: c,
		name:        name,
		ownerID:     ownerID,
		key:         "taskmw:lock:job:" + name,
		ttl:         ttl,
	}
}

// SetCallbacks registers hooks fired on acquisition and loss. onAcquired
// receives a context cancelled the moment the lock is lost or Stop is
// called, so long-running work can bail out promptly.
func (j *JobLock) SetCallbacks(onAcquired func(ctx context.Context), onLost func()) {
	j.onAcquired = onAcquired
	j.onLost = onLost
}

// Run drives the acquire/renew loop until ctx is cancelled: renews
// every ttl/3, backing off (capped) on repeated failures.
func (j *JobLock) Run(ctx context.Context) {
	interval := j.ttl / 3
	minInterval := interval
	maxInterval := 10 * j.ttl
	failures := 0
	const maxFailures = 3

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if j.IsHeld() {
				j.release()
			}
			return
		case <-timer.C:
			var err error
			if j.IsHeld() {
				var renewed bool
				renewed, err = j.renew(ctx)
				if err == nil {
					failures = 0
					if !renewed {
						j.stepDown()
					}
				} else {
					failures++
					log.Printf("joblock[%s]: renew failed (%d/%d): %v", j.name, failures, maxFailures, err)
					if failures >= maxFailures {
						j.stepDown()
						failures = 0
					}
				}
			} else {
				var acquired bool
				acquired, err = j.acquire(ctx)
				if err == nil && acquired {
					j.becomeHolder(ctx)
					failures = 0
				}
			}

			if err != nil {
				interval *= 2
				if interval > maxInterval {
					interval = maxInterval
				}
			} else {
				interval = minInterval
			}
			timer.Reset(interval)
		}
	}
}

// IsHeld reports whether this process currently holds the lock.
func (j *JobLock) IsHeld() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.held
}

func (j *JobLock) acquire(ctx context.Context) (bool, error) {
	epoch, err := j.coordinator.IncrementEpoch(ctx, j.key)
	if err != nil {
		return false, err
	}
	now := time.Now()
	meta := LockMetadata{OwnerID: j.ownerID, Epoch: epoch, CreatedAt: now, ExpiresAt: now.Add(j.ttl)}
	data, _ := json.Marshal(meta)
	ok, err := j.coordinator.AcquireLock(ctx, j.key, string(data), j.ttl)
	if err != nil || !ok {
		return false, err
	}
	j.mu.Lock()
	j.epoch = epoch
	j.value = string(data)
	j.mu.Unlock()
	return true, nil
}

func (j *JobLock) renew(ctx context.Context) (bool, error) {
	j.mu.RLock()
	current := j.value
	j.mu.RUnlock()
	// RenewLock only PEXPIREs the key; it never rewrites the stored
	// value, so j.value stays valid for a later release's CAS check.
	return j.coordinator.RenewLock(ctx, j.key, current, j.ttl)
}

func (j *JobLock) becomeHolder(ctx context.Context) {
	j.mu.Lock()
	j.held = true
	j.heldCtx, j.heldStop = context.WithCancel(ctx)
	heldCtx := j.heldCtx
	j.mu.Unlock()

	log.Printf("joblock[%s]: acquired by %s", j.name, j.ownerID)
	if j.onAcquired != nil {
		go j.onAcquired(heldCtx)
	}
}

func (j *JobLock) stepDown() {
	log.Printf("joblock[%s]: lost by %s", j.name, j.ownerID)
	j.mu.Lock()
	j.held = false
	stop := j.heldStop
	j.heldStop = nil
	j.mu.Unlock()
	if stop != nil {
		stop()
	}
	if j.onLost != nil {
		j.onLost()
	}
}

func (j *JobLock) release() {
	j.mu.RLock()
	current := j.value
	j.mu.RUnlock()
	if err := j.coordinator.ReleaseLock(context.Background(), j.key, current); err != nil {
		log.Printf("joblock[%s]: release failed: %v", j.name, err)
	}
	j.stepDown()
}
