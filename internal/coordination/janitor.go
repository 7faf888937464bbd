package coordination

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"
)

// LockJanitor periodically sweeps named job locks for physical
// staleness. It exists as a second line of defense behind JobLock's own TTL: a
// lock held by a process that crashed mid-renew still expires in
// Redis on its own, but this sweep catches the window where a crashed
// holder's lock key survived (e.g. a Redis replica promotion replayed
// a slightly stale AOF) past its recorded expiry.
type LockJanitor struct {
	coordinator Coordinator
	interval    time.Duration
}

// NewLockJanitor builds a janitor that sweeps every interval.
func NewLockJanitor(c Coordinator, interval time.Duration) *LockJanitor {
	return &LockJanitor{coordinator: c, interval: interval}
}

// Start runs the sweep loop until ctx is cancelled.
func (j *LockJanitor) Start(ctx context.Context) {
	go j.loop(ctx)
}

func (j *LockJanitor) loop(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *LockJanitor) sweep(ctx context.Context) {
	keys, err := j.coordinator.ScanLocks(ctx, "taskmw:lock:job:*")
	if err != nil {
		log.Printf("janitor: scan failed: %v", err)
		return
	}

	for _, key := range keys {
		if strings.HasSuffix(key, ":epoch") {
			continue
		}

		val, err := j.coordinator.GetLockOwner(ctx, key)
		if err != nil || val == "" {
			continue
		}

		var meta LockMetadata
		if err := json.Unmarshal([]byte(val), &meta); err != nil {
			log.Printf("janitor: unreadable lock %s: %v", key, err)
			continue
		}

		if time.Now().After(meta.ExpiresAt.Add(5 * time.Second)) {
			log.Printf("janitor: reclaiming stale lock %s (expired %s, owner %s)", key, meta.ExpiresAt, meta.OwnerID)
			if err := j.coordinator.ReleaseLock(ctx, key, val); err != nil {
				log.Printf("janitor: failed to release %s: %v", key, err)
			}
		}
	}
}
