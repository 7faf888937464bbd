package outbox

import (
	"context"
	"log"
	"time"

	"github.com/Geralt1983/Project-Archangel/internal/clock"
	"github.com/Geralt1983/Project-Archangel/internal/observability"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

// Reclaimer periodically resets outbox rows stuck in inflight behind a
// worker that leased them and then crashed or hung past its lease
// window, returning them to pending so the next Tick picks them back
// up.
type Reclaimer struct {
	store       store.Store
	leaseExpiry time.Duration
	clk         clock.Clock
}

func NewReclaimer(s store.Store, leaseExpiry time.Duration, clk clock.Clock) *Reclaimer {
	return &Reclaimer{store: s, leaseExpiry: leaseExpiry, clk: clk}
}

func (r *Reclaimer) Sweep(ctx context.Context) (int, error) {
	n, err := r.store.ReclaimStaleInflight(ctx, r.leaseExpiry, r.clk.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		observability.OutboxLeaseReclaims.Add(float64(n))
	}
	return n, nil
}

func (r *Reclaimer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				log.Printf("outbox: reclaim sweep failed: %v", err)
			}
		}
	}
}
