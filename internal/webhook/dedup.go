package webhook

import (
	"context"
	"time"

	"github.com/Geralt1983/Project-Archangel/internal/store"
)

// Deduplicator guards against redelivered callbacks using the
// seen-delivery ledger keyed by (backend, delivery_id).
type Deduplicator struct {
	ledger store.Ledger
	ttl    time.Duration
}

func NewDeduplicator(ledger store.Ledger, ttl time.Duration) *Deduplicator {
	return &Deduplicator{ledger: ledger, ttl: ttl}
}

// Check returns fresh=true the first time backend+deliveryID is seen
// within the TTL window, false on any replay.
func (d *Deduplicator) Check(ctx context.Context, backend, deliveryID string) (fresh bool, err error) {
	return d.ledger.CheckAndInsert(ctx, backend+":"+deliveryID, d.ttl)
}
