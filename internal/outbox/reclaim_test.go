package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/Geralt1983/Project-Archangel/internal/clock"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

func TestReclaimerSweepReturnsStaleInflightRowsToPending(t *testing.T) {
	s := store.NewMemoryStore()
	newOutboxRow(t, s, "demo")

	leaseStart := time.Now().Add(-time.Hour)
	if _, err := s.SelectAndLeaseBatch(context.Background(), 10, leaseStart); err != nil {
		t.Fatal(err)
	}

	r := NewReclaimer(s, 5*time.Minute, clock.Fixed(time.Now()))
	n, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row reclaimed, got %d", n)
	}

	stats, err := s.OutboxStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats[store.OutboxPending] != 1 {
		t.Fatalf("expected reclaimed row back in pending, got stats=%v", stats)
	}
	if stats[store.OutboxInflight] != 0 {
		t.Fatalf("expected no rows left inflight, got stats=%v", stats)
	}
}

func TestReclaimerSweepLeavesFreshLeaseAlone(t *testing.T) {
	s := store.NewMemoryStore()
	newOutboxRow(t, s, "demo")

	if _, err := s.SelectAndLeaseBatch(context.Background(), 10, time.Now()); err != nil {
		t.Fatal(err)
	}

	r := NewReclaimer(s, 5*time.Minute, clock.Fixed(time.Now()))
	n, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected 0 rows reclaimed for a fresh lease, got %d", n)
	}

	stats, err := s.OutboxStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats[store.OutboxInflight] != 1 {
		t.Fatalf("expected the fresh lease to remain inflight, got stats=%v", stats)
	}
}

func TestReclaimerSweepIgnoresPendingRows(t *testing.T) {
	s := store.NewMemoryStore()
	newOutboxRow(t, s, "demo")

	r := NewReclaimer(s, 5*time.Minute, clock.Fixed(time.Now()))
	n, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected 0 rows reclaimed when nothing is leased, got %d", n)
	}
}
