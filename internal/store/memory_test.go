package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestRow(key string) *OutboxRow {
	return &OutboxRow{
		TaskID:         uuid.New(),
		Backend:        "demo",
		Operation:      OpCreateTask,
		Payload:        []byte(`{}`),
		IdempotencyKey: key,
		Status:         OutboxPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

func TestInsertOutboxRowDuplicateKeyIsNoOp(t *testing.T) {
	s := NewMemoryStore()

	inserted, err := s.InsertOutboxRow(context.Background(), newTestRow("key-1"))
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Fatal("expected the first insert to succeed")
	}

	inserted, err = s.InsertOutboxRow(context.Background(), newTestRow("key-1"))
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Fatal("expected a duplicate idempotency_key insert to be a no-op")
	}

	stats, err := s.OutboxStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats[OutboxPending] != 1 {
		t.Fatalf("expected exactly one row to exist after a duplicate-key insert, got stats=%v", stats)
	}
}

func TestSelectAndLeaseBatchNeverDoubleLeasesARowAcrossConcurrentWorkers(t *testing.T) {
	s := NewMemoryStore()
	const rowCount = 50
	for i := 0; i < rowCount; i++ {
		if _, err := s.InsertOutboxRow(context.Background(), newTestRow(uuid.NewString())); err != nil {
			t.Fatal(err)
		}
	}

	const workers = 8
	var wg sync.WaitGroup
	leasedByWorker := make([][]*OutboxRow, workers)
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			leased, err := s.SelectAndLeaseBatch(context.Background(), rowCount, time.Now())
			if err != nil {
				t.Error(err)
				return
			}
			leasedByWorker[w] = leased
		}()
	}
	wg.Wait()

	seen := make(map[int64]int)
	total := 0
	for _, leased := range leasedByWorker {
		for _, row := range leased {
			seen[row.ID]++
			total++
		}
	}
	if total != rowCount {
		t.Fatalf("expected every pending row leased exactly once across all workers, got %d of %d", total, rowCount)
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("row %d was leased by %d workers concurrently, want at most 1", id, count)
		}
	}
}

func TestReclaimStaleInflightReturnsExpiredLeaseToPending(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.InsertOutboxRow(context.Background(), newTestRow("key-1")); err != nil {
		t.Fatal(err)
	}

	leaseStart := time.Now().Add(-time.Hour)
	if _, err := s.SelectAndLeaseBatch(context.Background(), 10, leaseStart); err != nil {
		t.Fatal(err)
	}

	n, err := s.ReclaimStaleInflight(context.Background(), 5*time.Minute, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 stale inflight row reclaimed, got %d", n)
	}

	stats, err := s.OutboxStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats[OutboxPending] != 1 || stats[OutboxInflight] != 0 {
		t.Fatalf("expected the reclaimed row back in pending, got stats=%v", stats)
	}
}
