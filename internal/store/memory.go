package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and single-node/dev
// operation: map-backed, guarded by a single RWMutex, copy-on-read to
// prevent aliasing.
type MemoryStore struct {
	mu       sync.RWMutex
	tasks    map[uuid.UUID]*Task
	outbox   map[int64]*OutboxRow
	nextID   int64
	byKey    map[string]int64 // idempotency_key -> outbox id
	mappings map[string]uuid.UUID // "backend|external_id" -> task id
	traces   []*DecisionTrace
	nextTrID int64
}

// NewMemoryStore initializes an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:    make(map[uuid.UUID]*Task),
		outbox:   make(map[int64]*OutboxRow),
		byKey:    make(map[string]int64),
		mappings: make(map[string]uuid.UUID),
	}
}

func mappingKey(backend, externalID string) string { return backend + "|" + externalID }

// --- Task operations ---

func (s *MemoryStore) UpsertTask(ctx context.Context, task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *MemoryStore) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

func (s *MemoryStore) ListTasksByStatus(ctx context.Context, statuses []TaskStatus) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[TaskStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	result := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if want[t.Status] {
			result = append(result, t.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *MemoryStore) EnqueueTaskMutation(ctx context.Context, task *Task, row *OutboxRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task.Clone()
	if row == nil {
		return nil
	}
	if _, exists := s.byKey[row.IdempotencyKey]; exists {
		return nil // insert is a no-op on key conflict
	}
	s.insertOutboxLocked(row)
	return nil
}

// --- Outbox operations ---

func (s *MemoryStore) insertOutboxLocked(row *OutboxRow) {
	s.nextID++
	row.ID = s.nextID
	cp := *row
	s.outbox[row.ID] = &cp
	s.byKey[row.IdempotencyKey] = row.ID
}

func (s *MemoryStore) InsertOutboxRow(ctx context.Context, row *OutboxRow) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[row.IdempotencyKey]; exists {
		return false, nil
	}
	s.insertOutboxLocked(row)
	return true, nil
}

func (s *MemoryStore) SelectAndLeaseBatch(ctx context.Context, limit int, now time.Time) ([]*OutboxRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]*OutboxRow, 0)
	for _, row := range s.outbox {
		if row.Status != OutboxPending {
			continue
		}
		if row.NextRetryAt != nil && row.NextRetryAt.After(now) {
			continue
		}
		candidates = append(candidates, row)
	}
	sort.Slice(candidates, func(i, j int) bool {
		ni, nj := candidates[i].NextRetryAt, candidates[j].NextRetryAt
		if ni == nil && nj != nil {
			return true
		}
		if ni != nil && nj == nil {
			return false
		}
		if ni != nil && nj != nil && !ni.Equal(*nj) {
			return ni.Before(*nj)
		}
		return candidates[i].ID < candidates[j].ID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	leased := make([]*OutboxRow, 0, len(candidates))
	for _, row := range candidates {
		row.Status = OutboxInflight
		t := now
		row.InflightSince = &t
		row.UpdatedAt = now
		cp := *row
		leased = append(leased, &cp)
	}
	return leased, nil
}

func (s *MemoryStore) UpdateOutboxStatus(ctx context.Context, id int64, status OutboxStatus, retryCount int, nextRetryAt *time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[id]
	if !ok {
		return errors.New("outbox row not found")
	}
	row.Status = status
	row.RetryCount = retryCount
	row.NextRetryAt = nextRetryAt
	row.LastError = lastError
	row.UpdatedAt = time.Now()
	if status != OutboxInflight {
		row.InflightSince = nil
	}
	return nil
}

func (s *MemoryStore) ReclaimStaleInflight(ctx context.Context, leaseExpiry time.Duration, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, row := range s.outbox {
		if row.Status != OutboxInflight || row.InflightSince == nil {
			continue
		}
		if now.Sub(*row.InflightSince) > leaseExpiry {
			row.Status = OutboxPending
			row.InflightSince = nil
			row.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) OutboxStats(ctx context.Context) (map[OutboxStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := make(map[OutboxStatus]int)
	for _, row := range s.outbox {
		stats[row.Status]++
	}
	return stats, nil
}

func (s *MemoryStore) ListDeadLetters(ctx context.Context, limit int) ([]*OutboxRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*OutboxRow, 0)
	for _, row := range s.outbox {
		if row.Status == OutboxDeadLetter {
			cp := *row
			result = append(result, &cp)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (s *MemoryStore) RequeueDeadLetter(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[id]
	if !ok {
		return errors.New("outbox row not found")
	}
	if row.Status != OutboxDeadLetter {
		return errors.New("row is not dead-lettered")
	}
	row.Status = OutboxPending
	row.RetryCount = 0
	row.NextRetryAt = nil
	row.LastError = ""
	row.UpdatedAt = time.Now()
	return nil
}

// --- Task mapping operations ---

func (s *MemoryStore) UpsertMapping(ctx context.Context, backend, externalID string, taskID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[mappingKey(backend, externalID)] = taskID
	return nil
}

func (s *MemoryStore) GetMappingInternalID(ctx context.Context, backend, externalID string) (uuid.UUID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.mappings[mappingKey(backend, externalID)]
	return id, ok, nil
}

// --- Decision / audit trace operations ---

func (s *MemoryStore) AppendTrace(ctx context.Context, trace *DecisionTrace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTrID++
	cp := *trace
	cp.ID = s.nextTrID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.traces = append(s.traces, &cp)
	return nil
}

func (s *MemoryStore) ListTraces(ctx context.Context, from, to time.Time) ([]*DecisionTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*DecisionTrace, 0)
	for _, tr := range s.traces {
		if !tr.CreatedAt.Before(from) && !tr.CreatedAt.After(to) {
			cp := *tr
			result = append(result, &cp)
		}
	}
	return result, nil
}
