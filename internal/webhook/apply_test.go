package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Geralt1983/Project-Archangel/internal/clock"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

func seedTask(t *testing.T, s store.Store, status store.TaskStatus, updatedAt time.Time) (*store.Task, string) {
	t.Helper()
	task := &store.Task{
		ID:        uuid.New(),
		Title:     "x",
		Status:    status,
		UpdatedAt: updatedAt,
	}
	if err := s.UpsertTask(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	externalID := "ext-" + task.ID.String()
	if err := s.UpsertMapping(context.Background(), "jira", externalID, task.ID); err != nil {
		t.Fatal(err)
	}
	return task, externalID
}

func TestApplyAdvancesStatus(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, externalID := seedTask(t, s, store.StatusPending, now)

	r := NewRouter(s, clock.Fixed(now.Add(time.Hour)))
	applied, err := r.Apply(context.Background(), Event{
		Backend: "jira", ExternalID: externalID,
		NewStatus: store.StatusInProgress, Timestamp: now.Add(time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("expected forward transition to apply")
	}
}

func TestApplyIgnoresStaleRegression(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	task, externalID := seedTask(t, s, store.StatusCompleted, now)

	r := NewRouter(s, clock.Fixed(now.Add(time.Hour)))
	applied, err := r.Apply(context.Background(), Event{
		Backend: "jira", ExternalID: externalID,
		NewStatus: store.StatusInProgress, Timestamp: now.Add(-time.Minute), // older than task.UpdatedAt
	})
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Fatal("expected a stale regression on a terminal task to be ignored")
	}

	got, err := s.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusCompleted {
		t.Fatalf("expected status to remain completed, got %s", got.Status)
	}
}

func TestApplyUnmappedExternalID(t *testing.T) {
	s := store.NewMemoryStore()
	r := NewRouter(s, clock.Fixed(time.Now()))
	_, err := r.Apply(context.Background(), Event{Backend: "jira", ExternalID: "nope", NewStatus: store.StatusInProgress})
	if err != ErrUnmappedExternalID {
		t.Fatalf("expected ErrUnmappedExternalID, got %v", err)
	}
}

func TestApplySameStatusStillUpdatesLastActivity(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	task, externalID := seedTask(t, s, store.StatusInProgress, now)
	task.LastActivityAt = now
	if err := s.UpsertTask(context.Background(), task); err != nil {
		t.Fatal(err)
	}

	later := now.Add(time.Hour)
	r := NewRouter(s, clock.Fixed(later))
	applied, err := r.Apply(context.Background(), Event{
		Backend: "jira", ExternalID: externalID,
		NewStatus: store.StatusInProgress, Timestamp: now.Add(time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Fatal("expected a same-status event to report applied=false")
	}

	got, err := s.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusInProgress {
		t.Fatalf("expected status to remain unchanged, got %s", got.Status)
	}
	if !got.LastActivityAt.Equal(later) {
		t.Fatalf("expected last_activity_at to update to the fresh delivery's time even with no status change, got %v want %v", got.LastActivityAt, later)
	}
}

func TestApplyRejectsEmptyStatus(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	task, externalID := seedTask(t, s, store.StatusPending, now)

	r := NewRouter(s, clock.Fixed(now.Add(time.Hour)))
	applied, err := r.Apply(context.Background(), Event{
		Backend: "jira", ExternalID: externalID,
		NewStatus: store.TaskStatus(""), Timestamp: now.Add(time.Minute),
	})
	if err != ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus for an empty status field, got %v", err)
	}
	if applied {
		t.Fatal("expected an invalid status event to never be applied")
	}

	got, err := s.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusPending {
		t.Fatalf("expected the task's status to be untouched by an invalid event, got %q", got.Status)
	}
}

func TestApplyRejectsUnknownStatus(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, externalID := seedTask(t, s, store.StatusPending, now)

	r := NewRouter(s, clock.Fixed(now.Add(time.Hour)))
	_, err := r.Apply(context.Background(), Event{
		Backend: "jira", ExternalID: externalID,
		NewStatus: store.TaskStatus("archived"), Timestamp: now.Add(time.Minute),
	})
	if err != ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus for a status outside the closed enum, got %v", err)
	}
}
