package jobscheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Geralt1983/Project-Archangel/internal/backend"
	"github.com/Geralt1983/Project-Archangel/internal/clock"
	"github.com/Geralt1983/Project-Archangel/internal/config"
	"github.com/Geralt1983/Project-Archangel/internal/coordination"
	"github.com/Geralt1983/Project-Archangel/internal/outbox"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

func newScheduler(t *testing.T, s store.Store, clk clock.Clock) *Scheduler {
	t.Helper()
	cfg := config.Default()
	worker := outbox.NewWorker(s, map[string]backend.Capability{}, nil, cfg.Outbox, clk, nil)
	reclaimer := outbox.NewReclaimer(s, cfg.Outbox.InflightLease, clk)
	producer := outbox.NewProducer(s)
	coord := coordination.NewMemoryCoordinator()
	return New(s, coord, cfg, clk, "test-owner", worker, reclaimer, producer)
}

func TestRunRescoreSweepRetriagesTasksNearingDeadline(t *testing.T) {
	s := store.NewMemoryStore()
	clk := clock.Fixed(time.Now())
	sched := newScheduler(t, s, clk)

	soon := clk.Now().Add(24 * time.Hour)
	task := &store.Task{
		ID:             uuid.New(),
		Title:          "near deadline",
		Status:         store.StatusPending,
		Deadline:       &soon,
		Importance:     3,
		LastActivityAt: clk.Now(),
	}
	if err := s.UpsertTask(context.Background(), task); err != nil {
		t.Fatal(err)
	}

	sched.runRescoreSweep(context.Background())

	updated, err := s.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Score == nil {
		t.Fatal("expected rescore sweep to assign a score to a task nearing its deadline")
	}
}

func TestRunRescoreSweepSkipsTasksWithoutNearDeadline(t *testing.T) {
	s := store.NewMemoryStore()
	clk := clock.Fixed(time.Now())
	sched := newScheduler(t, s, clk)

	far := clk.Now().Add(30 * 24 * time.Hour)
	task := &store.Task{
		ID:             uuid.New(),
		Title:          "far deadline",
		Status:         store.StatusPending,
		Deadline:       &far,
		LastActivityAt: clk.Now(),
	}
	if err := s.UpsertTask(context.Background(), task); err != nil {
		t.Fatal(err)
	}

	sched.runRescoreSweep(context.Background())

	updated, err := s.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Score != nil {
		t.Fatal("expected rescore sweep to leave a task with a distant deadline untouched")
	}
}

func TestRunStaleNudgeEnqueuesNotificationForQuietTask(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Now()
	clk := clock.Fixed(now)
	sched := newScheduler(t, s, clk)

	task := &store.Task{
		ID:             uuid.New(),
		Title:          "gone quiet",
		Status:         store.StatusInProgress,
		LastActivityAt: now.Add(-100 * time.Hour),
	}
	if err := s.UpsertTask(context.Background(), task); err != nil {
		t.Fatal(err)
	}

	sched.runStaleNudge(context.Background())

	stats, err := s.OutboxStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats[store.OutboxPending] != 1 {
		t.Fatalf("expected 1 notification row enqueued, got stats=%v", stats)
	}
}

func TestRunStaleNudgeSkipsRecentlyActiveTask(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Now()
	clk := clock.Fixed(now)
	sched := newScheduler(t, s, clk)

	task := &store.Task{
		ID:             uuid.New(),
		Title:          "still active",
		Status:         store.StatusInProgress,
		LastActivityAt: now.Add(-time.Hour),
	}
	if err := s.UpsertTask(context.Background(), task); err != nil {
		t.Fatal(err)
	}

	sched.runStaleNudge(context.Background())

	stats, err := s.OutboxStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 0 {
		t.Fatalf("expected no notification rows for a recently active task, got stats=%v", stats)
	}
}

func TestRunRebalanceProducesAssignmentsAndTraces(t *testing.T) {
	s := store.NewMemoryStore()
	clk := clock.Fixed(time.Now())
	sched := newScheduler(t, s, clk)

	for i := 0; i < 3; i++ {
		score := 0.54 - 0.02*float64(i)
		lastActivity := clk.Now()
		if i == 2 {
			// Quiet past the staleness window: its boost lifts the
			// lowest-scored task to the top, so the ranking changes.
			lastActivity = clk.Now().Add(-100 * time.Hour)
		}
		task := &store.Task{
			ID:             uuid.New(),
			Title:          "task",
			Client:         "acme",
			Status:         store.StatusPending,
			Importance:     3,
			EffortHours:    2,
			Score:          &score,
			LastActivityAt: lastActivity,
		}
		if err := s.UpsertTask(context.Background(), task); err != nil {
			t.Fatal(err)
		}
	}

	result, err := sched.RunRebalance(context.Background(), map[string]float64{}, 10, "test-session")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Assignments) == 0 {
		t.Fatal("expected at least one assignment from a non-empty task pool")
	}

	traces, err := s.ListTraces(context.Background(), clk.Now().Add(-time.Hour), clk.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) == 0 {
		t.Fatal("expected rebalance to append at least one decision trace")
	}
}
