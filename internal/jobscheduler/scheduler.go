// Package jobscheduler runs the middleware's periodic jobs — outbox
// tick, lease reclaim, re-score sweep, stale nudge, and daily rebalance — each
// exclusive across scheduler instances via its own named
// coordination.JobLock, so horizontally scaled deployments never run
// the same job twice concurrently.
package jobscheduler

import (
	"context"
	"log"
	"time"

	"github.com/Geralt1983/Project-Archangel/internal/clock"
	"github.com/Geralt1983/Project-Archangel/internal/config"
	"github.com/Geralt1983/Project-Archangel/internal/coordination"
	"github.com/Geralt1983/Project-Archangel/internal/outbox"
	"github.com/Geralt1983/Project-Archangel/internal/planner"
	"github.com/Geralt1983/Project-Archangel/internal/store"
	"github.com/Geralt1983/Project-Archangel/internal/triage"
)

// Scheduler owns the five periodic jobs and their locks.
type Scheduler struct {
	store       store.Store
	coordinator coordination.Coordinator
	cfg         *config.Config
	clk         clock.Clock
	ownerID     string

	worker    *outbox.Worker
	reclaimer *outbox.Reclaimer
	producer  *outbox.Producer
}

func New(s store.Store, coord coordination.Coordinator, cfg *config.Config, clk clock.Clock, ownerID string, worker *outbox.Worker, reclaimer *outbox.Reclaimer, producer *outbox.Producer) *Scheduler {
	return &Scheduler{
		store:       s,
		coordinator: coord,
		cfg:         cfg,
		clk:         clk,
		ownerID:     ownerID,
		worker:      worker,
		reclaimer:   reclaimer,
		producer:    producer,
	}
}

// Start launches every job's lock-acquire/run loop and returns
// immediately; each job stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.startJob(ctx, "outbox-tick", s.cfg.Scheduler.OutboxTick, s.runOutboxTick)
	s.startJob(ctx, "lease-reclaim", s.cfg.Outbox.InflightLease/2, s.runReclaim)
	s.startJob(ctx, "rescore-sweep", s.cfg.Scheduler.RescoreInterval, s.runRescoreSweep)
	s.startJob(ctx, "stale-nudge", s.cfg.Scheduler.StaleNudgeInterval, s.runStaleNudge)
	s.startJob(ctx, "daily-rebalance", s.cfg.Scheduler.RebalanceInterval, s.runDailyRebalance)
}

// runDailyRebalance is the scheduled counterpart to the on-demand
// Rebalance endpoint; it uses no per-client usage history (a fresh
// zero-valued map), so it ranks on raw score, staleness, and whatever
// fairness deficit a zeroed history implies until real usage tracking
// is wired in.
func (s *Scheduler) runDailyRebalance(ctx context.Context) {
	if _, err := s.RunRebalance(ctx, map[string]float64{}, s.cfg.Scheduler.DailyGlobalBudgetHours, "daily-"+s.clk.Now().UTC().Format("2006-01-02")); err != nil {
		log.Printf("jobscheduler: daily rebalance failed: %v", err)
	}
}

func (s *Scheduler) startJob(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	lock := coordination.NewJobLock(s.coordinator, name, s.ownerID, interval*3)
	lock.SetCallbacks(func(lctx context.Context) {
		go s.runLoop(lctx, name, interval, fn)
	}, func() {
		log.Printf("jobscheduler[%s]: lost lock", name)
	})
	go lock.Run(ctx)
}

func (s *Scheduler) runLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (s *Scheduler) runOutboxTick(ctx context.Context) {
	if _, err := s.worker.Tick(ctx); err != nil {
		log.Printf("jobscheduler: outbox tick failed: %v", err)
	}
}

func (s *Scheduler) runReclaim(ctx context.Context) {
	if _, err := s.reclaimer.Sweep(ctx); err != nil {
		log.Printf("jobscheduler: lease reclaim failed: %v", err)
	}
}

// runRescoreSweep re-triages every pending/in-progress task whose
// deadline falls inside the next 48h, so urgency keeps climbing as a
// deadline approaches even without new activity on the task.
func (s *Scheduler) runRescoreSweep(ctx context.Context) {
	tasks, err := s.store.ListTasksByStatus(ctx, []store.TaskStatus{store.StatusPending, store.StatusInProgress})
	if err != nil {
		log.Printf("jobscheduler: rescore sweep list failed: %v", err)
		return
	}
	horizon := s.clk.Now().Add(48 * time.Hour)
	for _, task := range tasks {
		if task.Deadline == nil || task.Deadline.After(horizon) {
			continue
		}
		triage.Retriage(task, s.cfg, s.clk)
		if err := s.store.UpsertTask(ctx, task); err != nil {
			log.Printf("jobscheduler: rescore sweep upsert failed for %s: %v", task.ID, err)
		}
	}
}

// runStaleNudge enqueues a best-effort notification outbox row for any
// task that has gone quiet past the configured staleness threshold,
// keyed by (task_id, day) so repeated sweeps on the same day never
// double-notify.
func (s *Scheduler) runStaleNudge(ctx context.Context) {
	tasks, err := s.store.ListTasksByStatus(ctx, []store.TaskStatus{store.StatusPending, store.StatusInProgress})
	if err != nil {
		log.Printf("jobscheduler: stale nudge list failed: %v", err)
		return
	}
	now := s.clk.Now()
	day := now.UTC().Format("2006-01-02")
	for _, task := range tasks {
		if now.Sub(task.LastActivityAt) < s.cfg.Scheduler.StaleThreshold {
			continue
		}
		payload := map[string]interface{}{
			"task_id": task.ID.String(),
			"title":   task.Title,
			"day":     day,
		}
		if _, err := s.producer.EnqueueOnly(ctx, task.ID, "notifications", store.OpNotify, "/notify/stale-task", payload, nil); err != nil {
			log.Printf("jobscheduler: stale nudge enqueue failed for %s: %v", task.ID, err)
		}
	}
}

// RunRebalance executes an on-demand planning pass; the HTTP handler
// for the Rebalance endpoint and the daily scheduled job both call
// this directly rather than going through a ticker, since a rebalance
// is a single bounded computation, not an ongoing loop.
func (s *Scheduler) RunRebalance(ctx context.Context, clientRecentHours map[string]float64, globalBudgetHours float64, sessionID string) (*planner.Result, error) {
	tasks, err := s.store.ListTasksByStatus(ctx, []store.TaskStatus{store.StatusPending, store.StatusInProgress})
	if err != nil {
		return nil, err
	}
	result := planner.Plan(ctx, tasks, s.cfg, clientRecentHours, globalBudgetHours, s.clk, sessionID)
	for _, trace := range result.Traces {
		if err := s.store.AppendTrace(ctx, trace); err != nil {
			log.Printf("jobscheduler: append trace failed: %v", err)
		}
	}
	return result, nil
}
