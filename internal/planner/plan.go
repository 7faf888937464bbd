package planner

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Geralt1983/Project-Archangel/internal/clock"
	"github.com/Geralt1983/Project-Archangel/internal/config"
	"github.com/Geralt1983/Project-Archangel/internal/observability"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

const (
	fairnessAlpha    = 0.1
	fairnessClamp    = 0.1
	stalenessBoost   = 0.05
	staleAfter       = 72 * time.Hour
)

// Assignment is one task's outcome from a planning run.
type Assignment struct {
	TaskID   uuid.UUID
	Client   string
	Admitted bool
	Reason   string
}

// Result bundles a rebalance run's assignments and the audit trail
// explaining every rank change fairness/staleness introduced.
type Result struct {
	Assignments []Assignment
	Traces      []*store.DecisionTrace
}

// Plan selects and packs eligible candidates against a global hour
// budget and per-client daily capacity, applying a fairness deficit
// adjustment and a staleness boost on top of each task's persisted
// score before ranking.
//
// clientRecentHours is the sum of effort hours already delivered to
// each client over the trailing 7 days; globalBudgetHours bounds the
// whole run regardless of per-client headroom.
func Plan(ctx context.Context, tasks []*store.Task, cfg *config.Config, clientRecentHours map[string]float64, globalBudgetHours float64, clk clock.Clock, sessionID string) *Result {
	start := clk.Now()
	defer func() {
		observability.PlannerRunDuration.Observe(clk.Now().Sub(start).Seconds())
	}()

	now := clk.Now()
	eligible := filterEligible(tasks)

	rawRank := rankByScore(eligible, func(t *store.Task) float64 { return scoreOf(t) })

	type adjusted struct {
		task       *store.Task
		fairness   float64
		staleness  float64
		finalScore float64
	}
	byID := make(map[uuid.UUID]adjusted, len(eligible))
	queue := NewQueue()
	for _, t := range eligible {
		fa := fairnessAdjustment(t.Client, cfg, clientRecentHours)
		sb := 0.0
		if now.Sub(t.LastActivityAt) > staleAfter {
			sb = stalenessBoost
		}
		finalScore := scoreOf(t) + fa + sb
		byID[t.ID] = adjusted{task: t, fairness: fa, staleness: sb, finalScore: finalScore}
		queue.Push(&Candidate{TaskID: t.ID, Client: t.Client, Score: finalScore, Effort: t.EffortHours})
	}

	// Walk the queue highest-score-first to get the final packing order;
	// its tie-break matches rankByScore's so trace deltas stay meaningful.
	adjustedList := make([]adjusted, 0, len(eligible))
	for c := queue.Pop(); c != nil; c = queue.Pop() {
		adjustedList = append(adjustedList, byID[c.TaskID])
	}

	traces := make([]*store.DecisionTrace, 0)
	for newRank, a := range adjustedList {
		oldRank := rawRank[a.task.ID]
		if oldRank != newRank {
			traces = append(traces, &store.DecisionTrace{
				SessionID:      sessionID,
				TaskAID:        a.task.ID,
				Rationale:      "fairness/staleness adjustment changed rank",
				DeltaFairness:  a.fairness,
				DeltaStaleness: a.staleness,
				DeltaTotal:     a.fairness + a.staleness,
				RankOld:        oldRank,
				RankNew:        newRank,
				CreatedAt:      now,
			})
		}
	}

	clientRemaining := make(map[string]float64, len(cfg.Clients))
	for name, c := range cfg.Clients {
		clientRemaining[name] = c.DailyCapacityHours
	}

	remainingGlobal := globalBudgetHours
	assignments := make([]Assignment, 0, len(adjustedList))
	admitted := 0
	for _, a := range adjustedList {
		remClient, hasClient := clientRemaining[a.task.Client]
		if !hasClient {
			remClient = remainingGlobal // no per-client cap configured, bound only by global
		}

		if a.task.EffortHours > remainingGlobal {
			assignments = append(assignments, Assignment{TaskID: a.task.ID, Client: a.task.Client, Admitted: false, Reason: "global budget exhausted"})
			continue
		}
		if hasClient && a.task.EffortHours > remClient {
			assignments = append(assignments, Assignment{TaskID: a.task.ID, Client: a.task.Client, Admitted: false, Reason: "client daily capacity exhausted"})
			continue
		}

		remainingGlobal -= a.task.EffortHours
		if hasClient {
			clientRemaining[a.task.Client] -= a.task.EffortHours
		}
		admitted++
		assignments = append(assignments, Assignment{TaskID: a.task.ID, Client: a.task.Client, Admitted: true})
	}

	observability.PlannerAssignments.WithLabelValues("admitted").Add(float64(admitted))
	observability.PlannerAssignments.WithLabelValues("deferred").Add(float64(len(assignments) - admitted))

	return &Result{Assignments: assignments, Traces: traces}
}

func filterEligible(tasks []*store.Task) []*store.Task {
	out := make([]*store.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.RequiresReview {
			continue
		}
		if t.Status != store.StatusPending && t.Status != store.StatusInProgress {
			continue
		}
		out = append(out, t)
	}
	return out
}

func scoreOf(t *store.Task) float64 {
	if t.Score == nil {
		return 0
	}
	return *t.Score
}

func fairnessAdjustment(client string, cfg *config.Config, recent map[string]float64) float64 {
	cc, ok := cfg.Clients[client]
	if !ok || cc.DailyCapacityHours <= 0 {
		return 0
	}
	target := cc.DailyCapacityHours * 7
	deficit := target - recent[client]
	normalized := deficit / target
	adj := fairnessAlpha * normalized
	if adj > fairnessClamp {
		adj = fairnessClamp
	}
	if adj < -fairnessClamp {
		adj = -fairnessClamp
	}
	return adj
}

// rankByScore returns each task's 0-indexed rank under scoreFn,
// descending, with the same TaskID tie-break the final ordering uses.
func rankByScore(tasks []*store.Task, scoreFn func(*store.Task) float64) map[uuid.UUID]int {
	ordered := append([]*store.Task(nil), tasks...)
	sort.Slice(ordered, func(i, j int) bool {
		si, sj := scoreFn(ordered[i]), scoreFn(ordered[j])
		if si != sj {
			return si > sj
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})
	ranks := make(map[uuid.UUID]int, len(ordered))
	for i, t := range ordered {
		ranks[t.ID] = i
	}
	return ranks
}
