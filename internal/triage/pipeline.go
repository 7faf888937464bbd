package triage

import (
	"context"

	"github.com/Geralt1983/Project-Archangel/internal/advisor"
	"github.com/Geralt1983/Project-Archangel/internal/clock"
	"github.com/Geralt1983/Project-Archangel/internal/config"
	"github.com/Geralt1983/Project-Archangel/internal/errs"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

// Result is the outcome of running the full pipeline once.
type Result struct {
	Task           *store.Task
	AdvisorApplied bool
	AdvisorSkipped bool // true when the advisor was configured but unreachable
}

// Run executes normalize → classify → fill_defaults → derive_children
// → score → refine in order, returning an InvariantViolation error only
// for conditions that must be rejected outright rather than defaulted
// away (a non-null deadline that is not strictly after created_at).
func Run(ctx context.Context, raw RawIntake, cfg *config.Config, clk clock.Clock, adv advisor.Advisor) (*Result, error) {
	task := Normalize(raw, clk)

	if task.Deadline != nil && !task.Deadline.After(task.CreatedAt) {
		return nil, errs.New(errs.KindInvariantViolation, "deadline must be strictly after created_at")
	}

	task.Type = Classify(task.Title, task.Description, cfg)
	FillDefaults(task, cfg)
	DeriveChildren(task, cfg)
	Score(task, cfg, clk.Now())

	result := &Result{Task: task}
	if cfg.Advisor.Enabled && adv != nil {
		if Refine(ctx, task, adv, cfg.Advisor.Timeout) {
			result.AdvisorApplied = true
			// Refine only ever raises the score or flags requires_review.
			// Re-scoring re-stamps urgency/complexity levels but recomputes
			// the baseline, so the higher advisor-merged score is kept.
			merged := *task.Score
			Score(task, cfg, clk.Now())
			if merged > *task.Score {
				task.Score = &merged
			}
		} else {
			result.AdvisorSkipped = true
		}
	}

	return result, nil
}

// Retriage re-runs the deterministic portion of the pipeline (classify
// through score) over an existing task, the implementation behind the
// Re-triage endpoint. Advisor refinement is not repeated: a re-triage
// is meant to reconcile drift in config/clock, not to solicit new
// external advice.
func Retriage(task *store.Task, cfg *config.Config, clk clock.Clock) {
	task.Type = Classify(task.Title, task.Description, cfg)
	FillDefaults(task, cfg)
	if len(task.Subtasks) == 0 && len(task.Checklist) == 0 {
		DeriveChildren(task, cfg)
	}
	Score(task, cfg, clk.Now())
	task.UpdatedAt = clk.Now()
}
