package triage

import (
	"context"
	"time"

	"github.com/Geralt1983/Project-Archangel/internal/advisor"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

// Refine submits a snapshot to adv and merges its suggestion under the
// allow-list; allow-list enforcement lives in the merge step, not the
// adapter. Advisor timeouts or errors are non-fatal: the task is
// returned unchanged and wasRefined is false.
func Refine(ctx context.Context, task *store.Task, adv advisor.Advisor, timeout time.Duration) (wasRefined bool) {
	if adv == nil {
		return false
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snap := advisor.Snapshot{
		TaskID:      task.ID.String(),
		Title:       task.Title,
		Description: task.Description,
		Type:        task.Type,
		Client:      task.Client,
		Deadline:    task.Deadline,
		Importance:  task.Importance,
		Labels:      task.Labels,
		Subtasks:    task.Subtasks,
	}

	// Any error, not just advisor.ErrUnavailable, falls back to the
	// deterministic result: advisor timeouts or non-2xx responses never
	// block triage.
	suggestion, err := adv.Refine(cctx, snap)
	if err != nil || suggestion == nil {
		return false
	}

	merge(task, suggestion)
	return true
}

// merge applies only allow-listed fields from suggestion onto task. An
// advisor has no access to identity, status, or external bindings, so
// there is nothing else it could contradict.
func merge(task *store.Task, s *advisor.Suggestion) {
	if len(s.Labels) > 0 {
		task.Labels = dedupe(append(append([]string(nil), task.Labels...), s.Labels...))
	}
	if len(s.Subtasks) > 0 {
		task.Subtasks = dedupe(append(append([]string(nil), task.Subtasks...), s.Subtasks...))
	}
	if len(s.Checklist) > 0 {
		task.Checklist = dedupe(append(append([]string(nil), task.Checklist...), s.Checklist...))
	}

	if s.ScoreOverride != nil {
		override := clamp01(*s.ScoreOverride)
		current := 0.0
		if task.Score != nil {
			current = *task.Score
		}
		final := override
		if current > override {
			final = current
		}
		task.Score = &final
	}

	if s.HoldCreation {
		// Blocks backend creation only; local derivation (subtasks,
		// checklist already merged above) is retained.
		task.RequiresReview = true
	}
	if s.RequiresReview {
		task.RequiresReview = true
	}
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
