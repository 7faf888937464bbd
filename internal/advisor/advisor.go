// Package advisor implements the optional remote refinement capability:
// a single polymorphic Refine operation, an allow-list enforced by the
// triage merge step rather than the adapter, and a circuit breaker
// gating the remote call.
package advisor

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned whenever the advisor cannot be reached or
// is deliberately disabled; callers treat this as non-fatal. Advisor
// timeouts or non-2xx responses never block triage.
var ErrUnavailable = errors.New("advisor: unavailable")

// Snapshot carries only the fields needed for advice, never the full
// task.
type Snapshot struct {
	TaskID      string
	Title       string
	Description string
	Type        string
	Client      string
	Deadline    *time.Time
	Importance  int
	Labels      []string
	Subtasks    []string
}

// Suggestion is the allow-listed delta an advisor may propose. Every
// field is optional; zero values mean "no opinion".
type Suggestion struct {
	Labels         []string
	Subtasks       []string
	Checklist      []string
	ScoreOverride  *float64
	HoldCreation   bool
	RequiresReview bool
}

// Advisor is the polymorphic capability every implementation (stub,
// HTTP-backed, future LLM-backed) satisfies.
type Advisor interface {
	Refine(ctx context.Context, snap Snapshot) (*Suggestion, error)
}

// StubAdvisor never has an opinion; it exists so tests and
// advisor-disabled deployments get a deterministic ErrUnavailable
// instead of a nil-pointer Advisor.
type StubAdvisor struct{}

func (StubAdvisor) Refine(ctx context.Context, snap Snapshot) (*Suggestion, error) {
	return nil, ErrUnavailable
}
