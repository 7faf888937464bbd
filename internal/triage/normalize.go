// Package triage implements the deterministic normalize → classify →
// fill_defaults → derive_children → score → refine pipeline: a sequence
// of small pure transforms applied to one task before it is persisted.
package triage

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Geralt1983/Project-Archangel/internal/clock"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

// RawIntake is the unprocessed submission from the intake endpoint,
// before any defaults or derived fields exist.
type RawIntake struct {
	Title       string
	Description string
	Client      string
	Deadline    *time.Time
	Importance  *int
	EffortHours *float64
	Labels      []string
}

// Normalize trims whitespace, case-folds the client tag, and assigns
// identity and creation time. It never fails: a blank title becomes
// "untitled" rather than rejecting the intake, falling back instead of
// erroring out of the deterministic pipeline.
func Normalize(raw RawIntake, clk clock.Clock) *store.Task {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		title = "untitled"
	}
	now := clk.Now().UTC()

	t := &store.Task{
		ID:             uuid.New(),
		Title:          title,
		Description:    strings.TrimSpace(raw.Description),
		Client:         strings.ToLower(strings.TrimSpace(raw.Client)),
		CreatedAt:      now,
		UpdatedAt:      now,
		LastActivityAt: now,
		Status:         store.StatusPending,
		Labels:         append([]string(nil), raw.Labels...),
	}

	if raw.Deadline != nil {
		d := raw.Deadline.UTC()
		t.Deadline = &d
	}
	if raw.Importance != nil {
		t.Importance = *raw.Importance
	}
	if raw.EffortHours != nil {
		t.EffortHours = *raw.EffortHours
	}
	return t
}
