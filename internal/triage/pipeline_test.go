package triage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Geralt1983/Project-Archangel/internal/clock"
	"github.com/Geralt1983/Project-Archangel/internal/config"
)

func TestRunAssignsDefaultsAndScore(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.Fixed(now)
	cfg := config.Default()

	deadline := now.Add(6 * time.Hour)
	raw := RawIntake{
		Title:       "  Login page throws an error  ",
		Description: "users can't sign in, looks like a regression",
		Client:      " ACME ",
		Deadline:    &deadline,
	}

	result, err := Run(context.Background(), raw, cfg, clk, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	task := result.Task
	if task.Client != "acme" {
		t.Fatalf("expected client to be case-folded/trimmed, got %q", task.Client)
	}
	if task.Type != "bugfix" {
		t.Fatalf("expected classification to land on bugfix, got %q", task.Type)
	}
	if task.EffortHours <= 0 {
		t.Fatalf("expected fill_defaults to populate a positive effort_hours, got %v", task.EffortHours)
	}
	if len(task.Subtasks) == 0 || len(task.Checklist) == 0 {
		t.Fatal("expected derive_children to populate subtasks and checklist")
	}
	if task.Score == nil {
		t.Fatal("expected score to be computed")
	}
}

func TestRunRejectsDeadlineNotAfterCreatedAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.Fixed(now)
	cfg := config.Default()

	past := now.Add(-time.Hour)
	raw := RawIntake{Title: "t", Client: "acme", Deadline: &past}

	_, err := Run(context.Background(), raw, cfg, clk, nil)
	if err == nil {
		t.Fatal("expected an invariant violation for a deadline not strictly after created_at")
	}
}

func TestTriageOfTriageIsAFixedPoint(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.Fixed(now)
	cfg := config.Default()

	deadline := now.Add(6 * time.Hour)
	raw := RawIntake{Title: "Fix the crash", Client: "acme", Deadline: &deadline}

	result, err := Run(context.Background(), raw, cfg, clk, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	once := result.Task.Clone()

	Retriage(once, cfg, clk)
	Retriage(once, cfg, clk)
	twice := once

	if *twice.Score != *result.Task.Score {
		t.Fatalf("expected score to be a fixed point under repeated retriage, got %v then %v", *result.Task.Score, *twice.Score)
	}
	if twice.Type != result.Task.Type {
		t.Fatalf("expected type classification to be a fixed point, got %q then %q", result.Task.Type, twice.Type)
	}
	if len(twice.Subtasks) != len(result.Task.Subtasks) || len(twice.Checklist) != len(result.Task.Checklist) {
		t.Fatal("expected derive_children to stay a fixed point once subtasks/checklist are populated")
	}
}

func TestRefineUnavailableLeavesDeterministicTriageByteIdentical(t *testing.T) {
	// refine(task, advisor_unavailable) = deterministic_triage(task):
	// with the advisor disabled, Run's output must match the deterministic
	// stages applied by hand to the same normalized task.
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.Fixed(now)
	cfg := config.Default()
	cfg.Advisor.Enabled = false

	deadline := now.Add(6 * time.Hour)
	raw := RawIntake{Title: "Fix the crash", Client: "acme", Deadline: &deadline}

	result, err := Run(context.Background(), raw, cfg, clk, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reference := Normalize(raw, clk)
	reference.ID = result.Task.ID
	reference.Type = Classify(reference.Title, reference.Description, cfg)
	FillDefaults(reference, cfg)
	DeriveChildren(reference, cfg)
	Score(reference, cfg, clk.Now())

	if *result.Task.Score != *reference.Score {
		t.Fatalf("expected advisor-unavailable run to match deterministic triage, got %v vs %v", *result.Task.Score, *reference.Score)
	}
	gotJSON, err := json.Marshal(result.Task)
	if err != nil {
		t.Fatal(err)
	}
	wantJSON, err := json.Marshal(reference)
	if err != nil {
		t.Fatal(err)
	}
	if string(gotJSON) != string(wantJSON) {
		t.Fatalf("expected advisor-unavailable run to be byte-identical to deterministic triage, got %s vs %s", gotJSON, wantJSON)
	}
	if result.AdvisorApplied {
		t.Fatal("expected AdvisorApplied to be false when the advisor is disabled")
	}
}
