package triage

import (
	"math"
	"time"

	"github.com/Geralt1983/Project-Archangel/internal/config"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

// Factors holds the six normalized inputs to the baseline weighted sum,
// kept around for audit traces and tests that assert monotonicity of
// individual terms.
type Factors struct {
	Urgency       float64
	ImportanceN   float64
	EffortFactor  float64
	Freshness     float64
	SLAPressure   float64
	ProgressInv   float64
}

// Scorer is the pure-function contract every scoring strategy
// implements, so the ensemble can compose three of them behind one
// interface.
type Scorer interface {
	Name() string
	Score(task *store.Task, cfg *config.Config, now time.Time) (float64, Factors)
}

// computeFactors derives the six normalized factors shared by every
// scorer; only the combination weights differ between strategies.
func computeFactors(task *store.Task, cfg *config.Config, now time.Time) Factors {
	sc := cfg.Scoring

	var urgency float64
	if task.Deadline != nil {
		hoursToDeadline := task.Deadline.Sub(now).Hours()
		horizon := sc.UrgencyHorizon.Hours()
		urgency = clamp01(1 - hoursToDeadline/horizon)
	}

	importanceN := (float64(task.Importance) - 1) / 4

	effortFactor := 1 - clamp01(task.EffortHours/sc.EffortCapHours)

	ageHours := now.Sub(task.CreatedAt).Hours()
	freshness := math.Exp(-ageHours / sc.FreshnessTauHours)

	var slaPressure float64
	if cl, ok := cfg.Clients[task.Client]; ok && cl.SLAHours > 0 {
		elapsed := now.Sub(task.CreatedAt).Hours()
		hoursRemaining := cl.SLAHours - elapsed
		slaPressure = clamp01(1 - hoursRemaining/cl.SLAHours)
	}

	progressInv := 1 - math.Min(task.RecentProgress, 1)

	return Factors{
		Urgency:      urgency,
		ImportanceN:  importanceN,
		EffortFactor: effortFactor,
		Freshness:    freshness,
		SLAPressure:  slaPressure,
		ProgressInv:  progressInv,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// BaselineScorer implements the six-factor weighted sum.
type BaselineScorer struct{}

func (BaselineScorer) Name() string { return "baseline" }

func (BaselineScorer) Score(task *store.Task, cfg *config.Config, now time.Time) (float64, Factors) {
	f := computeFactors(task, cfg, now)
	w := cfg.Scoring.Weights
	score := w.Urgency*f.Urgency +
		w.Importance*f.ImportanceN +
		w.Effort*f.EffortFactor +
		w.Freshness*f.Freshness +
		w.SLAPressure*f.SLAPressure +
		w.ProgressInv*f.ProgressInv
	return clamp01(score), f
}

// Score computes a task's score and derived metadata under the
// configured mode (baseline or ensemble), and stamps UrgencyLevel /
// ComplexityLevel / ScoringMethod onto the task.
func Score(task *store.Task, cfg *config.Config, now time.Time) float64 {
	var s float64
	if cfg.Scoring.Mode == config.ScoringEnsemble {
		s = Ensemble(cfg).run(task, cfg, now)
		task.ScoringMethod = "ensemble"
	} else {
		var f Factors
		s, f = BaselineScorer{}.Score(task, cfg, now)
		_ = f
		task.ScoringMethod = "baseline"
	}

	task.Score = &s
	task.UrgencyLevel = urgencyLevel(task, cfg, now)
	task.ComplexityLevel = complexityLevel(task.EffortHours)
	return s
}

func urgencyLevel(task *store.Task, cfg *config.Config, now time.Time) string {
	f := computeFactors(task, cfg, now)
	switch {
	case f.Urgency >= 0.75:
		return "critical"
	case f.Urgency >= 0.5:
		return "high"
	case f.Urgency >= 0.25:
		return "medium"
	default:
		return "low"
	}
}

func complexityLevel(effortHours float64) string {
	switch {
	case effortHours < 1:
		return "trivial"
	case effortHours < 4:
		return "small"
	case effortHours < 8:
		return "medium"
	default:
		return "large"
	}
}
