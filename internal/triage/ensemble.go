package triage

import (
	"time"

	"github.com/Geralt1983/Project-Archangel/internal/config"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

// FuzzyThresholdScorer folds in the two per-client knobs the baseline
// scorer deliberately ignores: urgency_threshold and
// complexity_preference are inputs to the ensemble scorer only.
// It nudges the baseline urgency term toward 1 once the configured
// threshold is crossed, and nudges the effort term toward the client's
// stated preference for simple or complex work.
type FuzzyThresholdScorer struct{}

func (FuzzyThresholdScorer) Name() string { return "fuzzy_threshold" }

func (FuzzyThresholdScorer) Score(task *store.Task, cfg *config.Config, now time.Time) (float64, Factors) {
	base, f := BaselineScorer{}.Score(task, cfg, now)

	cl, ok := cfg.Clients[task.Client]
	if !ok {
		return base, f
	}

	adjusted := f
	if cl.UrgencyThreshold > 0 && f.Urgency >= cl.UrgencyThreshold {
		// Soft-saturate urgency past the client's own threshold rather
		// than hard-clamping, so two tasks both past threshold still
		// separate by how far past they are.
		over := (f.Urgency - cl.UrgencyThreshold) / (1 - cl.UrgencyThreshold + 1e-9)
		adjusted.Urgency = clamp01(f.Urgency + 0.1*over)
	}

	switch cl.ComplexityPreference {
	case "simple":
		adjusted.EffortFactor = clamp01(f.EffortFactor * 1.1)
	case "complex":
		adjusted.EffortFactor = clamp01(f.EffortFactor * 0.9)
	}

	w := cfg.Scoring.Weights
	score := w.Urgency*adjusted.Urgency +
		w.Importance*adjusted.ImportanceN +
		w.Effort*adjusted.EffortFactor +
		w.Freshness*adjusted.Freshness +
		w.SLAPressure*adjusted.SLAPressure +
		w.ProgressInv*adjusted.ProgressInv
	return clamp01(score), adjusted
}

// HistoryWeightedScorer reweights freshness and progress_inv more
// heavily, favoring recently created tasks and tasks with little
// recorded progress — a different lens on the same factors than the
// baseline's static weights, composed only in ensemble mode.
type HistoryWeightedScorer struct{}

func (HistoryWeightedScorer) Name() string { return "history_weighted" }

func (HistoryWeightedScorer) Score(task *store.Task, cfg *config.Config, now time.Time) (float64, Factors) {
	f := computeFactors(task, cfg, now)
	w := cfg.Scoring.Weights

	// Borrow half of the importance weight and give it to freshness and
	// progress_inv, split evenly; every other factor keeps its baseline
	// weight. The total still sums to 1 since it is a weight transfer,
	// not an addition.
	shift := w.Importance / 2
	score := w.Urgency*f.Urgency +
		(w.Importance-shift)*f.ImportanceN +
		w.Effort*f.EffortFactor +
		(w.Freshness+shift/2)*f.Freshness +
		w.SLAPressure*f.SLAPressure +
		(w.ProgressInv+shift/2)*f.ProgressInv
	return clamp01(score), f
}

type ensembleScorer struct {
	weights config.EnsembleWeights
	base    Scorer
	fuzzy   Scorer
	history Scorer
}

// Ensemble builds the three-scorer composite using the config's
// ensemble weights: fixed initial weights (0.40, 0.35, 0.25) that may
// be adapted offline.
func Ensemble(cfg *config.Config) *ensembleScorer {
	return &ensembleScorer{
		weights: cfg.Scoring.Ensemble,
		base:    BaselineScorer{},
		fuzzy:   FuzzyThresholdScorer{},
		history: HistoryWeightedScorer{},
	}
}

func (e *ensembleScorer) run(task *store.Task, cfg *config.Config, now time.Time) float64 {
	baseScore, _ := e.base.Score(task, cfg, now)
	fuzzyScore, _ := e.fuzzy.Score(task, cfg, now)
	historyScore, _ := e.history.Score(task, cfg, now)

	combined := e.weights.Baseline*baseScore +
		e.weights.FuzzyThreshold*fuzzyScore +
		e.weights.HistoryWeighted*historyScore
	return clamp01(combined)
}
