// Package config holds the read-only rules the rest of the system is
// evaluated against: task type defaults, client SLAs, scoring weights,
// outbox/scheduler/advisor tunables, and backend credentials. None of it
// is mutated after process start; config + the injected clock are the
// only state every pure component is allowed to depend on.
package config

import "time"

// TaskTypeConfig holds the defaults and derivation templates for one
// task type (bugfix, report, onboarding, general, ...).
type TaskTypeConfig struct {
	Name               string
	DefaultEffortHours float64
	DefaultImportance  int
	Labels             []string
	ChecklistTemplate  []string
	SubtasksTemplate   []string
	ClassifyKeywords   []string
}

// ClientConfig holds the per-client knobs that influence scoring and
// planning.
type ClientConfig struct {
	Tag                   string
	SLAHours              float64
	DailyCapacityHours    float64
	ImportanceBias        float64
	UrgencyThreshold      float64 // ensemble-only, see ScoringMode
	ComplexityPreference  string  // ensemble-only, see ScoringMode
}

// ScoringWeights are the six baseline-scorer factor weights used in the
// weighted sum. They must sum to 1.0.
type ScoringWeights struct {
	Urgency      float64
	Importance   float64
	Effort       float64
	Freshness    float64
	SLAPressure  float64
	ProgressInv  float64
}

// DefaultScoringWeights returns the baseline factor weights.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		Urgency:     0.30,
		Importance:  0.25,
		Effort:      0.15,
		Freshness:   0.10,
		SLAPressure: 0.15,
		ProgressInv: 0.05,
	}
}

// ScoringMode selects between the baseline scorer and the three-scorer
// ensemble.
type ScoringMode string

const (
	ScoringBaseline ScoringMode = "baseline"
	ScoringEnsemble ScoringMode = "ensemble"
)

// EnsembleWeights are the fixed initial weights for the ensemble layer
// (baseline, fuzzy-threshold, history-weighted). Adaptable offline; not
// mutated at runtime.
type EnsembleWeights struct {
	Baseline       float64
	FuzzyThreshold float64
	HistoryWeighted float64
}

// DefaultEnsembleWeights returns the default per-scorer ensemble weights.
func DefaultEnsembleWeights() EnsembleWeights {
	return EnsembleWeights{Baseline: 0.40, FuzzyThreshold: 0.35, HistoryWeighted: 0.25}
}

// ScoringConfig bundles everything the triage scorer needs.
type ScoringConfig struct {
	Mode                ScoringMode
	Weights             ScoringWeights
	Ensemble            EnsembleWeights
	UrgencyHorizon      time.Duration // H_max, default 336h
	EffortCapHours      float64       // E_max, default 8h
	FreshnessTauHours   float64       // tau, default 72h
}

// DefaultScoringConfig returns the default scoring constants.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Mode:              ScoringBaseline,
		Weights:           DefaultScoringWeights(),
		Ensemble:          DefaultEnsembleWeights(),
		UrgencyHorizon:    336 * time.Hour,
		EffortCapHours:    8,
		FreshnessTauHours: 72,
	}
}

// OutboxConfig holds the outbox delivery engine's tunables.
type OutboxConfig struct {
	BatchSize            int
	MaxRetries           int
	BackoffBase          time.Duration
	BackoffCap           time.Duration
	Jitter               float64
	InflightLease        time.Duration
	DispatchTimeout      time.Duration
}

// DefaultOutboxConfig returns the engine's default tunables.
func DefaultOutboxConfig() OutboxConfig {
	return OutboxConfig{
		BatchSize:       10,
		MaxRetries:      5,
		BackoffBase:     1 * time.Second,
		BackoffCap:      60 * time.Second,
		Jitter:          0.2,
		InflightLease:   60 * time.Second, // 2 * request_timeout default (30s)
		DispatchTimeout: 30 * time.Second,
	}
}

// SchedulerConfig holds the periodic job cadences.
type SchedulerConfig struct {
	OutboxTick             time.Duration
	RescoreInterval        time.Duration
	StaleNudgeInterval     time.Duration
	StaleThreshold         time.Duration
	RebalanceInterval      time.Duration
	DailyGlobalBudgetHours float64
}

// DefaultSchedulerConfig returns the default job cadences.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		OutboxTick:             2 * time.Second,
		RescoreInterval:        5 * time.Minute,
		StaleNudgeInterval:     1 * time.Hour,
		StaleThreshold:         72 * time.Hour,
		RebalanceInterval:      24 * time.Hour,
		DailyGlobalBudgetHours: 40,
	}
}

// AdvisorConfig holds the optional LLM-assisted advisor's tunables.
type AdvisorConfig struct {
	Enabled          bool
	Timeout          time.Duration
	BreakerFailures  int
	BreakerCooldown  time.Duration
	AllowedFields    []string
}

// DefaultAdvisorConfig returns the advisor's default tunables.
func DefaultAdvisorConfig() AdvisorConfig {
	return AdvisorConfig{
		Enabled:         false,
		Timeout:         20 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 60 * time.Second,
		AllowedFields: []string{
			"labels", "subtasks", "checklist", "score_override",
			"hold_creation", "requires_review",
		},
	}
}

// BackendCredential holds one backend's auth material and webhook secret.
// Never logged; only referenced by name in audit/log output.
type BackendCredential struct {
	Name          string
	BaseURL       string
	APIToken      string
	WebhookSecret string
	WebhookScheme WebhookScheme
	WebhookHeader string
	RateLimitRPS  float64
	RateLimitBurst int
}

// WebhookScheme enumerates the supported webhook signature schemes.
type WebhookScheme string

const (
	SchemeHMACSHA256Hex    WebhookScheme = "HMAC-SHA256-hex-of-body"
	SchemeHMACSHA1Hex      WebhookScheme = "HMAC-SHA1-hex-of-body"
	SchemeHMACSHA256Base64 WebhookScheme = "HMAC-SHA256-base64-of-body"
)

// Config is the full read-only rule set injected into every component.
type Config struct {
	TaskTypes  map[string]TaskTypeConfig
	Clients    map[string]ClientConfig
	Scoring    ScoringConfig
	Outbox     OutboxConfig
	Scheduler  SchedulerConfig
	Advisor    AdvisorConfig
	Backends   map[string]BackendCredential

	// SeenDeliveryTTL is the ledger pruning window: 30 days, chosen as a
	// safe default in the absence of a uniformly stated TTL.
	SeenDeliveryTTL time.Duration
}

// Default returns a Config with the built-in task types and the
// default tunable constants. Callers override
// per-deployment fields (clients, backend credentials) after loading
// them from whatever external configuration source the deployment uses
// — that loading mechanism is explicitly out of scope for this module.
func Default() *Config {
	return &Config{
		TaskTypes:       defaultTaskTypes(),
		Clients:         map[string]ClientConfig{},
		Scoring:         DefaultScoringConfig(),
		Outbox:          DefaultOutboxConfig(),
		Scheduler:       DefaultSchedulerConfig(),
		Advisor:         DefaultAdvisorConfig(),
		Backends:        map[string]BackendCredential{},
		SeenDeliveryTTL: 30 * 24 * time.Hour,
	}
}

func defaultTaskTypes() map[string]TaskTypeConfig {
	types := []TaskTypeConfig{
		{
			Name:               "bugfix",
			DefaultEffortHours: 2,
			DefaultImportance:  4,
			Labels:             []string{"bug"},
			ChecklistTemplate:  []string{"Reproduce the issue", "Write a regression test", "Ship the fix for {client}"},
			SubtasksTemplate:   []string{"Diagnose root cause of {title}", "Implement fix", "Verify in staging"},
			ClassifyKeywords:   []string{"bug", "crash", "broken", "error", "regression", "fix", "fails", "failure"},
		},
		{
			Name:               "report",
			DefaultEffortHours: 3,
			DefaultImportance:  2,
			Labels:             []string{"report"},
			ChecklistTemplate:  []string{"Gather data", "Draft {title}", "Review with {client}"},
			SubtasksTemplate:   []string{"Collect inputs for {title}", "Build draft", "Circulate for feedback"},
			ClassifyKeywords:   []string{"report", "summary", "analysis", "dashboard", "metrics"},
		},
		{
			Name:               "onboarding",
			DefaultEffortHours: 4,
			DefaultImportance:  3,
			Labels:             []string{"onboarding"},
			ChecklistTemplate:  []string{"Send welcome materials to {client}", "Schedule kickoff", "Confirm access"},
			SubtasksTemplate:   []string{"Provision accounts for {client}", "Walkthrough call", "Collect first feedback"},
			ClassifyKeywords:   []string{"onboard", "onboarding", "welcome", "kickoff", "new client", "setup"},
		},
		{
			Name:               "general",
			DefaultEffortHours: 2,
			DefaultImportance:  3,
			Labels:             nil,
			ChecklistTemplate:  []string{"{title}"},
			SubtasksTemplate:   nil,
			ClassifyKeywords:   nil, // fallback; never matched directly
		},
	}
	m := make(map[string]TaskTypeConfig, len(types))
	for _, t := range types {
		m[t.Name] = t
	}
	return m
}
