package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OutboxQueueDepth tracks rows per status, the main signal for
	// whether the worker is keeping up with producers.
	OutboxQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "taskmw_outbox_queue_depth",
		Help: "Current number of outbox rows by status",
	}, []string{"status"})

	// OutboxDeliveries counts dispatch attempts by outcome.
	OutboxDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskmw_outbox_deliveries_total",
		Help: "Total outbox dispatch attempts by outcome",
	}, []string{"backend", "operation", "outcome"}) // outcome: delivered, retry, dead_letter

	// OutboxDispatchDuration tracks per-row dispatch latency against a
	// backend.
	OutboxDispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskmw_outbox_dispatch_duration_seconds",
		Help:    "Duration of a single outbox row dispatch call",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	// OutboxLeaseReclaims counts rows recovered from a stuck inflight
	// lease, a crash-recovery health signal.
	OutboxLeaseReclaims = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskmw_outbox_lease_reclaims_total",
		Help: "Total outbox rows reclaimed from a stale inflight lease",
	})

	// CircuitBreakerState tracks breaker state per backend (0=closed,
	// 1=half_open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "taskmw_circuit_breaker_state",
		Help: "Backend circuit breaker state (0=closed, 1=half_open, 2=open)",
	}, []string{"backend"})

	// RateLimiterRejections counts calls denied by a backend's token
	// bucket before dispatch.
	RateLimiterRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskmw_rate_limiter_rejections_total",
		Help: "Backend calls rejected by local rate limiting",
	}, []string{"backend"})

	// TriageScoreDuration tracks time spent computing a task's score,
	// split by scoring method (baseline vs ensemble).
	TriageScoreDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskmw_triage_score_duration_seconds",
		Help:    "Duration of score computation for a single task",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"method"})

	// TriageRefinements counts advisor-assisted refinements and their
	// outcome (applied, rejected by allow-list, unavailable).
	TriageRefinements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskmw_triage_refinements_total",
		Help: "Total triage refine attempts by outcome",
	}, []string{"outcome"})

	// PlannerRunDuration tracks the time spent producing one rebalance
	// plan over the candidate set.
	PlannerRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "taskmw_planner_run_duration_seconds",
		Help:    "Duration of one planner rebalance pass",
		Buckets: prometheus.DefBuckets,
	})

	// PlannerAssignments counts tasks the planner admitted versus
	// deferred for lack of capacity.
	PlannerAssignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskmw_planner_assignments_total",
		Help: "Total planner candidate decisions by outcome",
	}, []string{"outcome"}) // admitted, deferred

	// WebhookDeliveries counts verified webhook callbacks by outcome.
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskmw_webhook_deliveries_total",
		Help: "Total inbound webhook callbacks by outcome",
	}, []string{"backend", "outcome"}) // outcome: signature_failure, duplicate, invalid_status, unmapped, accepted, ignored

	// JobLockTransitions counts named scheduler job-lock acquisitions
	// and losses, generalized across independent job locks rather than
	// one global leadership role.
	JobLockTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskmw_job_lock_transitions_total",
		Help: "Total job lock acquire/lose transitions",
	}, []string{"job", "event"}) // event: acquired, lost

	// RedisLatency tracks Redis round-trip latency for the coordination
	// and idempotency layers.
	RedisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "taskmw_redis_roundtrip_latency_seconds",
		Help:    "Redis operation latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
	})

	// EventPublishFailures counts best-effort eventbus publish errors,
	// which never block the outbox's own delivery guarantee.
	EventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskmw_event_publish_failures_total",
		Help: "Failed best-effort event publish attempts",
	}, []string{"topic"})
)
