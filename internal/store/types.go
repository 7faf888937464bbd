package store

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the closed set of lifecycle states a task moves through.
type TaskStatus string

const (
	StatusPending     TaskStatus = "pending"
	StatusInProgress  TaskStatus = "in_progress"
	StatusBlocked     TaskStatus = "blocked"
	StatusCompleted   TaskStatus = "completed"
	StatusCancelled   TaskStatus = "cancelled"
)

// IsTerminal reports whether status is a retired state.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsValid reports whether status is one of the closed set of lifecycle
// states; anything else (including the empty string) must never be
// assigned to a Task.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusBlocked, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Task is the core entity of the triage/scoring/outbox/planner pipeline.
type Task struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Client      string     `json:"client" db:"client"`
	Type        string     `json:"type" db:"type"`
	Importance  int        `json:"importance" db:"importance"`
	EffortHours float64    `json:"effort_hours" db:"effort_hours"`
	Deadline    *time.Time `json:"deadline,omitempty" db:"deadline"`

	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
	LastActivityAt time.Time `json:"last_activity_at" db:"last_activity_at"`

	Status TaskStatus `json:"status" db:"status"`
	Score  *float64   `json:"score,omitempty" db:"score"`

	Labels    []string `json:"labels" db:"labels"`
	Checklist []string `json:"checklist" db:"checklist"`
	Subtasks  []string `json:"subtasks" db:"subtasks"`

	UrgencyLevel    string `json:"urgency_level" db:"urgency_level"`
	ComplexityLevel string `json:"complexity_level" db:"complexity_level"`
	ScoringMethod   string `json:"scoring_method" db:"scoring_method"`

	RequiresReview bool `json:"requires_review" db:"requires_review"`

	// RecentProgress summarizes activity in the last scoring window,
	// in [0,1]; fed into the progress_inv factor.
	RecentProgress float64 `json:"recent_progress" db:"recent_progress"`
}

// Clone returns a deep-enough copy safe for callers to mutate without
// aliasing the stored slices.
func (t *Task) Clone() *Task {
	c := *t
	c.Labels = append([]string(nil), t.Labels...)
	c.Checklist = append([]string(nil), t.Checklist...)
	c.Subtasks = append([]string(nil), t.Subtasks...)
	if t.Deadline != nil {
		d := *t.Deadline
		c.Deadline = &d
	}
	if t.Score != nil {
		s := *t.Score
		c.Score = &s
	}
	return &c
}

// OutboxOperation enumerates the mutating operations a producer can
// intend against a backend.
type OutboxOperation string

const (
	OpCreateTask       OutboxOperation = "create_task"
	OpAddSubtask       OutboxOperation = "add_subtask"
	OpAddChecklistItem OutboxOperation = "add_checklist_item"
	OpUpdateTask       OutboxOperation = "update_task"
	OpListTasks        OutboxOperation = "list_tasks"
	OpNotify           OutboxOperation = "notify"
)

// OutboxStatus is the closed set of outbox row states.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxInflight   OutboxStatus = "inflight"
	OutboxDelivered  OutboxStatus = "delivered"
	OutboxFailed     OutboxStatus = "failed"
	OutboxDeadLetter OutboxStatus = "dead_letter"
)

// OutboxRow is a durable intent to call a backend exactly once.
type OutboxRow struct {
	ID             int64             `json:"id" db:"id"`
	TaskID         uuid.UUID         `json:"task_id" db:"task_id"`
	Backend        string            `json:"backend" db:"backend"`
	Operation      OutboxOperation   `json:"operation" db:"operation"`
	Endpoint       string            `json:"endpoint" db:"endpoint"`
	Payload        []byte            `json:"payload" db:"payload"`
	Headers        map[string]string `json:"headers" db:"headers"`
	IdempotencyKey string            `json:"idempotency_key" db:"idempotency_key"`

	Status      OutboxStatus `json:"status" db:"status"`
	RetryCount  int          `json:"retry_count" db:"retry_count"`
	NextRetryAt *time.Time   `json:"next_retry_at,omitempty" db:"next_retry_at"`
	LastError   string       `json:"last_error,omitempty" db:"last_error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// InflightSince is set when the row transitions to inflight, used by
	// the lease-reclaim sweep to detect stuck rows.
	InflightSince *time.Time `json:"inflight_since,omitempty" db:"inflight_since"`
}

// TaskMapping resolves a backend's external ID to our internal task ID.
type TaskMapping struct {
	Backend    string    `json:"backend" db:"backend"`
	ExternalID string    `json:"external_id" db:"external_id"`
	TaskID     uuid.UUID `json:"task_id" db:"task_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// DecisionTrace is one append-only audit row explaining a planner rank
// change, advisor merge, or score recomputation.
type DecisionTrace struct {
	ID         int64     `json:"id" db:"id"`
	SessionID  string    `json:"session_id" db:"session_id"`
	TaskAID    uuid.UUID `json:"task_a_id" db:"task_a_id"`
	TaskBID    *uuid.UUID `json:"task_b_id,omitempty" db:"task_b_id"`
	Rationale  string    `json:"rationale" db:"rationale"`
	DeltaUrgency   float64 `json:"delta_urgency" db:"delta_urgency"`
	DeltaSLA       float64 `json:"delta_sla" db:"delta_sla"`
	DeltaStaleness float64 `json:"delta_staleness" db:"delta_staleness"`
	DeltaFairness  float64 `json:"delta_fairness" db:"delta_fairness"`
	DeltaTotal     float64 `json:"delta_total" db:"delta_total"`
	RankOld    int       `json:"rank_old" db:"rank_old"`
	RankNew    int       `json:"rank_new" db:"rank_new"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
