package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/Geralt1983/Project-Archangel/internal/clock"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

var ErrUnmappedExternalID = errors.New("webhook: no task mapped to this external id")

// ErrInvalidStatus is returned when an event carries a status outside
// the closed TaskStatus enum (including an empty/missing status
// field); it is never applied to a task.
var ErrInvalidStatus = errors.New("webhook: event status is not a known task status")

// Event is the normalized inbound callback, already signature-verified
// and dedup-checked by the caller.
type Event struct {
	Backend    string
	ExternalID string
	DeliveryID string
	NewStatus  store.TaskStatus
	Timestamp  time.Time
}

// statusRank orders lifecycle states so a regression (e.g. completed
// followed by a stale in_progress event) can be detected; terminal
// states never rank below an active one.
var statusRank = map[store.TaskStatus]int{
	store.StatusPending:    0,
	store.StatusInProgress: 1,
	store.StatusBlocked:    1,
	store.StatusCompleted:  2,
	store.StatusCancelled:  2,
}

// Router resolves a webhook event's external ID to an internal task and
// applies the status transition under a monotonic ordering rule: a
// transition is applied if it advances the lifecycle rank, or if its
// event timestamp is strictly newer than the task's last update even
// when the rank is equal or lower (a correction, not a replay).
type Router struct {
	store store.Store
	clk   clock.Clock
}

func NewRouter(s store.Store, clk clock.Clock) *Router {
	return &Router{store: s, clk: clk}
}

// Apply returns applied=false (with no error) when the event is a
// no-op: an unknown mapping is surfaced as ErrUnmappedExternalID so the
// HTTP handler can count a misdirected callback separately rather than
// silently swallow it.
func (r *Router) Apply(ctx context.Context, ev Event) (applied bool, err error) {
	if !ev.NewStatus.IsValid() {
		return false, ErrInvalidStatus
	}

	taskID, ok, err := r.store.GetMappingInternalID(ctx, ev.Backend, ev.ExternalID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrUnmappedExternalID
	}

	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, ErrUnmappedExternalID
	}

	if task.Status.IsTerminal() && ev.NewStatus != task.Status {
		// A terminal task only ever moves again on a strictly newer event
		// than the one that terminated it (a backend correcting itself).
		if !ev.Timestamp.After(task.UpdatedAt) {
			return false, nil
		}
	} else if statusRank[ev.NewStatus] < statusRank[task.Status] && !ev.Timestamp.After(task.UpdatedAt) {
		return false, nil
	}

	// A fresh, validly-deduped delivery always records activity, even
	// when it doesn't move the status (e.g. a backend re-sending its
	// current state as a heartbeat).
	now := r.clk.Now().UTC()
	task.LastActivityAt = now

	statusChanged := ev.NewStatus != task.Status
	if statusChanged {
		task.Status = ev.NewStatus
		task.UpdatedAt = now
	}

	if err := r.store.UpsertTask(ctx, task); err != nil {
		return false, err
	}
	return statusChanged, nil
}
