package outbox

import (
	"context"
	"log"
	"time"

	"github.com/Geralt1983/Project-Archangel/internal/backend"
	"github.com/Geralt1983/Project-Archangel/internal/clock"
	"github.com/Geralt1983/Project-Archangel/internal/config"
	"github.com/Geralt1983/Project-Archangel/internal/errs"
	"github.com/Geralt1983/Project-Archangel/internal/eventbus"
	"github.com/Geralt1983/Project-Archangel/internal/observability"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

// Worker drains pending outbox rows, dispatches them to the named
// backend's Capability, and reconciles the row's status under a single
// per-row commit so one poisoned row never blocks the rest of the
// batch.
type Worker struct {
	store     store.Store
	backends  map[string]backend.Capability
	limiter   backend.RateLimiter
	cfg       config.OutboxConfig
	clk       clock.Clock
	publisher eventbus.Publisher
}

// NewWorker builds a Worker. publisher may be nil, in which case
// dead-letter events are simply not published anywhere.
func NewWorker(s store.Store, backends map[string]backend.Capability, limiter backend.RateLimiter, cfg config.OutboxConfig, clk clock.Clock, publisher eventbus.Publisher) *Worker {
	return &Worker{store: s, backends: backends, limiter: limiter, cfg: cfg, clk: clk, publisher: publisher}
}

// Tick leases one batch and dispatches it, returning the number of rows
// processed. It is meant to be called on a short ticker (1-5s by
// default); callers should serialize calls to Tick across a process
// under a coordination.JobLock so two workers never double-lease.
func (w *Worker) Tick(ctx context.Context) (int, error) {
	now := w.clk.Now().UTC()
	rows, err := w.store.SelectAndLeaseBatch(ctx, w.cfg.BatchSize, now)
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		w.dispatchOne(ctx, row)
	}
	return len(rows), nil
}

func (w *Worker) dispatchOne(ctx context.Context, row *store.OutboxRow) {
	adapter, ok := w.backends[row.Backend]
	if !ok {
		w.fail(ctx, row, errs.New(errs.KindPermanent, "unknown backend: "+row.Backend))
		return
	}

	if w.limiter != nil && !w.limiter.Allow(row.Backend) {
		// Treat a rate-limit denial like a transient failure: retry with
		// backoff rather than burning the attempt as a hard failure.
		w.retry(ctx, row, errs.New(errs.KindTransient, "rate limited"), 0)
		observability.RateLimiterRejections.WithLabelValues(row.Backend).Inc()
		return
	}

	dctx, cancel := context.WithTimeout(ctx, w.cfg.DispatchTimeout)
	defer cancel()

	start := w.clk.Now()
	resp, err := adapter.Dispatch(dctx, backend.Request{
		Operation:      string(row.Operation),
		Endpoint:       row.Endpoint,
		Payload:        row.Payload,
		Headers:        row.Headers,
		IdempotencyKey: row.IdempotencyKey,
	})
	observability.OutboxDispatchDuration.WithLabelValues(row.Backend).Observe(w.clk.Now().Sub(start).Seconds())

	if err != nil {
		w.retry(ctx, row, errs.Wrap(errs.KindTransient, "dispatch transport error", err), 0)
		return
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		w.deliver(ctx, row, resp)
		return
	}

	kind := errs.ClassifyHTTPStatus(resp.StatusCode)
	if kind == errs.KindPermanent {
		w.fail(ctx, row, errs.New(kind, "backend rejected request"))
		return
	}
	w.retry(ctx, row, errs.New(kind, "backend returned retryable status"), time.Duration(resp.RetryAfter)*time.Second)
}

func (w *Worker) deliver(ctx context.Context, row *store.OutboxRow, resp backend.Response) {
	if row.Operation == store.OpCreateTask && resp.ExternalID != "" {
		if err := w.store.UpsertMapping(ctx, row.Backend, resp.ExternalID, row.TaskID); err != nil {
			log.Printf("outbox: mapping upsert failed for row %d: %v", row.ID, err)
		}
	}
	if err := w.store.UpdateOutboxStatus(ctx, row.ID, store.OutboxDelivered, row.RetryCount, nil, ""); err != nil {
		log.Printf("outbox: status update failed for row %d: %v", row.ID, err)
	}
	observability.OutboxDeliveries.WithLabelValues(row.Backend, string(row.Operation), "delivered").Inc()
}

func (w *Worker) retry(ctx context.Context, row *store.OutboxRow, cause error, retryAfter time.Duration) {
	nextCount := row.RetryCount + 1
	if nextCount > w.cfg.MaxRetries {
		w.deadLetter(ctx, row, cause)
		return
	}
	delay := Backoff(row.RetryCount, w.cfg)
	if retryAfter > delay {
		delay = retryAfter
	}
	next := w.clk.Now().UTC().Add(delay)
	if err := w.store.UpdateOutboxStatus(ctx, row.ID, store.OutboxPending, nextCount, &next, cause.Error()); err != nil {
		log.Printf("outbox: status update failed for row %d: %v", row.ID, err)
	}
	observability.OutboxDeliveries.WithLabelValues(row.Backend, string(row.Operation), "retry").Inc()
}

func (w *Worker) deadLetter(ctx context.Context, row *store.OutboxRow, cause error) {
	if err := w.store.UpdateOutboxStatus(ctx, row.ID, store.OutboxDeadLetter, row.RetryCount, nil, cause.Error()); err != nil {
		log.Printf("outbox: status update failed for row %d: %v", row.ID, err)
	}
	observability.OutboxDeliveries.WithLabelValues(row.Backend, string(row.Operation), "dead_letter").Inc()
	w.publish(ctx, "task.dead_lettered", map[string]interface{}{
		"task_id": row.TaskID.String(),
		"backend": row.Backend,
		"row_id":  row.ID,
	})
}

// publish is a best-effort side channel; a failure here never affects
// outbox delivery guarantees, only downstream consumers watching for
// lifecycle events.
func (w *Worker) publish(ctx context.Context, topic string, payload interface{}) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.Publish(ctx, topic, payload); err != nil {
		observability.EventPublishFailures.WithLabelValues(topic).Inc()
		log.Printf("outbox: event publish failed for topic %s: %v", topic, err)
	}
}

func (w *Worker) fail(ctx context.Context, row *store.OutboxRow, cause error) {
	// Permanent failures skip the retry budget entirely and dead-letter
	// immediately; retrying a 404 or a malformed-request response would
	// never succeed.
	w.deadLetter(ctx, row, cause)
}

// Run drives Tick on a ticker until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Tick(ctx); err != nil {
				log.Printf("outbox: tick failed: %v", err)
			}
		}
	}
}
