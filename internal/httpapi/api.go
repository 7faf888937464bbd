// Package httpapi is the thin HTTP surface over the core packages: it
// decodes requests, delegates to triage/outbox/planner/webhook, and
// encodes responses. No business logic lives here.
package httpapi

import (
	"context"
	"log"
	"net/http"

	"github.com/Geralt1983/Project-Archangel/internal/advisor"
	"github.com/Geralt1983/Project-Archangel/internal/backend"
	"github.com/Geralt1983/Project-Archangel/internal/clock"
	"github.com/Geralt1983/Project-Archangel/internal/config"
	"github.com/Geralt1983/Project-Archangel/internal/eventbus"
	"github.com/Geralt1983/Project-Archangel/internal/idempotency"
	"github.com/Geralt1983/Project-Archangel/internal/jobscheduler"
	"github.com/Geralt1983/Project-Archangel/internal/observability"
	"github.com/Geralt1983/Project-Archangel/internal/store"
	"github.com/Geralt1983/Project-Archangel/internal/webhook"
)

// API holds every dependency a handler needs; it carries no state of
// its own beyond these references.
type API struct {
	store       store.Store
	ledger      store.Ledger
	cfg         *config.Config
	clk         clock.Clock
	adv         advisor.Advisor
	backends    backend.Registry
	scheduler   *jobscheduler.Scheduler
	dedup       *webhook.Deduplicator
	router      *webhook.Router
	idempotency *idempotency.Store
	publisher   eventbus.Publisher
	hub         *statsHub
}

// New wires an API. idemBackend may be nil, in which case the
// idempotency cache is process-local only (fine for dev/single-node,
// not durable across restarts). publisher may be nil to disable
// best-effort lifecycle event publishing entirely.
func New(s store.Store, ledger store.Ledger, cfg *config.Config, clk clock.Clock, adv advisor.Advisor, backends backend.Registry, sched *jobscheduler.Scheduler, idemBackend idempotency.Backend, publisher eventbus.Publisher) *API {
	api := &API{
		store:       s,
		ledger:      ledger,
		cfg:         cfg,
		clk:         clk,
		adv:         adv,
		backends:    backends,
		scheduler:   sched,
		dedup:       webhook.NewDeduplicator(ledger, cfg.SeenDeliveryTTL),
		router:      webhook.NewRouter(s, clk),
		idempotency: idempotency.NewStore(idemBackend),
		publisher:   publisher,
	}
	api.hub = newStatsHub(api)
	go api.hub.run()
	return api
}

// publish is a best-effort side channel for lifecycle events; failures
// never affect the HTTP response already sent to the caller.
func (a *API) publish(ctx context.Context, topic string, payload interface{}) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, topic, payload); err != nil {
		observability.EventPublishFailures.WithLabelValues(topic).Inc()
		log.Printf("httpapi: event publish failed for topic %s: %v", topic, err)
	}
}

// Mux builds the ServeMux with every route wired. It does not apply
// the CORS middleware; the caller wraps the returned handler.
func (a *API) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/tasks/intake", a.withIdempotency(a.handleIntake))
	mux.HandleFunc("/tasks/retriage", a.handleRetriage)
	mux.HandleFunc("/tasks/list/", a.handleListTasks)
	mux.HandleFunc("/rebalance", a.handleRebalance)
	mux.HandleFunc("/webhook/", a.handleWebhook)
	mux.HandleFunc("/outbox/stats", a.handleOutboxStats)
	mux.HandleFunc("/outbox/dead-letter/", a.handleDeadLetterRequeue)
	mux.HandleFunc("/mapping/", a.handleMappingLookup)
	mux.HandleFunc("/audit/traces", a.handleAuditExport)
	mux.HandleFunc("/health", a.handleHealth)
	mux.HandleFunc("/debug/outbox/snapshot", a.handleDebugSnapshot)
	mux.HandleFunc("/debug/outbox/stream", a.handleOutboxStream)

	return mux
}
