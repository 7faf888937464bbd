package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Geralt1983/Project-Archangel/internal/advisor"
	"github.com/Geralt1983/Project-Archangel/internal/backend"
	"github.com/Geralt1983/Project-Archangel/internal/clock"
	"github.com/Geralt1983/Project-Archangel/internal/config"
	"github.com/Geralt1983/Project-Archangel/internal/coordination"
	"github.com/Geralt1983/Project-Archangel/internal/eventbus"
	"github.com/Geralt1983/Project-Archangel/internal/httpapi"
	"github.com/Geralt1983/Project-Archangel/internal/idempotency"
	"github.com/Geralt1983/Project-Archangel/internal/jobscheduler"
	"github.com/Geralt1983/Project-Archangel/internal/middleware"
	"github.com/Geralt1983/Project-Archangel/internal/outbox"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

func generateOwnerID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "owner-unknown"
	}
	return hostname
}

func main() {
	cfg := config.Default()
	loadBackendsFromEnv(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var s store.Store
	pgURL := os.Getenv("DATABASE_URL")
	if pgURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, pgURL)
		if err != nil {
			log.Fatalf("failed to connect to Postgres: %v", err)
		}
		log.Printf("connected to Postgres for durable task/outbox storage")
		s = pgStore
	} else {
		log.Printf("DATABASE_URL not set, using in-memory store (not safe for multi-instance deployment)")
		s = store.NewMemoryStore()
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	var ledger store.Ledger
	var coord coordination.Coordinator
	var idemBackend idempotency.Backend
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unavailable at %s (%v); falling back to in-memory ledger and single-instance coordination", redisAddr, err)
		ledger = store.NewMemoryLedger()
		coord = coordination.NewMemoryCoordinator()
	} else {
		log.Printf("connected to Redis at %s for seen-delivery ledger and job coordination", redisAddr)
		ledger = store.NewRedisLedger(redisClient)
		coord = coordination.NewRedisCoordinator(redisClient)
		idemBackend = idempotency.NewRedisBackend(redisClient)
	}

	clk := clock.Real()

	backends := buildBackendRegistry(cfg)

	limiter := backend.NewTokenBucketLimiter()
	for name, cred := range cfg.Backends {
		if cred.RateLimitRPS > 0 {
			limiter.Configure(name, cred.RateLimitRPS, cred.RateLimitBurst)
		}
	}

	var adv advisor.Advisor = advisor.StubAdvisor{}
	if cfg.Advisor.Enabled {
		if url := os.Getenv("ADVISOR_URL"); url != "" {
			adv = advisor.NewHTTPAdvisor(url, cfg.Advisor.Timeout, cfg.Advisor.BreakerFailures, cfg.Advisor.BreakerCooldown)
		} else {
			log.Printf("advisor enabled but ADVISOR_URL not set; falling back to the stub advisor")
		}
	}

	publisher := buildPublisher()
	defer publisher.Close()

	worker := outbox.NewWorker(s, backends, limiter, cfg.Outbox, clk, publisher)
	reclaimer := outbox.NewReclaimer(s, cfg.Outbox.InflightLease, clk)
	producer := outbox.NewProducer(s)

	ownerID := "node-" + generateOwnerID()
	sched := jobscheduler.New(s, coord, cfg, clk, ownerID, worker, reclaimer, producer)
	sched.Start(ctx)

	janitor := coordination.NewLockJanitor(coord, time.Minute)
	janitor.Start(ctx)

	api := httpapi.New(s, ledger, cfg, clk, adv, backends, sched, idemBackend, publisher)

	handler := middleware.CORS(api.Mux())

	addr := ":8080"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}

	server := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown error: %v", err)
		}
	}()

	log.Printf("task orchestration middleware listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}

// buildPublisher returns a NATS-backed lifecycle event publisher if
// NATS_URL is set, otherwise a LogPublisher so events are still
// visible in development.
func buildPublisher() eventbus.Publisher {
	url := os.Getenv("NATS_URL")
	if url == "" {
		return eventbus.NewLogPublisher()
	}
	pub, err := eventbus.NewNATSPublisher(url, "taskmw.events")
	if err != nil {
		log.Printf("failed to connect to NATS at %s (%v); falling back to log publisher", url, err)
		return eventbus.NewLogPublisher()
	}
	log.Printf("connected to NATS at %s for lifecycle event publishing", url)
	return pub
}

// buildBackendRegistry constructs one Capability per configured
// backend: the "demo" name always gets the in-memory adapter so local
// development and tests have something to dispatch against even with
// no credentials configured.
func buildBackendRegistry(cfg *config.Config) backend.Registry {
	reg := make(backend.Registry, len(cfg.Backends)+1)
	reg["demo"] = backend.NewDemoCapability()

	client := &http.Client{Timeout: 30 * time.Second}
	for name, cred := range cfg.Backends {
		reg[name] = backend.NewRESTCapability(name, cred, client, cred.WebhookHeader != "")
	}
	return reg
}

// loadBackendsFromEnv populates cfg.Backends from BACKEND_<NAME>_*
// environment variables; file-based configuration loading is out of
// scope.
func loadBackendsFromEnv(cfg *config.Config) {
	names := os.Getenv("BACKEND_NAMES")
	if names == "" {
		return
	}
	for _, name := range splitCSV(names) {
		prefix := "BACKEND_" + envUpper(name) + "_"
		rps, _ := strconv.ParseFloat(os.Getenv(prefix+"RATE_LIMIT_RPS"), 64)
		burst, _ := strconv.Atoi(os.Getenv(prefix + "RATE_LIMIT_BURST"))
		cfg.Backends[name] = config.BackendCredential{
			Name:           name,
			BaseURL:        os.Getenv(prefix + "BASE_URL"),
			APIToken:       os.Getenv(prefix + "API_TOKEN"),
			WebhookSecret:  os.Getenv(prefix + "WEBHOOK_SECRET"),
			WebhookScheme:  config.WebhookScheme(os.Getenv(prefix + "WEBHOOK_SCHEME")),
			WebhookHeader:  os.Getenv(prefix + "WEBHOOK_HEADER"),
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
		}
	}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func envUpper(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
