package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Geralt1983/Project-Archangel/internal/advisor"
	"github.com/Geralt1983/Project-Archangel/internal/backend"
	"github.com/Geralt1983/Project-Archangel/internal/clock"
	"github.com/Geralt1983/Project-Archangel/internal/config"
	"github.com/Geralt1983/Project-Archangel/internal/coordination"
	"github.com/Geralt1983/Project-Archangel/internal/jobscheduler"
	"github.com/Geralt1983/Project-Archangel/internal/outbox"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

type fakePublisher struct {
	topics []string
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	p.topics = append(p.topics, topic)
	return nil
}
func (p *fakePublisher) Close() error { return nil }

func newTestAPI(t *testing.T) (*API, store.Store, *fakePublisher) {
	t.Helper()
	cfg := config.Default()
	s := store.NewMemoryStore()
	ledger := store.NewMemoryLedger()
	clk := clock.Real()

	worker := outbox.NewWorker(s, map[string]backend.Capability{}, nil, cfg.Outbox, clk, nil)
	reclaimer := outbox.NewReclaimer(s, cfg.Outbox.InflightLease, clk)
	producer := outbox.NewProducer(s)
	coord := coordination.NewMemoryCoordinator()
	sched := jobscheduler.New(s, coord, cfg, clk, "test-owner", worker, reclaimer, producer)

	pub := &fakePublisher{}
	api := New(s, ledger, cfg, clk, advisor.StubAdvisor{}, backend.Registry{}, sched, nil, pub)
	return api, s, pub
}

func TestHandleIntakeCreatesTaskAndPublishes(t *testing.T) {
	api, s, pub := newTestAPI(t)

	body := `{"title":"fix the thing","description":"it broke","client":"acme","importance":4,"effort_hours":2}`
	req := httptest.NewRequest(http.MethodPost, "/tasks/intake", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	api.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp intakeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	task, err := s.GetTask(context.Background(), resp.ID)
	if err != nil {
		t.Fatal(err)
	}
	if task == nil {
		t.Fatal("expected the intake handler to have persisted the task")
	}
	if len(pub.topics) != 1 || pub.topics[0] != "task.created" {
		t.Fatalf("expected a task.created event, got %v", pub.topics)
	}
}

func TestHandleIntakeRejectsMalformedBody(t *testing.T) {
	api, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/tasks/intake", bytes.NewBufferString("not json"))
	w := httptest.NewRecorder()
	api.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestHandleIntakeIdempotencyReplaysResponse(t *testing.T) {
	api, s, pub := newTestAPI(t)

	body := `{"title":"dup-safe task","client":"acme","importance":3,"effort_hours":1}`

	req1 := httptest.NewRequest(http.MethodPost, "/tasks/intake", bytes.NewBufferString(body))
	req1.Header.Set("X-Idempotency-Key", "req-1")
	w1 := httptest.NewRecorder()
	api.Mux().ServeHTTP(w1, req1)
	if w1.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first call, got %d", w1.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/tasks/intake", bytes.NewBufferString(body))
	req2.Header.Set("X-Idempotency-Key", "req-1")
	w2 := httptest.NewRecorder()
	api.Mux().ServeHTTP(w2, req2)

	if w2.Code != w1.Code || w2.Body.String() != w1.Body.String() {
		t.Fatalf("expected the second call with the same idempotency key to replay the first response, got code=%d body=%s", w2.Code, w2.Body.String())
	}

	tasks, err := s.ListTasksByStatus(context.Background(), []store.TaskStatus{store.StatusPending})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected exactly 1 task created despite 2 calls, got %d", len(tasks))
	}
	if len(pub.topics) != 1 {
		t.Fatalf("expected the replayed call to skip re-publishing task.created, got %v", pub.topics)
	}
}

func TestHandleRetriageUpdatesExistingTask(t *testing.T) {
	api, s, pub := newTestAPI(t)

	task := &store.Task{
		ID:             uuid.New(),
		Title:          "existing",
		Status:         store.StatusPending,
		Importance:     2,
		LastActivityAt: time.Now(),
	}
	if err := s.UpsertTask(context.Background(), task); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(retriageRequest{ID: task.ID})
	req := httptest.NewRequest(http.MethodPost, "/tasks/retriage", bytes.NewBuffer(body))
	w := httptest.NewRecorder()
	api.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(pub.topics) != 1 || pub.topics[0] != "task.retriaged" {
		t.Fatalf("expected a task.retriaged event, got %v", pub.topics)
	}
}

func TestHandleRetriageUnknownTaskReturns404(t *testing.T) {
	api, _, _ := newTestAPI(t)

	body, _ := json.Marshal(retriageRequest{ID: uuid.New()})
	req := httptest.NewRequest(http.MethodPost, "/tasks/retriage", bytes.NewBuffer(body))
	w := httptest.NewRecorder()
	api.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown task id, got %d", w.Code)
	}
}

func TestHandleHealthReportsDependencyStatus(t *testing.T) {
	api, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	api.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		OK           bool            `json:"ok"`
		Dependencies map[string]bool `json:"dependencies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.OK || !resp.Dependencies["store"] || !resp.Dependencies["ledger"] {
		t.Fatalf("expected all dependencies healthy, got %+v", resp)
	}
}

func TestHandleOutboxStatsRejectsNonGet(t *testing.T) {
	api, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/outbox/stats", nil)
	w := httptest.NewRecorder()
	api.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST on a GET-only endpoint, got %d", w.Code)
	}
}

func TestHandleMappingLookupReturnsNotFoundForUnknownMapping(t *testing.T) {
	api, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/mapping/demo/ext-123", nil)
	w := httptest.NewRecorder()
	api.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unmapped external id, got %d", w.Code)
	}
}
