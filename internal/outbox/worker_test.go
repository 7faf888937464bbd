package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Geralt1983/Project-Archangel/internal/backend"
	"github.com/Geralt1983/Project-Archangel/internal/clock"
	"github.com/Geralt1983/Project-Archangel/internal/config"
	"github.com/Geralt1983/Project-Archangel/internal/store"
)

type fakeCapability struct {
	name     string
	response backend.Response
	err      error
	calls    int
}

func (f *fakeCapability) Name() string { return f.name }
func (f *fakeCapability) Dispatch(ctx context.Context, req backend.Request) (backend.Response, error) {
	f.calls++
	return f.response, f.err
}
func (f *fakeCapability) VerifyWebhook(headers map[string][]string, body []byte) error { return nil }

type fakePublisher struct {
	topics []string
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	p.topics = append(p.topics, topic)
	return nil
}
func (p *fakePublisher) Close() error { return nil }

func newOutboxRow(t *testing.T, s store.Store, backendName string) *store.OutboxRow {
	t.Helper()
	task := &store.Task{ID: uuid.New(), Title: "x", Status: store.StatusPending}
	row := &store.OutboxRow{
		Backend:        backendName,
		Operation:      store.OpCreateTask,
		Endpoint:       "/tasks",
		Payload:        []byte(`{}`),
		IdempotencyKey: "key-" + task.ID.String(),
		Status:         store.OutboxPending,
	}
	if err := s.EnqueueTaskMutation(context.Background(), task, row); err != nil {
		t.Fatal(err)
	}
	return row
}

func TestWorkerDeliversOnSuccess(t *testing.T) {
	s := store.NewMemoryStore()
	newOutboxRow(t, s, "demo")
	adapter := &fakeCapability{name: "demo", response: backend.Response{StatusCode: 201, ExternalID: "ext-1"}}

	w := NewWorker(s, map[string]backend.Capability{"demo": adapter}, nil, config.DefaultOutboxConfig(), clock.Real(), nil)
	n, err := w.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row processed, got %d", n)
	}

	stats, err := s.OutboxStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats[store.OutboxDelivered] != 1 {
		t.Fatalf("expected 1 delivered row, got stats=%v", stats)
	}
}

func TestWorkerRetriesTransientFailure(t *testing.T) {
	s := store.NewMemoryStore()
	newOutboxRow(t, s, "demo")
	adapter := &fakeCapability{name: "demo", err: errors.New("connection reset")}

	w := NewWorker(s, map[string]backend.Capability{"demo": adapter}, nil, config.DefaultOutboxConfig(), clock.Fixed(time.Now()), nil)
	if _, err := w.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}

	stats, err := s.OutboxStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats[store.OutboxPending] != 1 {
		t.Fatalf("expected the row to be back in pending for retry, got stats=%v", stats)
	}
}

func TestWorkerDeadLettersPermanentFailureAndPublishes(t *testing.T) {
	s := store.NewMemoryStore()
	newOutboxRow(t, s, "demo")
	adapter := &fakeCapability{name: "demo", response: backend.Response{StatusCode: 404}}
	pub := &fakePublisher{}

	cfg := config.DefaultOutboxConfig()
	w := NewWorker(s, map[string]backend.Capability{"demo": adapter}, nil, cfg, clock.Real(), pub)
	if _, err := w.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}

	stats, err := s.OutboxStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats[store.OutboxDeadLetter] != 1 {
		t.Fatalf("expected 1 dead-lettered row for a 404, got stats=%v", stats)
	}
	if len(pub.topics) != 1 || pub.topics[0] != "task.dead_lettered" {
		t.Fatalf("expected a task.dead_lettered event to be published, got %v", pub.topics)
	}
}

func TestWorkerDeadLettersUnknownBackend(t *testing.T) {
	s := store.NewMemoryStore()
	newOutboxRow(t, s, "nonexistent")

	w := NewWorker(s, map[string]backend.Capability{}, nil, config.DefaultOutboxConfig(), clock.Real(), nil)
	if _, err := w.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}

	stats, err := s.OutboxStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats[store.OutboxDeadLetter] != 1 {
		t.Fatalf("expected an unknown backend to dead-letter immediately, got stats=%v", stats)
	}
}
