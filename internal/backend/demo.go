package backend

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// DemoCapability is an in-memory backend adapter used by tests and
// local development: it accepts every Dispatch call, fabricates an
// external ID for create_task, and keeps an idempotency-key → external
// ID memo so a retried create_task never mints a second ID.
type DemoCapability struct {
	mu    sync.Mutex
	memo  map[string]string
	tasks map[string]map[string]interface{}
}

func NewDemoCapability() *DemoCapability {
	return &DemoCapability{
		memo:  make(map[string]string),
		tasks: make(map[string]map[string]interface{}),
	}
}

func (d *DemoCapability) Name() string { return "demo" }

func (d *DemoCapability) Dispatch(ctx context.Context, req Request) (Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.memo[req.IdempotencyKey]; ok {
		return Response{StatusCode: 200, ExternalID: existing}, nil
	}

	switch req.Operation {
	case "create_task":
		id := uuid.NewString()
		var payload map[string]interface{}
		_ = json.Unmarshal(req.Payload, &payload)
		d.tasks[id] = payload
		d.memo[req.IdempotencyKey] = id
		return Response{StatusCode: 201, ExternalID: id}, nil
	case "add_subtask", "add_checklist_item", "update_task":
		d.memo[req.IdempotencyKey] = "applied"
		return Response{StatusCode: 200}, nil
	case "list_tasks":
		out, _ := json.Marshal(d.tasks)
		return Response{StatusCode: 200, Body: out}, nil
	default:
		return Response{StatusCode: 400}, nil
	}
}

func (d *DemoCapability) VerifyWebhook(headers map[string][]string, body []byte) error {
	return nil
}
