// Package backend abstracts the third-party task-management systems the
// outbox delivers to: a single capability interface covering
// create/add-subtask/add-checklist-item/update/list plus webhook
// verification, idempotency-key aware throughout.
package backend

import (
	"context"
)

// Request is one outbox row's dispatch intent, already carrying its
// producer-computed idempotency key.
type Request struct {
	Operation      string
	Endpoint       string
	Payload        []byte
	Headers        map[string]string
	IdempotencyKey string
}

// Response is the normalized outcome of a dispatch call; StatusCode
// follows HTTP status-class conventions even for non-HTTP transports so
// the outbox worker can classify it with errs.ClassifyHTTPStatus.
type Response struct {
	StatusCode int
	ExternalID string // set on a successful create_task
	Body       []byte
	RetryAfter int // seconds, honored when present on 429
}

// Capability is the contract every backend adapter implements. All
// mutating operations accept and propagate the caller's idempotency
// key; adapters for backends without native idempotency support keep a
// local key→external-id memo to short-circuit duplicate calls.
type Capability interface {
	Name() string
	Dispatch(ctx context.Context, req Request) (Response, error)
	VerifyWebhook(headers map[string][]string, body []byte) error
}

// WebhookCreator is an optional extension some backends support;
// adapters that can provision their own webhook subscriptions implement
// it, others simply don't assert the interface.
type WebhookCreator interface {
	CreateWebhook(ctx context.Context, callbackURL string) error
}
