package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/Geralt1983/Project-Archangel/internal/config"
)

// RESTCapability dispatches outbox rows to a generic REST-ish
// third-party API: the payload is POSTed/PUT as-is to cred.BaseURL+
// endpoint, and the idempotency key is carried as a header for backends
// that honor one natively. For backends that do not, localMemo
// short-circuits a retried create_task to the external ID recorded on
// the first successful call.
type RESTCapability struct {
	name   string
	cred   config.BackendCredential
	client *http.Client

	nativeIdempotency bool

	mu        sync.Mutex
	localMemo map[string]string
}

func NewRESTCapability(name string, cred config.BackendCredential, client *http.Client, nativeIdempotency bool) *RESTCapability {
	return &RESTCapability{
		name:              name,
		cred:              cred,
		client:            client,
		nativeIdempotency: nativeIdempotency,
		localMemo:         make(map[string]string),
	}
}

func (r *RESTCapability) Name() string { return r.name }

func (r *RESTCapability) Dispatch(ctx context.Context, req Request) (Response, error) {
	if !r.nativeIdempotency && req.Operation != string(methodList) {
		r.mu.Lock()
		if existing, ok := r.localMemo[req.IdempotencyKey]; ok {
			r.mu.Unlock()
			return Response{StatusCode: 200, ExternalID: existing}, nil
		}
		r.mu.Unlock()
	}

	method := http.MethodPost
	var reqBody io.Reader = bytes.NewReader(req.Payload)
	isList := req.Operation == string(methodList)
	switch req.Operation {
	case string(methodUpdate):
		method = http.MethodPut
	case string(methodList):
		// A list/read call carries no payload and must not send one.
		method = http.MethodGet
		reqBody = nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, r.cred.BaseURL+req.Endpoint, reqBody)
	if err != nil {
		return Response{}, err
	}
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+r.cred.APIToken)
	if r.nativeIdempotency && !isList {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	out := Response{StatusCode: resp.StatusCode, Body: body}

	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				out.RetryAfter = secs
			}
		}
		return out, nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		externalID := extractExternalID(body)
		out.ExternalID = externalID
		if !r.nativeIdempotency && !isList && externalID != "" {
			r.mu.Lock()
			r.localMemo[req.IdempotencyKey] = externalID
			r.mu.Unlock()
		}
	}

	return out, nil
}

func (r *RESTCapability) VerifyWebhook(headers map[string][]string, body []byte) error {
	return nil
}

const methodUpdate = "update_task"
const methodList = "list_tasks"

// extractExternalID pulls a conventional top-level string "id" field out
// of a JSON response body; a body without one (or that is not JSON)
// yields "".
func extractExternalID(body []byte) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.ID
}
