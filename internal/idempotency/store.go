// Package idempotency caches the HTTP response produced for a given
// client-supplied idempotency key, so a retried intake request
// replays the original response instead of re-running the handler.
package idempotency

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/patrickmn/go-cache"
)

// Response is the cached shape of a handled request.
type Response struct {
	StatusCode int                 `json:"status_code"`
	Body       []byte              `json:"body"`
	Headers    map[string][]string `json:"headers"`
}

// Backend is the optional durable tier, satisfied by a Redis client.
// When nil, Store falls back to the in-process go-cache only, which is
// sufficient for single-node/dev operation but does not survive a
// restart.
type Backend interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// Store is a two-tier idempotency response cache: a local go-cache
// instance checked first, used both as the sole store when no backend
// is configured and as a fast path that avoids a round-trip for keys
// this process already resolved, and an optional durable backend
// consulted on a local miss.
type Store struct {
	backend Backend
	local   *cache.Cache
}

// TTL is the idempotency window a cached response stays replayable for.
const TTL = 24 * time.Hour

// NewStore builds a Store. backend may be nil.
func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		local:   cache.New(TTL, TTL/2),
	}
}

// Get returns the cached response for key, if any.
func (s *Store) Get(ctx context.Context, key string) (Response, bool) {
	if val, ok := s.local.Get(key); ok {
		return val.(Response), true
	}

	if s.backend == nil {
		return Response{}, false
	}

	raw, err := s.backend.Get(ctx, key)
	if err != nil {
		log.Printf("idempotency: backend get %s: %v", key, err)
		return Response{}, false
	}
	if raw == "" {
		return Response{}, false
	}
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return Response{}, false
	}
	s.local.Set(key, resp, TTL)
	return resp, true
}

// Set records resp under key in both tiers.
func (s *Store) Set(ctx context.Context, key string, resp Response) {
	s.local.Set(key, resp, TTL)

	if s.backend == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.backend.Set(ctx, key, string(data), TTL); err != nil {
		log.Printf("idempotency: backend set %s: %v", key, err)
	}
}
