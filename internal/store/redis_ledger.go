package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger implements Ledger on top of Redis SETNX-with-TTL: a
// delivery ID is "fresh" exactly once per TTL window, which is exactly
// what SET key val NX EX ttl gives for free.
type RedisLedger struct {
	client *redis.Client
}

// NewRedisLedger wraps an existing redis.Client. The client is shared
// with RedisCoordinator; the ledger does not own the connection.
func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func (l *RedisLedger) CheckAndInsert(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	key := Key(ResourceSeenDelivery, deliveryID)
	fresh, err := l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, err
	}
	return fresh, nil
}

// MemoryLedger is a process-local Ledger used by tests and single-node
// dev runs, mirroring RedisLedger's semantics without a TTL sweep
// (expired entries simply age out lazily on next check).
type MemoryLedger struct {
	mu      chan struct{} // 1-buffered channel used as a lightweight mutex
	entries map[string]time.Time
}

// NewMemoryLedger builds an empty in-process ledger.
func NewMemoryLedger() *MemoryLedger {
	m := &MemoryLedger{mu: make(chan struct{}, 1), entries: make(map[string]time.Time)}
	m.mu <- struct{}{}
	return m
}

func (l *MemoryLedger) CheckAndInsert(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	<-l.mu
	defer func() { l.mu <- struct{}{} }()

	now := time.Now()
	if expiry, ok := l.entries[deliveryID]; ok && now.Before(expiry) {
		return false, nil
	}
	l.entries[deliveryID] = now.Add(ttl)
	return true, nil
}
