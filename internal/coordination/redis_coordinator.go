package coordination

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCoordinator implements Coordinator on a shared redis.Client:
// AcquireLock/RenewLock/ReleaseLock/ScanLocks/IncrementEpoch, with no
// separate lease or presence surface since nothing here needs it.
type RedisCoordinator struct {
	client *redis.Client
}

// NewRedisCoordinator wraps an existing client.
func NewRedisCoordinator(client *redis.Client) *RedisCoordinator {
	return &RedisCoordinator{client: client}
}

func (c *RedisCoordinator) AcquireLock(ctx context.Context, key, ownerID string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, ownerID, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

const renewScript = `
local val = redis.call("get", KEYS[1])
if not val then
	return -1
end
if val == ARGV[1] then
	return redis.call("pexpire", KEYS[1], tonumber(ARGV[2]))
else
	return -2
end
`

func (c *RedisCoordinator) RenewLock(ctx context.Context, key, ownerID string, ttl time.Duration) (bool, error) {
	res, err := c.client.Eval(ctx, renewScript, []string{key}, ownerID, int64(ttl/time.Millisecond)).Result()
	if err != nil {
		return false, err
	}
	val, ok := res.(int64)
	if !ok {
		return false, errors.New("coordination: unexpected renew script return type")
	}
	return val == 1, nil
}

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

func (c *RedisCoordinator) ReleaseLock(ctx context.Context, key, ownerID string) error {
	_, err := c.client.Eval(ctx, releaseScript, []string{key}, ownerID).Result()
	return err
}

func (c *RedisCoordinator) GetLockOwner(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (c *RedisCoordinator) IncrementEpoch(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key+":epoch").Result()
}

func (c *RedisCoordinator) ScanLocks(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}
