package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker provides short-lived mutual exclusion keys for the booking path.
// Acquire returns an opaque token identifying the holder; Release only drops
// the lock while the token still matches, so a holder that outlived its TTL
// cannot delete a lock someone else has since taken.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// RedisLocker implements Locker on top of SETNX with a TTL.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker wraps an existing Redis client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire attempts to take the lock. Returns false when another holder owns it.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the lock if the token still owns it. Releasing a lock that
// expired or was re-acquired by another holder is a no-op.
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockKey(key)}, token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

func lockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}
