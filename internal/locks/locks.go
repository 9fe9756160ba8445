// Package locks provides short-lived Redis locks that collapse duplicate
// background work on the same key.
package locks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNotAcquired is returned when another holder owns the key
var ErrNotAcquired = errors.New("lock not acquired")

const keyPrefix = "goldstreak:lock:"

// Only the holder's token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker acquires locks. A nil *RedisLocker is not valid; use Noop when Redis
// is not configured.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RedisLocker implements Locker with SET NX PX
type RedisLocker struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewRedisLocker wraps an existing client
func NewRedisLocker(client redis.UniversalClient, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{client: client, logger: logger}
}

// Acquire takes key for ttl. The returned release is safe to call after the
// lock has expired.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	ok, err := l.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return func() {
		// detached from the caller so cancellation does not leak the lock
		err := releaseScript.Run(context.Background(), l.client, []string{keyPrefix + key}, token).Err()
		if err != nil {
			l.logger.Warn("lock_release_failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// Noop always succeeds
type Noop struct{}

// Acquire implements Locker
func (Noop) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
