package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TickLock is a redis advisory lock taken around one scheduler tick so
// overlapping worker invocations do not double-process a batch. Losing the
// lock mid-tick is not fenced; the DB save path stays correct either way,
// this only avoids wasted duplicate work.
type TickLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// ErrNotAcquired means another invocation holds the lock.
var ErrNotAcquired = fmt.Errorf("tick lock held by another worker")

func NewTickLock(client *redis.Client, key string, ttl time.Duration) *TickLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &TickLock{client: client, key: key, ttl: ttl}
}

// Acquire takes the lock or returns ErrNotAcquired.
func (l *TickLock) Acquire(ctx context.Context) error {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire tick lock: %w", err)
	}
	if !ok {
		return ErrNotAcquired
	}
	l.token = token
	return nil
}

// releaseScript deletes the key only when this invocation still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Release drops the lock if still held by this invocation.
func (l *TickLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release tick lock: %w", err)
	}
	l.token = ""
	return nil
}
