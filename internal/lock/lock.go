// Package lock keeps scheduler passes from running twice at the same time,
// within one process or across replicas sharing a redis.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Unlock releases a lock obtained from a Locker.
type Unlock func(ctx context.Context) error

type Locker interface {
	// TryLock returns ok=false without error when someone else holds key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock Unlock, ok bool, err error)
}

const keyPrefix = "labinventory:lock:"

// releaseScript deletes the key only if it still carries our token, so an
// expired lock taken over by another replica is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	rdb redis.UniversalClient
}

func NewRedisLocker(rdb redis.UniversalClient) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Unlock, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.rdb, []string{keyPrefix + key}, token).Err()
	}, true, nil
}

// Local is an in-process Locker. TTLs are honoured lazily on the next TryLock.
type Local struct {
	mu    sync.Mutex
	held  map[string]time.Time
	nowFn func() time.Time
}

func NewLocal() *Local {
	return &Local{held: make(map[string]time.Time), nowFn: time.Now}
}

func (l *Local) TryLock(ctx context.Context, key string, ttl time.Duration) (Unlock, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return nil, false, nil
	}
	exp := now.Add(ttl)
	l.held[key] = exp
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key].Equal(exp) {
			delete(l.held, key)
		}
		return nil
	}, true, nil
}
