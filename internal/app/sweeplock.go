/**
 * @description
 * Distributed sweep lease backed by Redis. Sweeps are idempotent by design,
 * but the lease keeps overlapping invocations (operator trigger plus a
 * concurrent cron fire, or multiple nodes) from interleaving sends at all.
 */
package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SweepLocker grants short-lived exclusive leases on named sweeps.
type SweepLocker interface {
	// Acquire tries to take the lease. When acquired is true the caller owns
	// the lease and must call release when done.
	Acquire(ctx context.Context, name string) (release func(), acquired bool, err error)
}

// NoopSweepLocker always grants the lease. Used when Redis is not configured;
// single-node deployments are still protected by the dedup-by-log check.
type NoopSweepLocker struct{}

func (NoopSweepLocker) Acquire(ctx context.Context, name string) (func(), bool, error) {
	return func() {}, true, nil
}

// RedisSweepLocker implements SweepLocker with SET NX PX leases.
type RedisSweepLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisSweepLocker creates a locker with the given key prefix and lease
// TTL. The TTL bounds how long a crashed holder can block the next sweep.
func NewRedisSweepLocker(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisSweepLocker {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "zapfatura:sweep_lock"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisSweepLocker{
		client: client,
		prefix: trimmedPrefix,
		ttl:    ttl,
	}
}

// releaseScript deletes the lease only when the stored token still matches,
// so an expired-and-reacquired lease is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisSweepLocker) Acquire(ctx context.Context, name string) (func(), bool, error) {
	key := fmt.Sprintf("%s:%s", l.prefix, strings.TrimSpace(name))
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Release is best-effort; the TTL reclaims the lease regardless.
		if err := releaseScript.Run(context.Background(), l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			log.Printf("level=warn component=sweep_lock msg=\"lease release failed\" key=%s err=%v", key, err)
		}
	}
	return release, true, nil
}
