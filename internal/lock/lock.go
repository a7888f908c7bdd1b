// SPDX-License-Identifier: MIT

// Package lock implements the per-asset distributed processing lock.
//
// The lock is a Redis set-if-absent entry with a TTL. It guarantees at most
// one active transcode/moderation mutation per asset cluster-wide. Failing to
// acquire it is not an error condition: the caller skips the job, it does not
// retry. The TTL bounds the damage of a crashed worker that never released.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Lock guards mutating pipeline work on a single asset.
type Lock interface {
	Acquire(ctx context.Context, assetID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, assetID string) error
	IsHeld(ctx context.Context, assetID string) (bool, error)
}

// keyFor builds the Redis key guarding one asset.
func keyFor(assetID string) string {
	return "asset:processing:" + assetID
}

// RedisLock is the Redis-backed Lock implementation.
type RedisLock struct {
	client *redis.Client
	logger zerolog.Logger
}

// New creates a Redis-backed lock using an existing client.
func New(client *redis.Client, logger zerolog.Logger) *RedisLock {
	return &RedisLock{client: client, logger: logger}
}

// Acquire atomically claims the asset for ttl. It returns false when another
// worker already holds the lock.
func (l *RedisLock) Acquire(ctx context.Context, assetID string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, keyFor(assetID), "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock for %s: %w", assetID, err)
	}
	if !ok {
		l.logger.Warn().
			Str("event", "lock.contention").
			Str("asset_id", assetID).
			Msg("asset already locked, skipping")
	}
	return ok, nil
}

// Release drops the lock. It is called on every exit path; releasing a lock
// that already expired is a no-op.
func (l *RedisLock) Release(ctx context.Context, assetID string) error {
	if err := l.client.Del(ctx, keyFor(assetID)).Err(); err != nil {
		return fmt.Errorf("release lock for %s: %w", assetID, err)
	}
	return nil
}

// IsHeld reports whether the asset is currently locked.
func (l *RedisLock) IsHeld(ctx context.Context, assetID string) (bool, error) {
	n, err := l.client.Exists(ctx, keyFor(assetID)).Result()
	if err != nil {
		return false, fmt.Errorf("check lock for %s: %w", assetID, err)
	}
	return n > 0, nil
}

var _ Lock = (*RedisLock)(nil)
