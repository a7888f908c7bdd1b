// SPDX-License-Identifier: MIT

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) (*RedisLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, zerolog.Nop()), mr
}

func TestAcquireRelease(t *testing.T) {
	l, _ := newTestLock(t)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "asset-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	held, err := l.IsHeld(ctx, "asset-1")
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, l.Release(ctx, "asset-1"))

	held, err = l.IsHeld(ctx, "asset-1")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestAcquireIsExclusive(t *testing.T) {
	l, _ := newTestLock(t)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "asset-1", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	// Second acquire on the same asset must be refused.
	ok, err = l.Acquire(ctx, "asset-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	// A different asset is unaffected.
	ok, err = l.Acquire(ctx, "asset-2", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquireAfterTTLExpiry(t *testing.T) {
	l, mr := newTestLock(t)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "asset-1", 2*time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2*time.Hour + time.Second)

	ok, err = l.Acquire(ctx, "asset-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock must be acquirable again")
}

func TestReleaseUnheldIsNoop(t *testing.T) {
	l, _ := newTestLock(t)
	assert.NoError(t, l.Release(context.Background(), "never-locked"))
}

func TestAcquireErrorWhenRedisDown(t *testing.T) {
	l, mr := newTestLock(t)
	mr.Close()

	_, err := l.Acquire(context.Background(), "asset-1", time.Hour)
	assert.Error(t, err)
}
