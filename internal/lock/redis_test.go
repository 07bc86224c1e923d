package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"booking-service/pkg/response"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) (*RedisLock, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	l, err := NewRedisLock(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	return l, mr
}

func TestLockUnlock(t *testing.T) {
	l, mr := newTestLock(t)
	ctx := context.Background()
	key := "booking:2024-05-06:A"

	token, ok, err := l.Lock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)
	assert.True(t, mr.Exists("lock:"+key))

	_, ok, err = l.Lock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Unlock(ctx, key, token))
	assert.False(t, mr.Exists("lock:"+key))

	_, ok, err = l.Lock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlockKeepsOtherOwnersLock(t *testing.T) {
	l, mr := newTestLock(t)
	ctx := context.Background()

	stale, ok, err := l.Lock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	current, ok, err := l.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = l.Unlock(ctx, "k", stale)
	assert.True(t, errors.Is(err, ErrNotHeld))
	assert.True(t, mr.Exists("lock:k"))

	assert.NoError(t, l.Unlock(ctx, "k", current))
}

func TestAcquireWaitsForRelease(t *testing.T) {
	l, _ := newTestLock(t)
	ctx := context.Background()

	token, ok, err := l.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = l.Unlock(ctx, "k", token)
	}()

	release, err := Acquire(ctx, l, "k", time.Minute, 2*time.Second)
	require.NoError(t, err)
	assert.NoError(t, release(ctx))
}

func TestAcquireTimesOut(t *testing.T) {
	l, _ := newTestLock(t)
	ctx := context.Background()

	_, ok, err := l.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = Acquire(ctx, l, "k", time.Minute, 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, response.ErrLocked))
}

func TestNewRedisLockUnreachable(t *testing.T) {
	_, err := NewRedisLock("127.0.0.1:1")
	assert.Error(t, err)
}
