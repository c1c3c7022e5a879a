package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) *standaloneLimiter {
	t.Helper()
	l, err := New(&Config{CleanupInterval: time.Hour, IdleTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l.(*standaloneLimiter)
}

func TestConfigDefaults(t *testing.T) {
	c := &Config{}
	c.setDefaults()
	assert.Equal(t, time.Minute, c.CleanupInterval)
	assert.Equal(t, 5*time.Minute, c.IdleTimeout)

	l, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}

func TestAllow(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	limit := Limit{Rate: 0.001, Burst: 3}

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "rt-1", limit)
		require.NoError(t, err)
		assert.True(t, ok, "request %d within burst", i)
	}
	ok, err := l.Allow(ctx, "rt-1", limit)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "rt-2", limit)
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")
}

func TestAllowN(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	limit := Limit{Rate: 0.001, Burst: 5}

	ok, err := l.AllowN(ctx, "k", limit, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.AllowN(ctx, "k", limit, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = l.AllowN(ctx, "k", limit, 0)
	assert.Error(t, err)
}

func TestInvalidArguments(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	_, err := l.Allow(ctx, "", Limit{Rate: 1, Burst: 1})
	assert.ErrorIs(t, err, ErrKeyEmpty)

	for _, limit := range []Limit{{Rate: 0, Burst: 1}, {Rate: 1, Burst: 0}, {Rate: -1, Burst: -1}} {
		_, err = l.Allow(ctx, "k", limit)
		assert.ErrorIs(t, err, ErrInvalidLimit)
	}
	assert.ErrorIs(t, l.Wait(ctx, "k", Limit{}), ErrInvalidLimit)
}

func TestWait(t *testing.T) {
	l := newTestLimiter(t)
	limit := Limit{Rate: 100, Burst: 1}

	require.NoError(t, l.Wait(context.Background(), "w", limit))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.Wait(ctx, "w", Limit{Rate: 0.001, Burst: 1}))
}

func TestEvictIdle(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	limit := Limit{Rate: 0.001, Burst: 1}

	ok, _ := l.Allow(ctx, "idle", limit)
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "idle", limit)
	require.False(t, ok)

	assert.Equal(t, 1, l.evictIdle(time.Now().Add(time.Second)))

	ok, _ = l.Allow(ctx, "idle", limit)
	assert.True(t, ok, "evicted bucket starts full")
}

func TestConcurrentAllow(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	limit := Limit{Rate: 0.001, Burst: 50}

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow(ctx, "shared", limit); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(50), allowed.Load())
}
