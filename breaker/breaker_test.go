package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func TestNew(t *testing.T) {
	brk, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, brk)

	_, err = New(&Config{FailureRatio: 1.5})
	assert.ErrorIs(t, err, ErrInvalidRatio)

	cfg := DefaultConfig()
	assert.Equal(t, uint32(1), cfg.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 0.6, cfg.FailureRatio)
	assert.Equal(t, uint32(10), cfg.MinimumRequests)
}

func TestExecute(t *testing.T) {
	brk, err := New(&Config{MinimumRequests: 2, FailureRatio: 0.5, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("empty key", func(t *testing.T) {
		assert.ErrorIs(t, brk.Execute(ctx, "", func() error { return nil }), ErrKeyEmpty)
		_, err := brk.State("")
		assert.ErrorIs(t, err, ErrKeyEmpty)
	})

	t.Run("passes through errors while closed", func(t *testing.T) {
		assert.NoError(t, brk.Execute(ctx, "a", func() error { return nil }))
		assert.ErrorIs(t, brk.Execute(ctx, "a", func() error { return errBackend }), errBackend)
		state, err := brk.State("a")
		require.NoError(t, err)
		assert.Equal(t, StateOpen, state, "1 of 2 failed reaches the 0.5 ratio")
	})

	t.Run("open rejects without calling fn", func(t *testing.T) {
		called := false
		err := brk.Execute(ctx, "a", func() error { called = true; return nil })
		assert.ErrorIs(t, err, ErrOpenState)
		assert.False(t, called)
	})

	t.Run("keys are isolated", func(t *testing.T) {
		assert.NoError(t, brk.Execute(ctx, "b", func() error { return nil }))
		state, _ := brk.State("b")
		assert.Equal(t, StateClosed, state)
	})

	t.Run("half open recovers", func(t *testing.T) {
		require.Eventually(t, func() bool {
			s, _ := brk.State("a")
			return s == StateHalfOpen
		}, time.Second, 10*time.Millisecond)
		assert.NoError(t, brk.Execute(ctx, "a", func() error { return nil }))
		state, _ := brk.State("a")
		assert.Equal(t, StateClosed, state)
	})
}

func TestFallback(t *testing.T) {
	var fallbackKey string
	brk, err := New(&Config{MinimumRequests: 1, FailureRatio: 1, Timeout: time.Minute},
		WithFallback(func(ctx context.Context, key string, err error) error {
			fallbackKey = key
			assert.ErrorIs(t, err, ErrOpenState)
			return nil
		}))
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, brk.Execute(ctx, "svc", func() error { return errBackend }))
	assert.NoError(t, brk.Execute(ctx, "svc", func() error { return nil }))
	assert.Equal(t, "svc", fallbackKey)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
