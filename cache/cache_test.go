package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/fabric/cache/serializer"
	"github.com/ceyewan/fabric/xerrors"
)

type session struct {
	User  string
	Roles []string
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = New(&Config{})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput, "name is required")

	_, err = New(&Config{Name: "x", Type: "memcached"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = New(&Config{Name: "x", Serializer: "gob"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = New(&Config{Name: "x", Type: TypeRedis})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput, "redis without connector")
}

func TestConfigDefaults(t *testing.T) {
	c := &Config{Name: "sessions"}
	c.setDefaults()
	assert.Equal(t, TypeMemory, c.Type)
	assert.Equal(t, 10000, c.Capacity)
	assert.Equal(t, "sessions:", c.Prefix)
}

func TestMemoryCache(t *testing.T) {
	c, err := New(&Config{Name: "sessions", Capacity: 100})
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	assert.Equal(t, "sessions", c.Name())

	var miss session
	assert.ErrorIs(t, c.Get(ctx, "s1", &miss), ErrMiss)

	want := session{User: "alice", Roles: []string{"admin"}}
	require.NoError(t, c.Set(ctx, "s1", want, 0))

	var got session
	require.NoError(t, c.Get(ctx, "s1", &got))
	assert.Equal(t, want, got)

	ok, err := c.Has(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "s1"))
	ok, _ = c.Has(ctx, "s1")
	assert.False(t, ok)

	assert.ErrorIs(t, c.Expire(ctx, "s1", time.Second), ErrMiss)
}

func TestMemoryCacheTTL(t *testing.T) {
	c, err := New(&Config{Name: "ttl"})
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 20*time.Millisecond))
	require.Eventually(t, func() bool {
		ok, _ := c.Has(ctx, "k")
		return !ok
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Set(ctx, "k2", "v", 0))
	require.NoError(t, c.Expire(ctx, "k2", 20*time.Millisecond))
	require.Eventually(t, func() bool {
		ok, _ := c.Has(ctx, "k2")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestAssign(t *testing.T) {
	var i64 int64
	require.NoError(t, assign(42, &i64))
	assert.Equal(t, int64(42), i64)

	var f float64
	require.NoError(t, assign(3, &f))
	assert.Equal(t, 3.0, f)

	var anyVal any
	require.NoError(t, assign("x", &anyVal))
	assert.Equal(t, "x", anyVal)

	var s string
	assert.Error(t, assign(1, &s))
	assert.ErrorIs(t, assign(1, s), xerrors.ErrInvalidInput)
}

func TestSerializer(t *testing.T) {
	for _, name := range []string{"", "msgpack", "json"} {
		s, err := serializer.New(name)
		require.NoError(t, err, name)

		data, err := s.Marshal(session{User: "bob"})
		require.NoError(t, err)
		var got session
		require.NoError(t, s.Unmarshal(data, &got))
		assert.Equal(t, "bob", got.User, name)
	}
	_, err := serializer.New("xml")
	assert.ErrorIs(t, err, serializer.ErrUnsupported)
}
