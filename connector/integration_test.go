package connector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/fabric/testkit"
)

func TestNATSConnector_Integration(t *testing.T) {
	conn := testkit.NewNATSContainerConnector(t)
	ctx := context.Background()

	// 重复 Connect 是幂等的
	require.NoError(t, conn.Connect(ctx))
	require.NoError(t, conn.HealthCheck(ctx))
	assert.True(t, conn.IsHealthy())
	assert.True(t, conn.GetClient().IsConnected())

	require.NoError(t, conn.Close())
	assert.False(t, conn.IsHealthy())
	assert.NoError(t, conn.Close())
}

func TestEtcdConnector_Integration(t *testing.T) {
	conn := testkit.NewEtcdContainerConnector(t)
	ctx := context.Background()

	require.NoError(t, conn.HealthCheck(ctx))
	_, err := conn.GetClient().Put(ctx, "fabric/test/"+testkit.NewID(), "v")
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	assert.Nil(t, conn.GetClient())
}

func TestRedisConnector_Integration(t *testing.T) {
	conn := testkit.NewRedisContainerConnector(t)
	ctx := context.Background()

	require.NoError(t, conn.HealthCheck(ctx))
	key := "fabric:test:" + testkit.NewID()
	require.NoError(t, conn.GetClient().Set(ctx, key, "v", 0).Err())
	val, err := conn.GetClient().Get(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}
