package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	etcdcontainer "github.com/testcontainers/testcontainers-go/modules/etcd"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/fabric/connector"
)

// NewEtcdContainerConfig 启动 Etcd 容器并返回连接配置
func NewEtcdContainerConfig(t *testing.T) *connector.EtcdConfig {
	t.Helper()
	SkipIfShort(t)
	ctx := context.Background()

	container, err := etcdcontainer.Run(ctx, "quay.io/coreos/etcd:v3.5.9")
	require.NoError(t, err, "failed to start etcd container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "2379")
	require.NoError(t, err)

	return &connector.EtcdConfig{
		Name:        "testcontainer-etcd",
		Endpoints:   []string{host + ":" + port.Port()},
		DialTimeout: 5 * time.Second,
	}
}

// NewEtcdContainerConnector 启动容器并返回已连接的连接器
func NewEtcdContainerConnector(t *testing.T) connector.EtcdConnector {
	t.Helper()
	cfg := NewEtcdContainerConfig(t)

	conn, err := connector.NewEtcd(cfg, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create etcd connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to etcd")
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// NewEtcdContainerClient 返回原生 Etcd 客户端
func NewEtcdContainerClient(t *testing.T) *clientv3.Client {
	return NewEtcdContainerConnector(t).GetClient()
}
