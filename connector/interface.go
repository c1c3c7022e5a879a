// Package connector 管理 fabric 依赖的外部连接：NATS、Etcd、Redis。
//
// 连接器创建时不建立连接，Connect 时才连接，Connect 与 Close 均可重复调用。
// 连接器拥有底层客户端的生命周期，借用客户端的组件（mq、topology、cache）不应关闭它。
//
// 基本使用：
//
//	conn, _ := connector.NewNATS(&connector.NATSConfig{URL: "nats://127.0.0.1:4222"},
//	    connector.WithLogger(logger))
//	defer conn.Close()
//	if err := conn.Connect(ctx); err != nil {
//	    return err
//	}
//	nc := conn.GetClient()
package connector

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Connector 所有连接器的通用行为，方法均并发安全
type Connector interface {
	// Connect 建立连接，已连接时直接返回 nil
	Connect(ctx context.Context) error
	// Close 关闭连接，可重复调用
	Close() error
	// HealthCheck 主动探测并刷新 IsHealthy 的缓存结果
	HealthCheck(ctx context.Context) error
	IsHealthy() bool
	Name() string
}

// TypedConnector 提供类型安全的客户端访问，Connect 之前 GetClient 返回零值
type TypedConnector[T any] interface {
	Connector
	GetClient() T
}

// NATSConnector NATS 连接器，内置自动重连
type NATSConnector interface {
	TypedConnector[*nats.Conn]
}

// EtcdConnector Etcd 连接器
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}

// RedisConnector Redis 连接器
type RedisConnector interface {
	TypedConnector[*redis.Client]
}
