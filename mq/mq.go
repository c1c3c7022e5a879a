// Package mq 为 fabric 的运行时拓扑提供轻量的发布订阅通道。
//
// 只提供 at-most-once 的广播语义，对应 NATS Core 与 Redis Pub/Sub；
// memory 驱动在进程内模拟同一语义，用于单元测试与单机部署。
//
// 基本使用：
//
//	client, _ := mq.New(&mq.Config{Driver: mq.DriverNATS},
//	    mq.WithNATSConnector(natsConn), mq.WithLogger(logger))
//	defer client.Close()
//
//	sub, _ := client.Subscribe(ctx, "fabric.addr", func(msg mq.Message) error {
//	    return handle(msg.Data())
//	})
//	defer sub.Unsubscribe()
//
//	_ = client.Publish(ctx, "fabric.addr", payload)
package mq

import "context"

// Client 发布订阅客户端，方法均并发安全
type Client interface {
	// Publish 发布消息，返回时消息已交给底层传输，不保证送达
	Publish(ctx context.Context, topic string, data []byte, opts ...PublishOption) error

	// Subscribe 订阅主题，handler 在订阅自己的 goroutine 中按到达顺序串行调用
	Subscribe(ctx context.Context, topic string, handler Handler, opts ...SubscribeOption) (Subscription, error)

	// Close 取消全部订阅，不关闭借用的连接
	Close() error
}

// Handler 消息处理函数，返回的错误只被记录，不会触发重投
type Handler func(msg Message) error

// Message 收到的一条消息
type Message interface {
	// Context 消息处理上下文，订阅取消时随之取消
	Context() context.Context
	Topic() string
	Data() []byte
	Headers() Headers
}

// Subscription 订阅句柄
type Subscription interface {
	// Unsubscribe 取消订阅，可重复调用
	Unsubscribe() error
	// Done 订阅结束后关闭
	Done() <-chan struct{}
}

// Headers 消息头
type Headers map[string]string

// Get 读取消息头，nil 安全
func (h Headers) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[key]
}

// Set 设置消息头
func (h Headers) Set(key, value string) {
	h[key] = value
}

// Clone 复制消息头，nil 返回 nil
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// transport 驱动需要实现的最小接口
type transport interface {
	publish(ctx context.Context, topic string, data []byte, headers Headers) error
	subscribe(ctx context.Context, topic string, handler Handler, o subscribeOptions) (Subscription, error)
	close() error
}
