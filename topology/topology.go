// Package topology 管理运行时之间的集群通信：成员关系与命名通道上的消息收发。
//
// MessagingService 在 mq.Client 上实现 Service：
//   - 广播主题 "<prefix>.<channel>"，定向主题 "<prefix>.<channel>.to.<runtime>"，打开通道时两者都订阅
//   - 负载封装为 Envelope 后用 msgpack 编码，类型由 Codec 注册
//   - 收到自己发出的广播直接丢弃
//   - 发送经过 breaker，按通道名隔离
//   - 发送与接收各有一个 Span，Span 上下文放在消息头里传播
//
// 成员关系由 Membership 提供：EtcdMembership 以租约 key 表示在线运行时，
// StaticMembership 在同一进程内通过 StaticGroup 共享成员，用于测试与单机域。
//
// 基本使用：
//
//	codec := topology.NewCodec()
//	_ = codec.Register("address_request", func() any { return &AddressRequest{} })
//
//	membership, _ := topology.NewEtcdMembership(etcdConn, "vm1", &topology.EtcdConfig{Domain: "acme"})
//	svc, _ := topology.NewMessagingService(&topology.Config{RuntimeName: "vm1"}, mqClient, membership, codec,
//	    topology.WithLogger(logger))
//	_ = membership.Join(ctx)
//	_ = svc.OpenChannel(ctx, "FabricAddressChannel.acme", receiver)
package topology

import (
	"context"

	"github.com/ceyewan/fabric/breaker"
	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/metrics"
	"github.com/ceyewan/fabric/xerrors"

	oteltrace "go.opentelemetry.io/otel/trace"
)

// Listener 成员变化监听器，回调在成员关系的事件 goroutine 中串行调用
type Listener interface {
	OnJoin(runtimeName string)
	OnLeave(runtimeName string)
}

// MessageReceiver 通道消息接收者，msg 是 Codec 工厂创建的值
type MessageReceiver interface {
	OnMessage(ctx context.Context, msg any)
}

// Service 集群拓扑服务
type Service interface {
	// RuntimeName 本运行时名称
	RuntimeName() string
	// Runtimes 当前在线的运行时，包含自身
	Runtimes() []string

	Register(l Listener)
	Deregister(l Listener)

	// OpenChannel 打开命名通道，同名通道只能打开一次
	OpenChannel(ctx context.Context, name string, receiver MessageReceiver) error
	CloseChannel(ctx context.Context, name string) error

	// SendAsynchronous 向通道广播，不等待送达
	SendAsynchronous(ctx context.Context, channel string, payload any) error
	// SendAsynchronousTo 只发给指定运行时
	SendAsynchronousTo(ctx context.Context, runtimeName, channel string, payload any) error
}

// Membership 域成员关系
type Membership interface {
	// Join 加入域，之后 Members 包含自身
	Join(ctx context.Context) error
	// Leave 离开域并停止监听，可重复调用
	Leave(ctx context.Context) error
	// Members 当前成员，按名称排序
	Members() []string
	Register(l Listener)
	Deregister(l Listener)
}

var (
	ErrChannelAlreadyOpen = xerrors.New("topology: channel already open")
	ErrChannelNotOpen     = xerrors.New("topology: channel not open")
	ErrUnknownMessageType = xerrors.New("topology: unknown message type")
	ErrAlreadyJoined      = xerrors.New("topology: already joined")
)

// Option 拓扑组件选项
type Option func(*options)

type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	breaker breaker.Breaker
	tracer  oteltrace.Tracer
}

// WithLogger 设置日志记录器，自动追加 "topology" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("topology")
		}
	}
}

// WithMeter 设置指标收集器，同时用于默认创建的熔断器
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithBreaker 使用外部熔断器，未设置时按 breaker.DefaultConfig 创建
func WithBreaker(b breaker.Breaker) Option {
	return func(o *options) {
		o.breaker = b
	}
}

// WithTracer 设置消息 Span 使用的 Tracer，未设置时使用全局 TracerProvider
func WithTracer(t oteltrace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
