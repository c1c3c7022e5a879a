package mq

import (
	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/connector"
	"github.com/ceyewan/fabric/metrics"
)

type options struct {
	logger    clog.Logger
	meter     metrics.Meter
	natsConn  connector.NATSConnector
	redisConn connector.RedisConnector
	hub       *Hub
}

// Option 客户端选项
type Option func(*options)

// WithLogger 设置日志记录器，自动追加 "mq" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("mq")
		}
	}
}

// WithMeter 设置指标收集器
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithNATSConnector nats 驱动所需的连接器
func WithNATSConnector(conn connector.NATSConnector) Option {
	return func(o *options) {
		o.natsConn = conn
	}
}

// WithRedisConnector redis 驱动所需的连接器
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		o.redisConn = conn
	}
}

// WithHub memory 驱动使用的 Hub，多个客户端共享同一 Hub 即可互相通信。
// 不设置时每个客户端独占一个 Hub。
func WithHub(hub *Hub) Option {
	return func(o *options) {
		o.hub = hub
	}
}

// PublishOption 发布选项
type PublishOption func(*publishOptions)

type publishOptions struct {
	headers Headers
}

// WithHeaders 合并一组消息头
func WithHeaders(headers Headers) PublishOption {
	return func(o *publishOptions) {
		if len(headers) == 0 {
			return
		}
		if o.headers == nil {
			o.headers = make(Headers, len(headers))
		}
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithHeader 设置单个消息头
func WithHeader(key, value string) PublishOption {
	return func(o *publishOptions) {
		if o.headers == nil {
			o.headers = make(Headers, 1)
		}
		o.headers[key] = value
	}
}

// SubscribeOption 订阅选项
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	queueGroup string
	bufferSize int
}

// WithQueueGroup 加入队列组，同组订阅者中每条消息只投递给一个。
// redis 驱动不支持。
func WithQueueGroup(group string) SubscribeOption {
	return func(o *subscribeOptions) {
		o.queueGroup = group
	}
}

// WithBufferSize 覆盖 Config.BufferSize
func WithBufferSize(size int) SubscribeOption {
	return func(o *subscribeOptions) {
		if size > 0 {
			o.bufferSize = size
		}
	}
}
