package cache

import (
	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/connector"
	"github.com/ceyewan/fabric/xerrors"
)

// ErrMiss 缓存未命中
var ErrMiss = xerrors.New("cache: miss")

// Option 缓存选项
type Option func(*options)

type options struct {
	logger    clog.Logger
	redisConn connector.RedisConnector
}

// WithLogger 设置日志记录器，自动追加 "cache" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("cache")
		}
	}
}

// WithRedisConnector redis 后端使用的连接器
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		o.redisConn = conn
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
