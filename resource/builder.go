package resource

import (
	"github.com/ceyewan/fabric/cache"
	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/connector"
	"github.com/ceyewan/fabric/model"
	"github.com/ceyewan/fabric/xerrors"
)

// Option Builder 选项
type Option func(*Builder)

// WithLogger 设置日志记录器，自动追加 "resource" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l.WithNamespace("resource")
		}
	}
}

// WithRedisConnector redis 类型的缓存使用该连接
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(b *Builder) {
		b.redis = conn
	}
}

// Builder 把 cache-set 目标端描述创建为缓存实例
type Builder struct {
	logger clog.Logger
	redis  connector.RedisConnector
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{logger: clog.Discard()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build 按名称返回缓存。任一缓存创建失败时关闭已创建的实例
func (b *Builder) Build(target *model.WireTarget) (map[string]cache.Cache, error) {
	if target == nil || target.Kind != string(KindCacheSet) {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "resource: target is not a cache set")
	}
	configs, ok := target.Properties[PropCaches].([]*cache.Config)
	if !ok {
		return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "resource: target %s has no cache configs", target.URI)
	}

	opts := []cache.Option{cache.WithLogger(b.logger)}
	if b.redis != nil {
		opts = append(opts, cache.WithRedisConnector(b.redis))
	}

	caches := make(map[string]cache.Cache, len(configs))
	for _, cfg := range configs {
		c, err := cache.New(cfg, opts...)
		if err != nil {
			errs := []error{xerrors.Wrapf(err, "resource: build cache %s", cfg.Name)}
			for _, built := range caches {
				errs = append(errs, built.Close())
			}
			return nil, xerrors.Combine(errs...)
		}
		caches[cfg.Name] = c
		b.logger.Debug("cache built", clog.String("resource", target.URI), clog.String("cache", cfg.Name), clog.String("type", string(cfg.Type)))
	}
	return caches, nil
}
