// Package cache 提供键值缓存，后端为进程内 otter 或 Redis。
//
// 组件声明的 cache-set 资源在部署时由 resource.Builder 按名称创建为 Cache 实例。
// memory 后端保存原始对象，Get 通过反射赋值给 dest，取出的引用类型应视为只读；
// redis 后端用 Serializer（默认 msgpack）编解码。
//
// 基本使用：
//
//	c, _ := cache.New(&cache.Config{Name: "sessions", Type: cache.TypeMemory, Capacity: 1000})
//	defer c.Close()
//
//	_ = c.Set(ctx, "user:1", user, time.Minute)
//	var got User
//	if err := c.Get(ctx, "user:1", &got); errors.Is(err, cache.ErrMiss) {
//	    // 未命中
//	}
package cache

import (
	"context"
	"time"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/xerrors"
)

// Cache 键值缓存，方法并发安全
type Cache interface {
	// Name 缓存名称
	Name() string

	// Set 写入，ttl <= 0 时使用 Config.DefaultTTL，仍为 0 则不过期
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Get 读取到 dest（非 nil 指针），未命中返回 ErrMiss
	Get(ctx context.Context, key string, dest any) error

	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)

	// Expire 重设过期时间，key 不存在返回 ErrMiss
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Close 释放后端资源，不关闭借用的 Redis 连接
	Close() error
}

// New 按 Config.Type 创建缓存
func New(cfg *Config, opts ...Option) (Cache, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "cache: config is nil")
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	logger := o.logger.With(clog.String("cache", c.Name), clog.String("type", string(c.Type)))

	switch c.Type {
	case TypeRedis:
		if o.redisConn == nil {
			return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "cache: redis type requires a Redis connector")
		}
		return newRedis(&c, o.redisConn, logger)
	default:
		return newMemory(&c, logger)
	}
}
