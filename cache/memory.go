package cache

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/xerrors"
)

// noExpiry 未设置过期时间的条目使用的写入过期
const noExpiry = 24 * 365 * 100 * time.Hour

type memoryCache struct {
	name       string
	defaultTTL time.Duration
	cache      *otter.Cache[string, any]
	logger     clog.Logger
}

func newMemory(cfg *Config, logger clog.Logger) (Cache, error) {
	c, err := otter.New(&otter.Options[string, any]{
		MaximumSize:      cfg.Capacity,
		StatsRecorder:    stats.NewCounter(),
		ExpiryCalculator: otter.ExpiryWriting[string, any](noExpiry),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "cache: build otter cache")
	}
	logger.Debug("memory cache created", clog.Int("capacity", cfg.Capacity))
	return &memoryCache{name: cfg.Name, defaultTTL: cfg.DefaultTTL, cache: c, logger: logger}, nil
}

func (c *memoryCache) Name() string { return c.name }

func (c *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	c.cache.Set(key, value)
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if ttl > 0 {
		c.cache.SetExpiresAfter(key, ttl)
	}
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string, dest any) error {
	val, ok := c.cache.GetIfPresent(key)
	if !ok {
		return ErrMiss
	}
	return assign(val, dest)
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.cache.Invalidate(key)
	return nil
}

func (c *memoryCache) Has(_ context.Context, key string) (bool, error) {
	_, ok := c.cache.GetIfPresent(key)
	return ok, nil
}

func (c *memoryCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	if _, ok := c.cache.GetIfPresent(key); !ok {
		return ErrMiss
	}
	c.cache.SetExpiresAfter(key, ttl)
	return nil
}

func (c *memoryCache) Close() error {
	c.cache.StopAllGoroutines()
	return nil
}

// assign 浅拷贝赋值，数值类型之间允许转换
func assign(val, dest any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "cache: dest must be a non-nil pointer")
	}
	dv = dv.Elem()
	if val == nil {
		dv.SetZero()
		return nil
	}

	sv := reflect.ValueOf(val)
	if sv.Type().AssignableTo(dv.Type()) {
		dv.Set(sv)
		return nil
	}
	if isNumber(sv.Kind()) && isNumber(dv.Kind()) {
		dv.Set(sv.Convert(dv.Type()))
		return nil
	}
	return fmt.Errorf("cache: cannot assign %T to %T", val, dest)
}

func isNumber(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}
