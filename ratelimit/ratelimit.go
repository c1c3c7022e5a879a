// Package ratelimit 提供按 key 隔离的令牌桶限流，基于 golang.org/x/time/rate。
//
// 每个 key 与规则组合对应一个令牌桶，空闲超过 IdleTimeout 的桶会被后台清理。
// 运行时用它限制对同一请求方的地址应答频率。
//
// 基本使用：
//
//	limiter, _ := ratelimit.New(nil, ratelimit.WithLogger(logger))
//	defer limiter.Close()
//
//	allowed, _ := limiter.Allow(ctx, "runtime-2", ratelimit.Limit{Rate: 5, Burst: 10})
//	if !allowed {
//	    // 丢弃本次应答
//	}
package ratelimit

import (
	"context"
	"time"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/xerrors"
)

// Limit 令牌桶规则
type Limit struct {
	Rate  float64 `json:"rate" yaml:"rate" mapstructure:"rate"`    // 每秒生成的令牌数
	Burst int     `json:"burst" yaml:"burst" mapstructure:"burst"` // 桶容量
}

// Valid 规则是否有效
func (l Limit) Valid() bool {
	return l.Rate > 0 && l.Burst > 0
}

// Limiter 限流器，方法并发安全
type Limiter interface {
	// Allow 尝试获取 1 个令牌，不阻塞
	Allow(ctx context.Context, key string, limit Limit) (bool, error)

	// AllowN 尝试获取 n 个令牌，不阻塞
	AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error)

	// Wait 阻塞直到获取 1 个令牌或 ctx 结束
	Wait(ctx context.Context, key string, limit Limit) error

	// Close 停止后台清理
	Close() error
}

// Config 限流器配置
type Config struct {
	// CleanupInterval 清理空闲令牌桶的间隔，默认 1m
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" mapstructure:"cleanup_interval"`

	// IdleTimeout 令牌桶空闲超时，默认 5m
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

func (c *Config) setDefaults() {
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
}

// New 创建限流器，cfg 为 nil 时使用默认配置
func New(cfg *Config, opts ...Option) (Limiter, error) {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()

	o := applyOptions(opts)
	l, err := newStandalone(&c, o)
	if err != nil {
		return nil, xerrors.Wrap(err, "ratelimit: init")
	}
	o.logger.Debug("rate limiter created",
		clog.Duration("cleanup_interval", c.CleanupInterval),
		clog.Duration("idle_timeout", c.IdleTimeout))
	return l, nil
}
