// Package breaker 提供按 key 隔离的熔断器，基于 gobreaker。
//
// 运行时用它保护集群消息的发送：某个通道持续发送失败时快速失败，
// 经过 Timeout 后进入半开状态放行少量请求探测恢复。
//
// 基本使用：
//
//	brk, _ := breaker.New(&breaker.Config{FailureRatio: 0.6, MinimumRequests: 10},
//	    breaker.WithLogger(logger))
//
//	err := brk.Execute(ctx, "FabricAddressChannel.acme", func() error {
//	    return client.Publish(ctx, subject, payload)
//	})
//	if errors.Is(err, breaker.ErrOpenState) {
//	    // 熔断中
//	}
package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/fabric/clog"
)

// Breaker 熔断器，方法并发安全
type Breaker interface {
	// Execute 在 key 对应的熔断器保护下执行 fn。
	// 熔断打开时不执行 fn，返回 ErrOpenState 或降级函数的结果。
	Execute(ctx context.Context, key string, fn func() error) error

	// State 返回 key 的当前状态，未使用过的 key 为 StateClosed
	State(key string) (State, error)
}

// State 熔断器状态
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config 熔断器配置
type Config struct {
	// MaxRequests 半开状态下允许通过的请求数，默认 1
	MaxRequests uint32 `json:"max_requests" yaml:"max_requests" mapstructure:"max_requests"`

	// Interval 闭合状态下清空计数的周期，0 表示不清空
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// Timeout 打开状态持续时间，默认 30s
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// FailureRatio 触发熔断的失败率，默认 0.6
	FailureRatio float64 `json:"failure_ratio" yaml:"failure_ratio" mapstructure:"failure_ratio"`

	// MinimumRequests 统计失败率所需的最少请求数，默认 10
	MinimumRequests uint32 `json:"minimum_requests" yaml:"minimum_requests" mapstructure:"minimum_requests"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	if c.MaxRequests == 0 {
		c.MaxRequests = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = 0.6
	}
	if c.MinimumRequests == 0 {
		c.MinimumRequests = 10
	}
}

func (c *Config) validate() error {
	if c.FailureRatio > 1 {
		return ErrInvalidRatio
	}
	return nil
}

// New 创建熔断器，cfg 为 nil 时使用默认配置
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	b := &circuitBreaker{cfg: &c, logger: o.logger, fallback: o.fallback}
	if err := b.initMetrics(o.meter); err != nil {
		return nil, err
	}

	o.logger.Debug("circuit breaker created",
		clog.Int("max_requests", int(c.MaxRequests)),
		clog.Duration("timeout", c.Timeout),
		clog.Float64("failure_ratio", c.FailureRatio),
		clog.Int("minimum_requests", int(c.MinimumRequests)))
	return b, nil
}
