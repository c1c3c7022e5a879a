// Package testkit 汇集测试用的公共依赖：日志、指标、唯一 ID，
// 以及基于 testcontainers 的 NATS / Etcd / Redis 容器。
//
// 容器类辅助函数在 -short 模式下会跳过测试。
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/metrics"
)

// Kit 通用测试依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

// NewKit 返回默认依赖，Ctx 在测试结束时取消
func NewKit(t *testing.T) *Kit {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &Kit{
		Ctx:    ctx,
		Logger: NewLogger(),
		Meter:  NewMeter(),
	}
}

// NewLogger 开发格式的 logger，便于本地调试
func NewLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig("fabric"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewMeter 不监听端口的 meter
func NewMeter() metrics.Meter {
	meter, err := metrics.New(metrics.NewDevDefaultConfig("test"))
	if err != nil {
		return metrics.Discard()
	}
	return meter
}

// NewContext 带超时的上下文，测试结束时自动取消
func NewContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// NewID 唯一测试 ID（UUID 前 8 位），用于 subject、key 等避免冲突
func NewID() string {
	return uuid.New().String()[0:8]
}

// NewTestSubject 生成唯一的测试主题名称
func NewTestSubject(prefix string) string {
	return "test." + NewID() + "." + prefix
}

// SkipIfShort 集成测试在 -short 模式下跳过
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}
