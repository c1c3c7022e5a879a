// Package metrics 为 fabric 提供统一的指标收集能力。
//
// 基于 OpenTelemetry 构建，通过 Prometheus 格式暴露。未启用时返回 noop 实现，
// 业务代码无需判断开关。
//
// 基本使用：
//
//	meter, _ := metrics.New(&metrics.Config{Enabled: true, ServiceName: "fabricd"})
//	defer meter.Shutdown(ctx)
//
//	counter, _ := meter.Counter("fabric_wire_generated_total", "生成的物理连线数")
//	counter.Inc(ctx, metrics.L("path", "local"))
package metrics

import "context"

// Counter 只增不减的累计值
type Counter interface {
	Inc(ctx context.Context, labels ...Label)
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 可任意增减的瞬时值
type Gauge interface {
	Set(ctx context.Context, val float64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 值的分布
type Histogram interface {
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标创建入口，创建出的指标可并发使用
type Meter interface {
	Counter(name string, desc string, opts ...MetricOption) (Counter, error)
	Gauge(name string, desc string, opts ...MetricOption) (Gauge, error)
	Histogram(name string, desc string, opts ...MetricOption) (Histogram, error)

	// Shutdown 刷新并关闭，之后的记录会被丢弃
	Shutdown(ctx context.Context) error
}

// Label 指标标签
type Label struct {
	Key   string
	Value string
}

// L 创建 Label
//
//	counter.Inc(ctx, metrics.L("type", "activated"))
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

// MetricOption 指标选项
type MetricOption func(*MetricOptions)

// MetricOptions 指标选项
type MetricOptions struct {
	Unit string
}

// WithUnit 设置指标单位，例如 "s"、"By"
func WithUnit(unit string) MetricOption {
	return func(o *MetricOptions) {
		o.Unit = unit
	}
}
