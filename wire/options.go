package wire

import (
	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/metrics"
)

// Option 生成器选项
type Option func(*options)

type options struct {
	logger     clog.Logger
	meter      metrics.Meter
	operations *OperationGenerator
}

// WithLogger 设置日志记录器，自动追加 "wire" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("wire")
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

// WithOperationGenerator 替换默认的操作生成器（默认从注册表读取拦截器）
func WithOperationGenerator(g *OperationGenerator) Option {
	return func(o *options) {
		o.operations = g
	}
}
