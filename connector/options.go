package connector

import (
	"context"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/metrics"
)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// Option 连接器选项
type Option func(*options)

// WithLogger 设置日志记录器，自动追加 "connector" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("connector")
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

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// connMetrics 每类连接器共用的连接指标，以 connector 标签区分实例
type connMetrics struct {
	name      string
	attempts  metrics.Counter
	failures  metrics.Counter
	connected metrics.Gauge
}

func newConnMetrics(meter metrics.Meter, kind, name string) (*connMetrics, error) {
	m := &connMetrics{name: name}
	var err error
	if m.attempts, err = meter.Counter("connector_"+kind+"_connect_attempts_total", "Total number of "+kind+" connection attempts"); err != nil {
		return nil, err
	}
	if m.failures, err = meter.Counter("connector_"+kind+"_connect_failures_total", "Number of failed "+kind+" connections"); err != nil {
		return nil, err
	}
	if m.connected, err = meter.Gauge("connector_"+kind+"_connected", "Whether the "+kind+" connector is connected"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *connMetrics) attempt(ctx context.Context) {
	m.attempts.Inc(ctx, metrics.L("connector", m.name))
}

func (m *connMetrics) failed(ctx context.Context) {
	m.failures.Inc(ctx, metrics.L("connector", m.name))
}

func (m *connMetrics) setConnected(ctx context.Context, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.connected.Set(ctx, v, metrics.L("connector", m.name))
}
