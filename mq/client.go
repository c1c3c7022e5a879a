package mq

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/metrics"
	"github.com/ceyewan/fabric/xerrors"
)

const (
	// MetricPublishedTotal 发布消息数，status 为 success / error
	MetricPublishedTotal = "fabric_mq_published_total"
	// MetricConsumedTotal 交给 handler 的消息数
	MetricConsumedTotal = "fabric_mq_consumed_total"
	// MetricHandlerErrorsTotal handler 返回错误或 panic 的次数
	MetricHandlerErrorsTotal = "fabric_mq_handler_errors_total"
	// MetricHandleDuration handler 耗时（秒）
	MetricHandleDuration = "fabric_mq_handle_duration_seconds"
)

type client struct {
	driver    DriverType
	transport transport
	logger    clog.Logger
	bufSize   int

	published     metrics.Counter
	consumed      metrics.Counter
	handlerErrors metrics.Counter
	duration      metrics.Histogram

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

// New 根据配置创建客户端。nats 与 redis 驱动需要分别通过
// WithNATSConnector / WithRedisConnector 传入已连接的连接器。
func New(cfg *Config, opts ...Option) (Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger.With(clog.String("driver", string(cfg.Driver)))

	var t transport
	switch cfg.Driver {
	case DriverNATS:
		if o.natsConn == nil {
			return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "mq: nats driver requires a NATS connector")
		}
		t = newNATSTransport(o.natsConn, logger)
	case DriverRedis:
		if o.redisConn == nil {
			return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "mq: redis driver requires a Redis connector")
		}
		t = newRedisTransport(o.redisConn, logger)
	case DriverMemory:
		hub := o.hub
		if hub == nil {
			hub = NewHub()
		}
		t = hub
	}

	c := &client{
		driver:    cfg.Driver,
		transport: t,
		logger:    logger,
		bufSize:   cfg.BufferSize,
		subs:      make(map[*subscription]struct{}),
	}
	if err := c.initMetrics(o.meter); err != nil {
		return nil, xerrors.Wrap(err, "mq: init metrics")
	}
	return c, nil
}

func (c *client) initMetrics(meter metrics.Meter) error {
	var err error
	if c.published, err = meter.Counter(MetricPublishedTotal, "Total number of published messages"); err != nil {
		return err
	}
	if c.consumed, err = meter.Counter(MetricConsumedTotal, "Total number of consumed messages"); err != nil {
		return err
	}
	if c.handlerErrors, err = meter.Counter(MetricHandlerErrorsTotal, "Total number of failed message handlers"); err != nil {
		return err
	}
	c.duration, err = meter.Histogram(MetricHandleDuration, "Message handler duration", metrics.WithUnit("s"))
	return err
}

func (c *client) Publish(ctx context.Context, topic string, data []byte, opts ...PublishOption) error {
	if topic == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "mq: empty topic")
	}
	if c.isClosed() {
		return xerrors.ErrClosed
	}
	var po publishOptions
	for _, opt := range opts {
		opt(&po)
	}

	err := c.transport.publish(ctx, topic, data, po.headers)
	status := "success"
	if err != nil {
		status = "error"
	}
	c.published.Inc(ctx, metrics.L("driver", string(c.driver)), metrics.L("status", status))
	if err != nil {
		return xerrors.WithCode(xerrors.Wrapf(err, "mq: publish %s", topic), xerrors.CodeTransport)
	}
	return nil
}

func (c *client) Subscribe(ctx context.Context, topic string, handler Handler, opts ...SubscribeOption) (Subscription, error) {
	if topic == "" || handler == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "mq: subscribe requires topic and handler")
	}
	so := subscribeOptions{bufferSize: c.bufSize}
	for _, opt := range opts {
		opt(&so)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, xerrors.ErrClosed
	}
	c.mu.Unlock()

	sub, err := c.transport.subscribe(ctx, topic, c.wrapHandler(topic, handler), so)
	if err != nil {
		return nil, xerrors.WithCode(xerrors.Wrapf(err, "mq: subscribe %s", topic), xerrors.CodeTransport)
	}
	s := sub.(*subscription)

	c.mu.Lock()
	c.subs[s] = struct{}{}
	c.mu.Unlock()
	go func() {
		<-s.Done()
		c.mu.Lock()
		delete(c.subs, s)
		c.mu.Unlock()
	}()

	c.logger.Debug("subscribed", clog.String("topic", topic), clog.String("queue_group", so.queueGroup))
	return s, nil
}

// wrapHandler 统一记录指标并隔离 handler 的 panic
func (c *client) wrapHandler(topic string, h Handler) Handler {
	driver := metrics.L("driver", string(c.driver))
	return func(msg Message) (err error) {
		ctx := msg.Context()
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				err = xerrors.New("mq: handler panic")
				c.logger.Error("message handler panicked", clog.String("topic", topic), clog.Any("panic", r))
			}
			c.consumed.Inc(ctx, driver)
			c.duration.Record(ctx, time.Since(start).Seconds(), driver)
			if err != nil {
				c.handlerErrors.Inc(ctx, driver)
				c.logger.Warn("message handler failed", clog.String("topic", topic), clog.Error(err))
			}
		}()
		return h(msg)
	}
}

func (c *client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := make([]*subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	var errs xerrors.Collector
	for _, s := range subs {
		errs.Collect(s.Unsubscribe())
	}
	errs.Collect(c.transport.close())
	return errs.Err()
}
