package mq

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/connector"
	"github.com/ceyewan/fabric/xerrors"
)

// natsTransport NATS Core 驱动，依赖连接器已 Connect
type natsTransport struct {
	conn   connector.NATSConnector
	logger clog.Logger
}

func newNATSTransport(conn connector.NATSConnector, logger clog.Logger) *natsTransport {
	return &natsTransport{conn: conn, logger: logger}
}

func (t *natsTransport) client() (*nats.Conn, error) {
	nc := t.conn.GetClient()
	if nc == nil {
		return nil, connector.ErrNotConnected
	}
	return nc, nil
}

func (t *natsTransport) publish(ctx context.Context, topic string, data []byte, headers Headers) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	nc, err := t.client()
	if err != nil {
		return err
	}
	msg := &nats.Msg{Subject: topic, Data: data}
	if len(headers) > 0 {
		msg.Header = toNATSHeader(headers)
	}
	return nc.PublishMsg(msg)
}

func (t *natsTransport) subscribe(ctx context.Context, topic string, handler Handler, o subscribeOptions) (Subscription, error) {
	nc, err := t.client()
	if err != nil {
		return nil, err
	}

	s := newSubscription(ctx)
	cb := func(m *nats.Msg) {
		// 回调在每个订阅独立的 goroutine 中串行执行
		_ = handler(&message{
			ctx:     s.ctx,
			topic:   m.Subject,
			data:    m.Data,
			headers: headersFromNATS(m.Header),
		})
	}

	var ns *nats.Subscription
	if o.queueGroup != "" {
		ns, err = nc.QueueSubscribe(topic, o.queueGroup, cb)
	} else {
		ns, err = nc.Subscribe(topic, cb)
	}
	if err != nil {
		s.cancel()
		return nil, xerrors.Wrap(err, "nats subscribe")
	}
	if o.bufferSize > 0 {
		if err := ns.SetPendingLimits(o.bufferSize, -1); err != nil {
			t.logger.Warn("failed to set pending limits", clog.String("topic", topic), clog.Error(err))
		}
	}
	s.stop = ns.Unsubscribe
	return s, nil
}

// close 连接归连接器所有，这里不做处理
func (t *natsTransport) close() error {
	return nil
}

func toNATSHeader(h Headers) nats.Header {
	out := nats.Header{}
	for k, v := range h {
		out.Set(k, v)
	}
	return out
}

func headersFromNATS(h nats.Header) Headers {
	if len(h) == 0 {
		return nil
	}
	out := make(Headers, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
