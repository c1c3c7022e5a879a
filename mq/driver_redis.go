package mq

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/connector"
	"github.com/ceyewan/fabric/xerrors"
)

// redisTransport Redis Pub/Sub 驱动。负载用 msgpack 打包消息头与数据
type redisTransport struct {
	conn   connector.RedisConnector
	logger clog.Logger
}

func newRedisTransport(conn connector.RedisConnector, logger clog.Logger) *redisTransport {
	return &redisTransport{conn: conn, logger: logger}
}

func (t *redisTransport) client() (*redis.Client, error) {
	rc := t.conn.GetClient()
	if rc == nil {
		return nil, connector.ErrNotConnected
	}
	return rc, nil
}

func (t *redisTransport) publish(ctx context.Context, topic string, data []byte, headers Headers) error {
	rc, err := t.client()
	if err != nil {
		return err
	}
	payload, err := msgpack.Marshal(&wireMessage{Headers: headers, Data: data})
	if err != nil {
		return xerrors.Wrap(err, "encode redis message")
	}
	return rc.Publish(ctx, topic, payload).Err()
}

func (t *redisTransport) subscribe(ctx context.Context, topic string, handler Handler, o subscribeOptions) (Subscription, error) {
	if o.queueGroup != "" {
		return nil, xerrors.Wrap(xerrors.ErrUnsupported, "redis pub/sub has no queue groups")
	}
	rc, err := t.client()
	if err != nil {
		return nil, err
	}

	ps := rc.Subscribe(ctx, topic)
	// 等待订阅确认，保证返回后发布的消息不会丢失
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, xerrors.Wrap(err, "redis subscribe")
	}

	s := newSubscription(ctx)
	s.stop = ps.Close
	ch := ps.Channel(redis.WithChannelSize(o.bufferSize))

	go func() {
		for rm := range ch {
			var wm wireMessage
			if err := msgpack.Unmarshal([]byte(rm.Payload), &wm); err != nil {
				t.logger.Warn("dropping undecodable redis message", clog.String("topic", rm.Channel), clog.Error(err))
				continue
			}
			_ = handler(&message{
				ctx:     s.ctx,
				topic:   rm.Channel,
				data:    wm.Data,
				headers: Headers(wm.Headers),
			})
		}
	}()
	return s, nil
}

func (t *redisTransport) close() error {
	return nil
}
