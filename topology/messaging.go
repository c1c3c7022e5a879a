package topology

import (
	"context"
	"strings"
	"sync"

	"github.com/ceyewan/fabric/breaker"
	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/mq"
	"github.com/ceyewan/fabric/trace"
	"github.com/ceyewan/fabric/xerrors"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// DefaultPrefix 默认的主题前缀
const DefaultPrefix = "fabric.topology"

// Config 消息服务配置
type Config struct {
	// RuntimeName 本运行时名称，不能包含 '.'、'*'、'>' 与空白
	RuntimeName string `mapstructure:"runtime_name"`
	// Prefix 主题前缀，默认 DefaultPrefix
	Prefix string `mapstructure:"prefix"`
}

func (c *Config) setDefaults() {
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
}

func (c *Config) validate() error {
	if c.RuntimeName == "" || strings.ContainsAny(c.RuntimeName, ".*> \t\r\n") {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "topology: invalid runtime name %q", c.RuntimeName)
	}
	return nil
}

type openChannel struct {
	subs []mq.Subscription
}

// MessagingService 基于 mq 的 Service 实现
type MessagingService struct {
	cfg        Config
	client     mq.Client
	membership Membership
	codec      *Codec
	breaker    breaker.Breaker
	tracer     oteltrace.Tracer
	logger     clog.Logger

	mu       sync.Mutex
	channels map[string]*openChannel
}

var _ Service = (*MessagingService)(nil)

// NewMessagingService 创建消息服务，client 与 membership 由调用方管理生命周期
func NewMessagingService(cfg *Config, client mq.Client, membership Membership, codec *Codec, opts ...Option) (*MessagingService, error) {
	if cfg == nil || client == nil || membership == nil || codec == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "topology: config, client, membership and codec are required")
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	brk := o.breaker
	if brk == nil {
		var err error
		brk, err = breaker.New(breaker.DefaultConfig(), breaker.WithLogger(o.logger), breaker.WithMeter(o.meter))
		if err != nil {
			return nil, err
		}
	}

	return &MessagingService{
		cfg:        c,
		client:     client,
		membership: membership,
		codec:      codec,
		breaker:    brk,
		tracer:     trace.Tracer(o.tracer),
		logger:     o.logger.With(clog.String("runtime", c.RuntimeName)),
		channels:   make(map[string]*openChannel),
	}, nil
}

func (s *MessagingService) RuntimeName() string { return s.cfg.RuntimeName }

func (s *MessagingService) Runtimes() []string { return s.membership.Members() }

func (s *MessagingService) Register(l Listener) { s.membership.Register(l) }

func (s *MessagingService) Deregister(l Listener) { s.membership.Deregister(l) }

func (s *MessagingService) broadcastSubject(channel string) string {
	return s.cfg.Prefix + "." + channel
}

func (s *MessagingService) targetedSubject(channel, runtimeName string) string {
	return s.cfg.Prefix + "." + channel + ".to." + runtimeName
}

func (s *MessagingService) OpenChannel(ctx context.Context, name string, receiver MessageReceiver) error {
	if name == "" || receiver == nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "topology: channel name and receiver are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, open := s.channels[name]; open {
		return xerrors.Wrapf(ErrChannelAlreadyOpen, "%s", name)
	}

	handler := s.handler(name, receiver)
	ch := &openChannel{}
	for _, subject := range []string{s.broadcastSubject(name), s.targetedSubject(name, s.cfg.RuntimeName)} {
		sub, err := s.client.Subscribe(context.WithoutCancel(ctx), subject, handler)
		if err != nil {
			for _, opened := range ch.subs {
				_ = opened.Unsubscribe()
			}
			return xerrors.Wrapf(err, "topology: open channel %s", name)
		}
		ch.subs = append(ch.subs, sub)
	}
	s.channels[name] = ch
	s.logger.Info("channel opened", clog.String("channel", name))
	return nil
}

func (s *MessagingService) CloseChannel(_ context.Context, name string) error {
	s.mu.Lock()
	ch, open := s.channels[name]
	delete(s.channels, name)
	s.mu.Unlock()
	if !open {
		return xerrors.Wrapf(ErrChannelNotOpen, "%s", name)
	}

	var errs xerrors.Collector
	for _, sub := range ch.subs {
		errs.Collect(sub.Unsubscribe())
	}
	s.logger.Info("channel closed", clog.String("channel", name))
	return errs.Err()
}

func (s *MessagingService) handler(channel string, receiver MessageReceiver) mq.Handler {
	return func(msg mq.Message) error {
		env, payload, err := s.codec.Decode(msg.Data())
		if err != nil {
			s.logger.Warn("dropping undecodable message", clog.String("channel", channel), clog.Error(err))
			return err
		}
		if env.Sender == s.cfg.RuntimeName && env.Target == "" {
			return nil
		}

		ctx, span := trace.StartConsumerSpanFromHeaders(msg.Context(), s.tracer, trace.SpanNameProcess(channel), msg.Headers(),
			trace.MessagingMeta{System: trace.MessagingSystemFabric, Destination: msg.Topic(), Operation: trace.MessagingOperationProcess},
			attribute.String("fabric.sender", env.Sender))
		defer span.End()
		receiver.OnMessage(ctx, payload)
		return nil
	}
}

func (s *MessagingService) SendAsynchronous(ctx context.Context, channel string, payload any) error {
	return s.send(ctx, channel, "", s.broadcastSubject(channel), payload)
}

func (s *MessagingService) SendAsynchronousTo(ctx context.Context, runtimeName, channel string, payload any) error {
	if runtimeName == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "topology: target runtime is required")
	}
	return s.send(ctx, channel, runtimeName, s.targetedSubject(channel, runtimeName), payload)
}

func (s *MessagingService) send(ctx context.Context, channel, target, subject string, payload any) error {
	data, err := s.codec.Encode(s.cfg.RuntimeName, target, payload)
	if err != nil {
		return err
	}

	ctx, span, headers := trace.StartProducerSpan(ctx, s.tracer, trace.SpanNamePublish(channel),
		trace.MessagingMeta{System: trace.MessagingSystemFabric, Destination: subject, Operation: trace.MessagingOperationPublish},
		attribute.String("fabric.target", target))
	defer span.End()

	err = s.breaker.Execute(ctx, channel, func() error {
		return s.client.Publish(ctx, subject, data, mq.WithHeaders(headers))
	})
	if err != nil {
		trace.MarkSpanError(span, err)
		return xerrors.WithCode(xerrors.Wrapf(err, "topology: send on %s", channel), xerrors.CodeTransport)
	}
	return nil
}
