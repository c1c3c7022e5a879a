// Package channel 为生产者、消费者与通道之间生成物理连接。
//
// 每个生产者对它声明的每个目标通道生成一条连接，消费者同理。通道没有绑定且与组件处于同一 zone 时
// 事件在进程内投递（DeliveryLocal），否则经通道绑定的传输广播（DeliveryBroadcast）。
//
// 基本使用：
//
//	gen := channel.NewConnectionGenerator(registry, channel.WithLogger(logger))
//	conns, err := gen.Generate(composite)
package channel

import (
	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/generator"
	"github.com/ceyewan/fabric/model"
	"github.com/ceyewan/fabric/xerrors"
)

// KindChannel 通道一侧描述的类型
const KindChannel = "channel"

// ErrChannelNotFound 生产者或消费者引用了不存在的通道
var ErrChannelNotFound = xerrors.New("channel not found")

// Option 生成器选项
type Option func(*ConnectionGenerator)

// WithLogger 设置日志记录器，自动追加 "channel" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(g *ConnectionGenerator) {
		if l != nil {
			g.logger = l.WithNamespace("channel")
		}
	}
}

// ConnectionGenerator 通道连接生成器
type ConnectionGenerator struct {
	registry *generator.Registry
	logger   clog.Logger
}

func NewConnectionGenerator(registry *generator.Registry, opts ...Option) *ConnectionGenerator {
	g := &ConnectionGenerator{registry: registry, logger: clog.Discard()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ResolveChannels 按 URI 顺序查找通道
func ResolveChannels(composite *model.Composite, uris []string) ([]*model.Channel, error) {
	channels := make([]*model.Channel, 0, len(uris))
	for _, uri := range uris {
		ch := composite.Channel(uri)
		if ch == nil {
			return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrChannelNotFound, "%s", uri)
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// GenerateProducer 源端为组件生成器产生的生产者描述，目标端为通道
func (g *ConnectionGenerator) GenerateProducer(p *model.Producer, channels []*model.Channel) ([]*model.ChannelConnection, error) {
	gen, err := g.registry.ForComponent(p.Component)
	if err != nil {
		return nil, err
	}
	classLoader := p.Component.ContributionURI()

	conns := make([]*model.ChannelConnection, 0, len(channels))
	for _, ch := range channels {
		src, err := gen.GenerateConnectionSource(p)
		if err != nil {
			return nil, err
		}
		src.ClassLoaderID = classLoader
		conns = append(conns, &model.ChannelConnection{
			Source: src,
			Target: &model.ConnectionTarget{
				URI:           ch.URI,
				Kind:          KindChannel,
				Properties:    channelProperties(ch),
				ClassLoaderID: classLoader,
			},
			Topic:        topic(ch),
			DeliveryType: deliveryType(p.Component, ch),
		})
	}
	return conns, nil
}

// GenerateConsumer 源端为通道，目标端为组件生成器产生的消费者描述
func (g *ConnectionGenerator) GenerateConsumer(c *model.Consumer, channels []*model.Channel) ([]*model.ChannelConnection, error) {
	gen, err := g.registry.ForComponent(c.Component)
	if err != nil {
		return nil, err
	}
	classLoader := c.Component.ContributionURI()

	conns := make([]*model.ChannelConnection, 0, len(channels))
	for _, ch := range channels {
		tgt, err := gen.GenerateConnectionTarget(c)
		if err != nil {
			return nil, err
		}
		tgt.ClassLoaderID = classLoader
		conns = append(conns, &model.ChannelConnection{
			Source: &model.ConnectionSource{
				URI:           ch.URI,
				Kind:          KindChannel,
				Properties:    channelProperties(ch),
				ClassLoaderID: classLoader,
			},
			Target:       tgt,
			Topic:        topic(ch),
			DeliveryType: deliveryType(c.Component, ch),
		})
	}
	return conns, nil
}

// Generate 遍历组合体中全部生产者与消费者
func (g *ConnectionGenerator) Generate(composite *model.Composite) ([]*model.ChannelConnection, error) {
	var out []*model.ChannelConnection
	var walkErr error
	composite.Walk(func(comp *model.Component) {
		if walkErr != nil {
			return
		}
		for _, p := range comp.Producers {
			channels, err := ResolveChannels(composite, p.Targets)
			if err != nil {
				walkErr = xerrors.Wrapf(err, "producer %s", p.URI)
				return
			}
			conns, err := g.GenerateProducer(p, channels)
			if err != nil {
				walkErr = err
				return
			}
			out = append(out, conns...)
		}
		for _, c := range comp.Consumers {
			channels, err := ResolveChannels(composite, c.Sources)
			if err != nil {
				walkErr = xerrors.Wrapf(err, "consumer %s", c.URI)
				return
			}
			conns, err := g.GenerateConsumer(c, channels)
			if err != nil {
				walkErr = err
				return
			}
			out = append(out, conns...)
		}
	})
	if walkErr != nil {
		return nil, walkErr
	}
	g.logger.Debug("channel connections generated", clog.String("composite", composite.URI), clog.Int("count", len(out)))
	return out, nil
}

func topic(ch *model.Channel) string {
	if ch.Name != "" {
		return ch.Name
	}
	return ch.URI
}

func deliveryType(c *model.Component, ch *model.Channel) model.DeliveryType {
	if len(ch.Bindings) == 0 && (ch.Zone == "" || ch.Zone == c.Zone) {
		return model.DeliveryLocal
	}
	return model.DeliveryBroadcast
}

func channelProperties(ch *model.Channel) map[string]any {
	if len(ch.Bindings) == 0 {
		return nil
	}
	names := make([]string, 0, len(ch.Bindings))
	for _, b := range ch.Bindings {
		names = append(names, b.URI)
	}
	return map[string]any{"bindings": names}
}
