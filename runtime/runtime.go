// Package runtime 组装一个 fabric 运行时：连接器、消息客户端、成员关系、拓扑、
// 事件总线、地址缓存，以及生成器注册表与连线生成器。
//
// 节点模式下 Start 依次启动各组件，最后加入域并发布 JoinDomainCompleted，
// 地址缓存据此打开地址通道并请求其他成员的地址。控制器模式不建立拓扑。
//
// 基本使用：
//
//	rt, err := runtime.New(&cfg, runtime.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := rt.Start(ctx); err != nil {
//	    return err
//	}
//	defer rt.Stop(context.Background())
//
//	asm, _ := assembly.LoadFile("app.yaml")
//	plan, err := rt.Deploy(ctx, asm)
package runtime

import (
	"context"
	"sync"

	"github.com/ceyewan/fabric/addressing"
	"github.com/ceyewan/fabric/binding"
	"github.com/ceyewan/fabric/breaker"
	"github.com/ceyewan/fabric/cache"
	"github.com/ceyewan/fabric/channel"
	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/component"
	"github.com/ceyewan/fabric/connector"
	"github.com/ceyewan/fabric/contract"
	"github.com/ceyewan/fabric/eventbus"
	"github.com/ceyewan/fabric/generator"
	"github.com/ceyewan/fabric/metrics"
	"github.com/ceyewan/fabric/mq"
	"github.com/ceyewan/fabric/resource"
	"github.com/ceyewan/fabric/topology"
	"github.com/ceyewan/fabric/trace"
	"github.com/ceyewan/fabric/wire"
	"github.com/ceyewan/fabric/xerrors"
)

// Option 运行时选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
	group  *topology.StaticGroup
	hub    *mq.Hub
}

// WithLogger 使用外部日志记录器，未设置时按 Config.Log 创建
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMeter 使用外部指标收集器，未设置时按 Config.Metrics 创建
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

// WithStaticGroup static 成员关系使用的共享组，同一进程内传入同一个组的运行时组成一个域
func WithStaticGroup(g *topology.StaticGroup) Option {
	return func(o *options) {
		o.group = g
	}
}

// WithHub memory 驱动使用的共享 Hub
func WithHub(h *mq.Hub) Option {
	return func(o *options) {
		o.hub = h
	}
}

// Runtime 一个运行时实例
type Runtime struct {
	cfg    Config
	host   HostInfo
	logger clog.Logger
	meter  metrics.Meter

	nats  connector.NATSConnector
	redis connector.RedisConnector
	etcd  connector.EtcdConnector

	bus        eventbus.Bus
	registry   *generator.Registry
	wires      *wire.Generator
	channels   *channel.ConnectionGenerator
	resources  *resource.Builder
	client     mq.Client
	membership topology.Membership
	topology   topology.Service
	addresses  *addressing.AddressCache

	lifecycle *LifecycleManager

	mu       sync.Mutex
	deployed map[string]map[string]cache.Cache
}

// NewRegistry 注册内置生成器：go 组件、nats 与 redis 绑定、cache-set 资源
func NewRegistry() (*generator.Registry, error) {
	r := generator.NewRegistry()
	err := xerrors.Combine(
		r.RegisterComponentGenerator(component.KindGo, component.NewGoGenerator()),
		r.RegisterBindingGenerator(binding.KindNATS, binding.NewNATSGenerator()),
		r.RegisterBindingGenerator(binding.KindRedis, binding.NewRedisGenerator()),
		r.RegisterResourceGenerator(resource.KindCacheSet, resource.NewCacheSetGenerator()),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// New 校验配置并组装运行时，不建立任何连接
func New(cfg *Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "runtime: config is required")
	}
	c := *cfg
	if err := c.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	rt := &Runtime{cfg: c, host: c.Host, deployed: make(map[string]map[string]cache.Cache)}
	if rt.logger = o.logger; rt.logger == nil {
		logger, err := clog.New(c.Log, clog.WithTraceContext())
		if err != nil {
			return nil, xerrors.Wrap(err, "runtime: create logger")
		}
		rt.logger = logger
	}
	rt.logger = rt.logger.With(clog.String("runtime", c.Host.RuntimeName))
	rt.lifecycle = NewLifecycleManager(rt.logger.WithNamespace("lifecycle"))

	if err := rt.initMeter(o.meter); err != nil {
		return nil, err
	}
	if err := rt.initTracing(); err != nil {
		return nil, err
	}
	if err := rt.initConnectors(); err != nil {
		return nil, err
	}
	if err := rt.initGenerators(); err != nil {
		return nil, err
	}
	rt.bus = eventbus.New(eventbus.WithLogger(rt.logger))
	if rt.host.Mode == ModeNode {
		if err := rt.initTopology(o); err != nil {
			return nil, err
		}
	}
	if err := rt.initAddressCache(); err != nil {
		return nil, err
	}

	rt.logger.Info("runtime assembled",
		clog.String("domain", rt.host.Domain),
		clog.String("zone", rt.host.Zone),
		clog.String("mode", string(rt.host.Mode)))
	return rt, nil
}

func (rt *Runtime) initMeter(meter metrics.Meter) error {
	if meter != nil {
		rt.meter = meter
		return nil
	}
	rt.meter = metrics.Discard()
	if rt.cfg.Metrics == nil || !rt.cfg.Metrics.Enabled {
		return nil
	}

	m, err := metrics.New(rt.cfg.Metrics, metrics.WithLogger(rt.logger))
	if err != nil {
		return xerrors.Wrap(err, "runtime: create meter")
	}
	rt.meter = m
	// 自己创建的 meter 由指标服务在停止时关闭
	srv := metrics.NewServer(rt.cfg.Metrics, m, rt.logger)
	rt.lifecycle.Register("metrics", &hook{phase: PhaseService, start: srv.Start, stop: srv.Stop})
	return nil
}

// initTracing 设置全局 TracerProvider，在所有组件之后关闭以刷新剩余 Span
func (rt *Runtime) initTracing() error {
	if rt.cfg.Trace == nil {
		return nil
	}
	shutdown, err := trace.Init(rt.cfg.Trace)
	if err != nil {
		return err
	}
	rt.lifecycle.Register("trace", &hook{phase: PhaseConnector, stop: shutdown})
	rt.logger.Info("tracing enabled", clog.String("endpoint", rt.cfg.Trace.Endpoint), clog.Float64("sampler", rt.cfg.Trace.Sampler))
	return nil
}

func (rt *Runtime) initConnectors() error {
	opts := []connector.Option{connector.WithLogger(rt.logger), connector.WithMeter(rt.meter)}
	var err error
	if rt.cfg.NATS != nil {
		if rt.nats, err = connector.NewNATS(rt.cfg.NATS, opts...); err != nil {
			return xerrors.Wrap(err, "runtime: nats connector")
		}
		rt.registerConnector("nats", rt.nats)
	}
	if rt.cfg.Redis != nil {
		if rt.redis, err = connector.NewRedis(rt.cfg.Redis, opts...); err != nil {
			return xerrors.Wrap(err, "runtime: redis connector")
		}
		rt.registerConnector("redis", rt.redis)
	}
	if rt.cfg.Etcd != nil {
		if rt.etcd, err = connector.NewEtcd(rt.cfg.Etcd, opts...); err != nil {
			return xerrors.Wrap(err, "runtime: etcd connector")
		}
		rt.registerConnector("etcd", rt.etcd)
	}
	return nil
}

func (rt *Runtime) registerConnector(name string, c connector.Connector) {
	rt.lifecycle.Register(name, &hook{
		phase: PhaseConnector,
		start: c.Connect,
		stop:  func(context.Context) error { return c.Close() },
	})
}

func (rt *Runtime) initGenerators() error {
	registry, err := NewRegistry()
	if err != nil {
		return err
	}
	rt.registry = registry
	rt.wires, err = wire.New(registry, contract.NewMatcher(), wire.WithLogger(rt.logger), wire.WithMeter(rt.meter))
	if err != nil {
		return err
	}
	rt.channels = channel.NewConnectionGenerator(registry, channel.WithLogger(rt.logger))

	resourceOpts := []resource.Option{resource.WithLogger(rt.logger)}
	if rt.redis != nil {
		resourceOpts = append(resourceOpts, resource.WithRedisConnector(rt.redis))
	}
	rt.resources = resource.NewBuilder(resourceOpts...)
	return nil
}

func (rt *Runtime) initTopology(o *options) error {
	mqOpts := []mq.Option{mq.WithLogger(rt.logger), mq.WithMeter(rt.meter)}
	switch rt.cfg.MQ.Driver {
	case mq.DriverNATS:
		mqOpts = append(mqOpts, mq.WithNATSConnector(rt.nats))
	case mq.DriverRedis:
		mqOpts = append(mqOpts, mq.WithRedisConnector(rt.redis))
	default:
		if o.hub != nil {
			mqOpts = append(mqOpts, mq.WithHub(o.hub))
		}
	}
	client, err := mq.New(rt.cfg.MQ, mqOpts...)
	if err != nil {
		return xerrors.Wrap(err, "runtime: mq client")
	}
	rt.client = client
	rt.lifecycle.Register("mq", &hook{
		phase: PhaseTransport,
		stop:  func(context.Context) error { return client.Close() },
	})

	topoOpts := []topology.Option{topology.WithLogger(rt.logger), topology.WithMeter(rt.meter)}
	switch rt.cfg.Membership.Kind {
	case MembershipEtcd:
		rt.membership, err = topology.NewEtcdMembership(rt.etcd, rt.host.RuntimeName, &rt.cfg.Membership.Etcd, topoOpts...)
		if err != nil {
			return err
		}
	default:
		group := o.group
		if group == nil {
			group = topology.NewStaticGroup()
		}
		rt.membership = group.Member(rt.host.RuntimeName)
	}

	codec := topology.NewCodec()
	if err := addressing.RegisterMessages(codec); err != nil {
		return err
	}
	brk, err := breaker.New(rt.cfg.Breaker, breaker.WithLogger(rt.logger), breaker.WithMeter(rt.meter))
	if err != nil {
		return xerrors.Wrap(err, "runtime: breaker")
	}
	rt.topology, err = topology.NewMessagingService(&rt.cfg.Topology, client, rt.membership, codec,
		append(topoOpts, topology.WithBreaker(brk))...)
	if err != nil {
		return err
	}

	// 地址缓存在 PhaseComponent 注册为成员监听器之后才加入域
	rt.lifecycle.Register("membership", &hook{
		phase: PhaseService,
		start: rt.joinDomain,
		stop:  rt.membership.Leave,
	})
	return nil
}

func (rt *Runtime) joinDomain(ctx context.Context) error {
	if err := rt.membership.Join(ctx); err != nil {
		return xerrors.Wrap(err, "runtime: join domain")
	}
	rt.bus.Publish(ctx, eventbus.JoinDomainCompleted{RuntimeName: rt.host.RuntimeName, Domain: rt.host.Domain})
	rt.logger.Info("joined domain", clog.Strings("members", rt.membership.Members()))
	return nil
}

func (rt *Runtime) initAddressCache() error {
	opts := []addressing.Option{
		addressing.WithLogger(rt.logger),
		addressing.WithMeter(rt.meter),
		addressing.WithEventBus(rt.bus),
	}
	if rt.topology != nil {
		opts = append(opts, addressing.WithTopology(rt.topology))
	}
	var err error
	if rt.addresses, err = addressing.New(&rt.cfg.Addressing, opts...); err != nil {
		return err
	}
	rt.lifecycle.Register("address-cache", &hook{
		phase: PhaseComponent,
		start: rt.addresses.Start,
		stop:  rt.addresses.Stop,
	})
	return nil
}

// Start 按阶段启动全部组件，完成后发布 RuntimeStarted
func (rt *Runtime) Start(ctx context.Context) error {
	if err := rt.lifecycle.StartAll(ctx); err != nil {
		return err
	}
	rt.bus.Publish(ctx, eventbus.RuntimeStarted{RuntimeName: rt.host.RuntimeName})
	rt.logger.Info("runtime started")
	return nil
}

// Stop 发布 RuntimeStopping 后逆序停止组件，并关闭部署时创建的缓存
func (rt *Runtime) Stop(ctx context.Context) error {
	rt.bus.Publish(ctx, eventbus.RuntimeStopping{RuntimeName: rt.host.RuntimeName})
	err := rt.lifecycle.StopAll(ctx)

	rt.mu.Lock()
	deployed := rt.deployed
	rt.deployed = make(map[string]map[string]cache.Cache)
	rt.mu.Unlock()
	errs := []error{err}
	for _, caches := range deployed {
		errs = append(errs, closeAll(caches))
	}

	rt.logger.Info("runtime stopped")
	rt.logger.Flush()
	return xerrors.Combine(errs...)
}

func (rt *Runtime) Host() HostInfo { return rt.host }

func (rt *Runtime) AddressCache() addressing.Cache { return rt.addresses }

func (rt *Runtime) WireGenerator() *wire.Generator { return rt.wires }

func (rt *Runtime) ChannelGenerator() *channel.ConnectionGenerator { return rt.channels }

func (rt *Runtime) Registry() *generator.Registry { return rt.registry }

func (rt *Runtime) EventBus() eventbus.Bus { return rt.bus }

// Topology 控制器模式下为 nil
func (rt *Runtime) Topology() topology.Service { return rt.topology }
