// Package addressing 维护端点 ID 到在线网络地址的映射，并通过拓扑服务在运行时之间复制。
//
// 一致性依靠两种消息达成：
//   - 本地 Publish 的公告广播给域内其他运行时，收到的公告只应用不转发
//   - 运行时加入域后广播 AddressRequest，其他运行时回复自己发布的全部地址
//
// 成员离开时，其名下的地址从所有端点移除。
//
// 所有状态由一个 actor goroutine 独占，变更按到达顺序串行处理；
// 变更调用在命令应用后才返回，之后的 GetActiveAddresses 一定能看到结果。
// 监听器通知经过一个有序的无界队列在独立 goroutine 中回调。
//
// 基本使用：
//
//	cache, _ := addressing.New(&addressing.Config{RuntimeName: "vm1", Domain: "acme", Node: true},
//	    addressing.WithTopology(svc), addressing.WithEventBus(bus), addressing.WithLogger(logger))
//	_ = cache.Start(ctx)
//	defer cache.Stop(ctx)
//
//	cache.Subscribe("greeter", addressing.NewListener(func(addrs []addressing.SocketAddress) { ... }))
//	_ = cache.Publish(ctx, addressing.AddressAnnouncement{EndpointID: "greeter", Type: addressing.Activated, Address: addr})
package addressing

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/eventbus"
	"github.com/ceyewan/fabric/metrics"
	"github.com/ceyewan/fabric/ratelimit"
	"github.com/ceyewan/fabric/topology"
	"github.com/ceyewan/fabric/xerrors"
)

// ChannelPrefix 地址通道名前缀，完整名称为 "<ChannelPrefix>.<domain>"
const ChannelPrefix = "FabricAddressChannel"

// Cache 地址缓存
type Cache interface {
	// GetActiveAddresses 返回当前地址的副本，未知端点返回空切片。
	// 缓存关闭后状态不再可读，总是返回空切片
	GetActiveAddresses(endpointID string) []SocketAddress

	// Publish 记录本地地址变化，节点模式下广播到域内其他运行时。
	// 广播失败只记录日志，缓存已关闭时返回 xerrors.ErrClosed
	Publish(ctx context.Context, a AddressAnnouncement) error

	// Subscribe 注册监听器，端点每次变化时收到完整快照
	Subscribe(endpointID string, l Listener)

	// Unsubscribe 按 ID 移除监听器，不存在时忽略
	Unsubscribe(endpointID, listenerID string)
}

// Config 地址缓存配置
type Config struct {
	// RuntimeName 本运行时名称，用于识别自己发布的地址
	RuntimeName string `mapstructure:"runtime_name"`
	// Domain 域 URI 的 authority，决定地址通道名
	Domain string `mapstructure:"domain"`
	// Node 是否以节点模式参与域。控制器模式只维护本地状态，不收发消息
	Node bool `mapstructure:"node"`
	// ReplyConcurrency 同时进行的请求回复数，默认 8
	ReplyConcurrency int `mapstructure:"reply_concurrency"`
	// ReplyLimit 对同一请求方的回复限流，默认每秒 1 次、突发 5 次
	ReplyLimit ratelimit.Limit `mapstructure:"reply_limit"`
	// SendTimeout 单次发送超时，默认 5s
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

func (c *Config) setDefaults() {
	if c.ReplyConcurrency <= 0 {
		c.ReplyConcurrency = 8
	}
	if !c.ReplyLimit.Valid() {
		c.ReplyLimit = ratelimit.Limit{Rate: 1, Burst: 5}
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 5 * time.Second
	}
}

func (c *Config) validate() error {
	if c.RuntimeName == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "addressing: runtime name is required")
	}
	if c.Node && c.Domain == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "addressing: domain is required in node mode")
	}
	return nil
}

// Option 地址缓存选项
type Option func(*options)

type options struct {
	logger   clog.Logger
	meter    metrics.Meter
	topology topology.Service
	bus      eventbus.Bus
	limiter  ratelimit.Limiter
}

// WithLogger 设置日志记录器，自动追加 "addressing" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("addressing")
		}
	}
}

// WithMeter 设置指标收集器
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithTopology 设置拓扑服务，未设置时即使 Node 为 true 也不传播
func WithTopology(s topology.Service) Option {
	return func(o *options) {
		o.topology = s
	}
}

// WithEventBus 设置事件总线，用于接收 JoinDomainCompleted
func WithEventBus(b eventbus.Bus) Option {
	return func(o *options) {
		o.bus = b
	}
}

// WithLimiter 使用外部限流器，未设置时内部创建并在 Stop 时关闭
func WithLimiter(l ratelimit.Limiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}

// state actor 独占的数据
type state struct {
	addresses map[string][]SocketAddress
	listeners map[string][]Listener
}

// AddressCache Cache 的实现，同时作为拓扑的 MessageReceiver 与成员 Listener
type AddressCache struct {
	cfg      Config
	channel  string
	topology topology.Service
	bus      eventbus.Bus
	limiter  ratelimit.Limiter
	ownsLim  bool
	logger   clog.Logger
	monitor  *monitor
	notifier *notifier

	st      state
	inbox   chan func()
	quit    chan struct{}
	stopped chan struct{}

	replies     errgroup.Group
	replyMu     sync.RWMutex
	closing     bool
	sendCtx     context.Context
	cancelSends context.CancelFunc

	lifecycle   sync.Mutex
	started     bool
	closed      bool
	unsubscribe func()
}

var (
	_ Cache                    = (*AddressCache)(nil)
	_ topology.MessageReceiver = (*AddressCache)(nil)
	_ topology.Listener        = (*AddressCache)(nil)
)

// New 创建地址缓存，actor 从此刻开始运行直到 Stop
func New(cfg *Config, opts ...Option) (*AddressCache, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "addressing: config is required")
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger.With(clog.String("runtime", c.RuntimeName))

	mon, err := newMonitor(logger, o.meter)
	if err != nil {
		return nil, err
	}

	limiter, owns := o.limiter, false
	if limiter == nil {
		limiter, err = ratelimit.New(nil, ratelimit.WithLogger(logger), ratelimit.WithMeter(o.meter))
		if err != nil {
			return nil, err
		}
		owns = true
	}

	ac := &AddressCache{
		cfg:      c,
		channel:  ChannelPrefix + "." + c.Domain,
		topology: o.topology,
		bus:      o.bus,
		limiter:  limiter,
		ownsLim:  owns,
		logger:   logger,
		monitor:  mon,
		notifier: newNotifier(logger),
		st: state{
			addresses: make(map[string][]SocketAddress),
			listeners: make(map[string][]Listener),
		},
		inbox:   make(chan func()),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	ac.sendCtx, ac.cancelSends = context.WithCancel(context.Background())
	ac.replies.SetLimit(c.ReplyConcurrency)
	go ac.run()
	return ac, nil
}

// Channel 地址通道名
func (c *AddressCache) Channel() string { return c.channel }

func (c *AddressCache) isNode() bool {
	return c.cfg.Node && c.topology != nil
}

func (c *AddressCache) run() {
	defer close(c.stopped)
	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-c.quit:
			return
		}
	}
}

// do 在 actor 中执行 fn 并等待完成，actor 已停止时返回 false
func (c *AddressCache) do(fn func()) bool {
	done := make(chan struct{})
	select {
	case c.inbox <- func() { fn(); close(done) }:
	case <-c.quit:
		return false
	}
	<-done
	return true
}

// Start 订阅加入域事件，节点模式下注册为成员监听器
func (c *AddressCache) Start(_ context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.closed {
		return xerrors.ErrClosed
	}
	if c.started {
		return nil
	}
	c.started = true

	if c.bus != nil {
		c.unsubscribe = eventbus.On(c.bus, c.onJoinDomain)
	}
	if c.isNode() {
		c.topology.Register(c)
	}
	c.logger.Info("address cache started", clog.Bool("node", c.isNode()), clog.String("channel", c.channel))
	return nil
}

// Stop 关闭地址通道并停止接收，等待进行中的回复，最后停止 actor 与通知队列
func (c *AddressCache) Stop(ctx context.Context) error {
	c.lifecycle.Lock()
	if c.closed {
		c.lifecycle.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	c.lifecycle.Unlock()

	var errs xerrors.Collector
	if started && c.isNode() {
		if err := c.topology.CloseChannel(ctx, c.channel); err != nil && !xerrors.Is(err, topology.ErrChannelNotOpen) {
			errs.Collect(xerrors.Wrap(err, "addressing: close channel"))
		}
		c.topology.Deregister(c)
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
	}

	// 之后不再派发新的回复，Wait 不会与 TryGo 并发
	c.replyMu.Lock()
	c.closing = true
	c.replyMu.Unlock()

	drained := make(chan struct{})
	go func() {
		_ = c.replies.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		c.logger.Warn("stop deadline reached, cancelling pending replies")
		c.cancelSends()
		<-drained
	}
	c.cancelSends()

	close(c.quit)
	<-c.stopped
	c.notifier.close()

	if c.ownsLim {
		errs.Collect(c.limiter.Close())
	}
	c.logger.Info("address cache stopped")
	return errs.Err()
}

func (c *AddressCache) GetActiveAddresses(endpointID string) []SocketAddress {
	out := []SocketAddress{}
	c.do(func() {
		out = append(out, c.st.addresses[endpointID]...)
	})
	return out
}

func (c *AddressCache) Publish(ctx context.Context, a AddressAnnouncement) error {
	if a.EndpointID == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "addressing: endpoint id is required")
	}
	if a.Type != Activated && a.Type != Deactivated {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "addressing: unknown announcement type %q", a.Type)
	}
	if !c.do(func() { c.apply(a, originLocal) }) {
		return xerrors.ErrClosed
	}

	if c.isNode() {
		if err := c.topology.SendAsynchronous(ctx, c.channel, &a); err != nil {
			c.monitor.error("broadcast", err)
		}
	}
	return nil
}

func (c *AddressCache) Subscribe(endpointID string, l Listener) {
	if l == nil {
		return
	}
	c.do(func() {
		list := slices.DeleteFunc(slices.Clone(c.st.listeners[endpointID]), func(x Listener) bool {
			return x.ID() == l.ID()
		})
		c.st.listeners[endpointID] = append(list, l)
	})
}

func (c *AddressCache) Unsubscribe(endpointID, listenerID string) {
	c.do(func() {
		list, ok := c.st.listeners[endpointID]
		if !ok {
			return
		}
		list = slices.DeleteFunc(slices.Clone(list), func(x Listener) bool { return x.ID() == listenerID })
		if len(list) == 0 {
			delete(c.st.listeners, endpointID)
			return
		}
		c.st.listeners[endpointID] = list
	})
}

// apply 在 actor 中执行。重复上线同一地址不会产生重复项，
// 下线最后一个地址时删除端点。无论列表是否变化都通知监听器
func (c *AddressCache) apply(a AddressAnnouncement, origin string) {
	current := c.st.addresses[a.EndpointID]
	switch a.Type {
	case Activated:
		if !slices.Contains(current, a.Address) {
			c.st.addresses[a.EndpointID] = append(slices.Clone(current), a.Address)
			c.monitor.added(a.EndpointID, a.Address, origin)
		}
	case Deactivated:
		if i := slices.Index(current, a.Address); i >= 0 {
			next := slices.Delete(slices.Clone(current), i, i+1)
			if len(next) == 0 {
				delete(c.st.addresses, a.EndpointID)
			} else {
				c.st.addresses[a.EndpointID] = next
			}
			c.monitor.removed(a.EndpointID, a.Address, origin)
		}
	}
	c.monitor.endpointCount(len(c.st.addresses))
	c.notify(a.EndpointID)
}

// notify 在 actor 中执行，把监听器与地址快照交给通知队列
func (c *AddressCache) notify(endpointID string) {
	listeners := c.st.listeners[endpointID]
	if len(listeners) == 0 {
		return
	}
	c.notifier.enqueue(notification{
		endpointID: endpointID,
		listeners:  slices.Clone(listeners),
		addresses:  append([]SocketAddress{}, c.st.addresses[endpointID]...),
	})
}

// OnMessage 处理地址通道上的消息，收到的公告只应用不转发
func (c *AddressCache) OnMessage(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case *AddressAnnouncement:
		c.do(func() { c.apply(*m, originRemote) })
	case *AddressUpdate:
		c.do(func() {
			for _, a := range m.Announcements {
				c.apply(a, originRemote)
			}
		})
	case *AddressRequest:
		c.handleRequest(ctx, m)
	default:
		c.logger.Warn("ignoring unexpected message", clog.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (c *AddressCache) handleRequest(ctx context.Context, req *AddressRequest) {
	c.monitor.receivedRequest(req.RuntimeName)

	update := &AddressUpdate{}
	if !c.do(func() { update.Announcements = c.ownAnnouncements() }) {
		return
	}
	if len(update.Announcements) == 0 || !c.isNode() {
		return
	}

	ok, err := c.limiter.Allow(ctx, req.RuntimeName, c.cfg.ReplyLimit)
	if err != nil {
		c.monitor.error("reply", err)
		return
	}
	if !ok {
		c.monitor.replyDropped(req.RuntimeName, "rate_limited")
		return
	}

	c.replyMu.RLock()
	defer c.replyMu.RUnlock()
	if c.closing {
		return
	}
	// 回复在执行器中完成，不阻塞消息接收
	started := c.replies.TryGo(func() error {
		sendCtx, cancel := context.WithTimeout(c.sendCtx, c.cfg.SendTimeout)
		defer cancel()
		if err := c.topology.SendAsynchronousTo(sendCtx, req.RuntimeName, c.channel, update); err != nil {
			c.monitor.error("reply", err)
		}
		return nil
	})
	if !started {
		c.monitor.replyDropped(req.RuntimeName, "saturated")
	}
}

// ownAnnouncements 在 actor 中执行，按端点 ID 排序收集本运行时发布的地址
func (c *AddressCache) ownAnnouncements() []AddressAnnouncement {
	var out []AddressAnnouncement
	for _, id := range slices.Sorted(maps.Keys(c.st.addresses)) {
		for _, addr := range c.st.addresses[id] {
			if addr.RuntimeName == c.cfg.RuntimeName {
				out = append(out, AddressAnnouncement{EndpointID: id, Type: Activated, Address: addr})
			}
		}
	}
	return out
}

// OnJoin 新成员通过自己的 AddressRequest 追赶状态，这里无需处理
func (c *AddressCache) OnJoin(string) {}

// OnLeave 移除离开的运行时名下的所有地址，只通知受影响的端点
func (c *AddressCache) OnLeave(runtimeName string) {
	c.do(func() {
		for _, id := range slices.Sorted(maps.Keys(c.st.addresses)) {
			current := c.st.addresses[id]
			next := slices.DeleteFunc(slices.Clone(current), func(a SocketAddress) bool {
				return a.RuntimeName == runtimeName
			})
			if len(next) == len(current) {
				continue
			}
			for _, a := range current {
				if a.RuntimeName == runtimeName {
					c.monitor.removed(id, a, originLeave)
				}
			}
			if len(next) == 0 {
				delete(c.st.addresses, id)
			} else {
				c.st.addresses[id] = next
			}
			c.notify(id)
		}
		c.monitor.endpointCount(len(c.st.addresses))
	})
	c.logger.Info("purged addresses of departed runtime", clog.String("member", runtimeName))
}

// onJoinDomain 打开地址通道并请求其他成员重发地址
func (c *AddressCache) onJoinDomain(ctx context.Context, e eventbus.JoinDomainCompleted) {
	if !c.isNode() {
		return
	}
	if err := c.topology.OpenChannel(ctx, c.channel, c); err != nil && !xerrors.Is(err, topology.ErrChannelAlreadyOpen) {
		c.monitor.error("open_channel", err)
		return
	}
	if err := c.topology.SendAsynchronous(ctx, c.channel, &AddressRequest{RuntimeName: c.cfg.RuntimeName}); err != nil {
		c.monitor.error("request", err)
		return
	}
	c.logger.Info("requested addresses from domain", clog.String("domain", e.Domain))
}
