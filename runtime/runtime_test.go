package runtime

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/fabric/addressing"
	"github.com/ceyewan/fabric/assembly"
	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/config"
	"github.com/ceyewan/fabric/connector"
	"github.com/ceyewan/fabric/eventbus"
	"github.com/ceyewan/fabric/mq"
	"github.com/ceyewan/fabric/resource"
	"github.com/ceyewan/fabric/topology"
)

func TestConfigValidate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := &Config{Host: HostInfo{RuntimeName: "vm1", Domain: "fabric://acme"}}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, ModeNode, cfg.Host.Mode)
		assert.Equal(t, MembershipStatic, cfg.Membership.Kind)
		assert.Equal(t, "acme", cfg.Addressing.Domain)
		assert.Equal(t, "vm1", cfg.Addressing.RuntimeName)
		assert.True(t, cfg.Addressing.Node)
		assert.Equal(t, "vm1", cfg.Topology.RuntimeName)
		assert.Equal(t, "acme", cfg.Membership.Etcd.Domain)
		assert.NotNil(t, cfg.Breaker)
	})

	t.Run("etcd membership when etcd configured", func(t *testing.T) {
		cfg := &Config{
			Host: HostInfo{RuntimeName: "vm1", Domain: "acme"},
			Etcd: &connector.EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}},
		}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, MembershipEtcd, cfg.Membership.Kind)
		assert.Equal(t, "acme", cfg.Addressing.Domain)
	})

	t.Run("controller without domain", func(t *testing.T) {
		cfg := &Config{Host: HostInfo{RuntimeName: "ctl", Mode: ModeController}}
		require.NoError(t, cfg.Validate())
		assert.False(t, cfg.Addressing.Node)
	})

	invalid := map[string]*Config{
		"runtime name":    {Host: HostInfo{Domain: "acme"}},
		"dotted name":     {Host: HostInfo{RuntimeName: "vm.1", Domain: "acme"}},
		"node domain":     {Host: HostInfo{RuntimeName: "vm1"}},
		"mode":            {Host: HostInfo{RuntimeName: "vm1", Domain: "acme", Mode: "edge"}},
		"nats section":    {Host: HostInfo{RuntimeName: "vm1", Domain: "acme"}, MQ: &mq.Config{Driver: mq.DriverNATS}},
		"redis section":   {Host: HostInfo{RuntimeName: "vm1", Domain: "acme"}, MQ: &mq.Config{Driver: mq.DriverRedis}},
		"etcd section":    {Host: HostInfo{RuntimeName: "vm1", Domain: "acme"}, Membership: MembershipConfig{Kind: MembershipEtcd}},
		"membership kind": {Host: HostInfo{RuntimeName: "vm1", Domain: "acme"}, Membership: MembershipConfig{Kind: "gossip"}},
	}
	for name, cfg := range invalid {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, cfg.Validate(), config.ErrValidationFailed)
		})
	}

	t.Run("all errors reported", func(t *testing.T) {
		cfg := &Config{Host: HostInfo{Mode: "edge"}, Membership: MembershipConfig{Kind: "gossip"}}
		err := cfg.Validate()
		require.Error(t, err)
		var joined interface{ Unwrap() []error }
		require.True(t, errors.As(err, &joined))
		assert.Len(t, joined.Unwrap(), 3)
	})
}

type recorder struct {
	events []string
}

func (r *recorder) item(name string, phase int, startErr error) *hook {
	return &hook{
		phase: phase,
		start: func(context.Context) error {
			if startErr != nil {
				return startErr
			}
			r.events = append(r.events, "start:"+name)
			return nil
		},
		stop: func(context.Context) error {
			r.events = append(r.events, "stop:"+name)
			return nil
		},
	}
}

func TestLifecycleManager(t *testing.T) {
	ctx := context.Background()

	t.Run("ordering", func(t *testing.T) {
		r := &recorder{}
		m := NewLifecycleManager(nil)
		m.Register("service", r.item("service", PhaseService, nil))
		m.Register("nats", r.item("nats", PhaseConnector, nil))
		m.Register("cache", r.item("cache", PhaseComponent, nil))
		m.Register("etcd", r.item("etcd", PhaseConnector, nil))

		require.NoError(t, m.StartAll(ctx))
		require.NoError(t, m.StopAll(ctx))
		assert.Equal(t, []string{
			"start:nats", "start:etcd", "start:cache", "start:service",
			"stop:service", "stop:cache", "stop:etcd", "stop:nats",
		}, r.events)
		assert.Len(t, m.Items(), 4)
	})

	t.Run("rollback", func(t *testing.T) {
		r := &recorder{}
		boom := errors.New("boom")
		m := NewLifecycleManager(clog.Discard())
		m.Register("nats", r.item("nats", PhaseConnector, nil))
		m.Register("mq", r.item("mq", PhaseTransport, nil))
		m.Register("cache", r.item("cache", PhaseComponent, boom))

		err := m.StartAll(ctx)
		var lerr *LifecycleError
		require.ErrorAs(t, err, &lerr)
		assert.Equal(t, "cache", lerr.Name)
		assert.Equal(t, PhaseComponent, lerr.Phase)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"start:nats", "start:mq", "stop:mq", "stop:nats"}, r.events)
	})

	t.Run("stop errors combined", func(t *testing.T) {
		m := NewLifecycleManager(nil)
		boom := errors.New("boom")
		m.Register("a", &hook{stop: func(context.Context) error { return boom }})
		m.Register("b", &hook{})
		require.NoError(t, m.StartAll(ctx))
		assert.ErrorIs(t, m.StopAll(ctx), boom)
		assert.NoError(t, m.StopAll(ctx))
	})
}

func newNode(t *testing.T, hub *mq.Hub, group *topology.StaticGroup, name string) *Runtime {
	t.Helper()
	rt, err := New(&Config{Host: HostInfo{RuntimeName: name, Domain: "fabric://acme", Zone: "z1"}},
		WithLogger(clog.Discard()), WithHub(hub), WithStaticGroup(group))
	require.NoError(t, err)
	return rt
}

func TestRuntimeNodes(t *testing.T) {
	ctx := context.Background()
	hub := mq.NewHub()
	group := topology.NewStaticGroup()

	vm1 := newNode(t, hub, group, "vm1")
	var events []string
	eventbus.On(vm1.EventBus(), func(_ context.Context, e eventbus.JoinDomainCompleted) {
		events = append(events, e.RuntimeName+"@"+e.Domain)
	})
	require.NoError(t, vm1.Start(ctx))
	t.Cleanup(func() { _ = vm1.Stop(ctx) })
	assert.Equal(t, []string{"vm1@fabric://acme"}, events)
	require.NotNil(t, vm1.Topology())
	assert.Equal(t, "vm1", vm1.Topology().RuntimeName())

	a1 := addressing.SocketAddress{RuntimeName: "vm1", Zone: "z1", Protocol: "tcp", Host: "10.0.0.1", Port: 8080}
	require.NoError(t, vm1.AddressCache().Publish(ctx, addressing.AddressAnnouncement{
		EndpointID: "greeter", Type: addressing.Activated, Address: a1,
	}))

	vm2 := newNode(t, hub, group, "vm2")
	require.NoError(t, vm2.Start(ctx))
	assert.Eventually(t, func() bool {
		return len(vm2.AddressCache().GetActiveAddresses("greeter")) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"vm1", "vm2"}, vm1.Topology().Runtimes())

	a2 := addressing.SocketAddress{RuntimeName: "vm2", Zone: "z1", Protocol: "tcp", Host: "10.0.0.2", Port: 8080}
	require.NoError(t, vm2.AddressCache().Publish(ctx, addressing.AddressAnnouncement{
		EndpointID: "greeter", Type: addressing.Activated, Address: a2,
	}))
	assert.Eventually(t, func() bool {
		return len(vm1.AddressCache().GetActiveAddresses("greeter")) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// vm2 停止时离开域，vm1 清除它的地址
	require.NoError(t, vm2.Stop(ctx))
	assert.Eventually(t, func() bool {
		addrs := vm1.AddressCache().GetActiveAddresses("greeter")
		return len(addrs) == 1 && addrs[0] == a1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"vm1"}, vm1.Topology().Runtimes())
}

func TestRuntimeController(t *testing.T) {
	ctx := context.Background()
	rt, err := New(&Config{Host: HostInfo{RuntimeName: "ctl", Mode: ModeController}}, WithLogger(clog.Discard()))
	require.NoError(t, err)
	require.NoError(t, rt.Start(ctx))

	assert.Nil(t, rt.Topology())
	assert.Equal(t, ModeController, rt.Host().Mode)

	addr := addressing.SocketAddress{RuntimeName: "ctl", Protocol: "tcp", Host: "127.0.0.1", Port: 9000}
	require.NoError(t, rt.AddressCache().Publish(ctx, addressing.AddressAnnouncement{
		EndpointID: "admin", Type: addressing.Activated, Address: addr,
	}))
	assert.Equal(t, []addressing.SocketAddress{addr}, rt.AddressCache().GetActiveAddresses("admin"))

	require.NoError(t, rt.Stop(ctx))
	assert.Error(t, rt.AddressCache().Publish(ctx, addressing.AddressAnnouncement{
		EndpointID: "admin", Type: addressing.Deactivated, Address: addr,
	}))
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{Host: HostInfo{RuntimeName: "vm1"}}, WithLogger(clog.Discard()))
	assert.ErrorIs(t, err, config.ErrValidationFailed)
}

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	assert.Error(t, r.RegisterBindingGenerator("nats", nil), "built-in kinds are already taken")
}

func TestGeneratePlan(t *testing.T) {
	rt, err := New(&Config{Host: HostInfo{RuntimeName: "ctl", Mode: ModeController}}, WithLogger(clog.Discard()))
	require.NoError(t, err)
	asm, err := assembly.LoadFile("../assembly/testdata/greeter.yaml")
	require.NoError(t, err)

	plan, err := GeneratePlan(rt.WireGenerator(), rt.ChannelGenerator(), asm)
	require.NoError(t, err)
	assert.Equal(t, "app", plan.URI)
	assert.NotEmpty(t, plan.Connections)

	var callbacks, resources int
	for _, pw := range plan.Wires {
		if pw.Target.Callback {
			callbacks++
		}
		if pw.Target.Kind == string(resource.KindCacheSet) {
			resources++
		}
	}
	// 两条连线各带回调，remoteGreeter 绑定引用也带回调
	assert.Equal(t, 3, callbacks)
	assert.Equal(t, 1, resources)

	_, err = GeneratePlan(rt.WireGenerator(), rt.ChannelGenerator(), nil)
	assert.Error(t, err)
}

const cacheAssembly = `
uri: shop
components:
  - name: store
    implementation: {kind: go, type: Store}
    resources:
      - name: caches
        caches:
          - {name: sessions, capacity: 100, ttl: 1m}
          - {name: carts, capacity: 10}
`

func TestDeploy(t *testing.T) {
	ctx := context.Background()
	rt, err := New(&Config{Host: HostInfo{RuntimeName: "ctl", Mode: ModeController}}, WithLogger(clog.Discard()))
	require.NoError(t, err)
	require.NoError(t, rt.Start(ctx))
	t.Cleanup(func() { _ = rt.Stop(ctx) })

	asm, err := assembly.Load(strings.NewReader(cacheAssembly))
	require.NoError(t, err)

	plan, err := rt.Deploy(ctx, asm)
	require.NoError(t, err)
	require.Len(t, plan.Wires, 1)
	assert.True(t, plan.Wires[0].Optimizable)

	caches, ok := rt.Caches("shop/store#caches")
	require.True(t, ok)
	require.Len(t, caches, 2)

	sessions := caches["sessions"]
	require.NotNil(t, sessions)
	require.NoError(t, sessions.Set(ctx, "u1", "alice", 0))
	var got string
	require.NoError(t, sessions.Get(ctx, "u1", &got))
	assert.Equal(t, "alice", got)

	// 重新部署替换旧实例
	_, err = rt.Deploy(ctx, asm)
	require.NoError(t, err)
	again, ok := rt.Caches("shop/store#caches")
	require.True(t, ok)
	assert.NotSame(t, sessions, again["sessions"])

	_, ok = rt.Caches("shop/missing#caches")
	assert.False(t, ok)
}
