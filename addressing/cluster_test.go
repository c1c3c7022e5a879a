package addressing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/fabric/addressing"
	"github.com/ceyewan/fabric/eventbus"
	"github.com/ceyewan/fabric/mq"
	"github.com/ceyewan/fabric/topology"
)

type peer struct {
	cache      *addressing.AddressCache
	bus        eventbus.Bus
	membership *topology.StaticMembership
}

func (p *peer) join(t *testing.T, name string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, p.membership.Join(ctx))
	p.bus.Publish(ctx, eventbus.JoinDomainCompleted{RuntimeName: name, Domain: "acme"})
}

// newPeer 在共享的 hub 与 group 上创建一个节点模式的运行时
func newPeer(t *testing.T, hub *mq.Hub, group *topology.StaticGroup, name string) *peer {
	t.Helper()
	client, err := mq.New(&mq.Config{Driver: mq.DriverMemory}, mq.WithHub(hub))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	codec := topology.NewCodec()
	require.NoError(t, addressing.RegisterMessages(codec))
	membership := group.Member(name)
	svc, err := topology.NewMessagingService(&topology.Config{RuntimeName: name}, client, membership, codec)
	require.NoError(t, err)

	bus := eventbus.New()
	cache, err := addressing.New(&addressing.Config{RuntimeName: name, Domain: "acme", Node: true},
		addressing.WithTopology(svc), addressing.WithEventBus(bus))
	require.NoError(t, err)
	require.NoError(t, cache.Start(context.Background()))
	t.Cleanup(func() { _ = cache.Stop(context.Background()) })

	return &peer{cache: cache, bus: bus, membership: membership}
}

func TestClusterReplication(t *testing.T) {
	ctx := context.Background()
	hub := mq.NewHub()
	group := topology.NewStaticGroup()

	vm1 := newPeer(t, hub, group, "vm1")
	vm1.join(t, "vm1")

	a1 := addressing.SocketAddress{RuntimeName: "vm1", Protocol: "tcp", Host: "10.0.0.1", Port: 8080}
	require.NoError(t, vm1.cache.Publish(ctx, addressing.AddressAnnouncement{
		EndpointID: "greeter", Type: addressing.Activated, Address: a1,
	}))

	// vm2 在 vm1 发布之后加入，通过 AddressRequest 追赶
	vm2 := newPeer(t, hub, group, "vm2")
	vm2.join(t, "vm2")
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]addressing.SocketAddress{a1}, vm2.cache.GetActiveAddresses("greeter"))
	}, 2*time.Second, 10*time.Millisecond)

	// 之后的发布直接广播，vm1 自己只保留一份
	a2 := addressing.SocketAddress{RuntimeName: "vm2", Protocol: "tcp", Host: "10.0.0.2", Port: 8080}
	require.NoError(t, vm2.cache.Publish(ctx, addressing.AddressAnnouncement{
		EndpointID: "greeter", Type: addressing.Activated, Address: a2,
	}))
	assert.Eventually(t, func() bool {
		return len(vm1.cache.GetActiveAddresses("greeter")) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []addressing.SocketAddress{a1, a2}, vm1.cache.GetActiveAddresses("greeter"))
	assert.Equal(t, []addressing.SocketAddress{a1, a2}, vm2.cache.GetActiveAddresses("greeter"))

	// vm2 离开后 vm1 清除它的地址
	updated := make(chan []addressing.SocketAddress, 4)
	vm1.cache.Subscribe("greeter", addressing.NewListener(func(addrs []addressing.SocketAddress) { updated <- addrs }))
	require.NoError(t, vm2.membership.Leave(ctx))

	select {
	case addrs := <-updated:
		assert.Equal(t, []addressing.SocketAddress{a1}, addrs)
	case <-time.After(2 * time.Second):
		t.Fatal("leave did not notify")
	}
	assert.Equal(t, []addressing.SocketAddress{a1}, vm1.cache.GetActiveAddresses("greeter"))
}
