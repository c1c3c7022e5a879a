package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/fabric/addressing"
	"github.com/ceyewan/fabric/connector"
	"github.com/ceyewan/fabric/mq"
	"github.com/ceyewan/fabric/runtime"
	"github.com/ceyewan/fabric/testkit"
	"github.com/ceyewan/fabric/topology"
)

// TestRuntimeOverNATSAndEtcd 两个节点通过 NATS 收发地址消息，通过 etcd 维护成员关系
func TestRuntimeOverNATSAndEtcd(t *testing.T) {
	testkit.SkipIfShort(t)
	kit := testkit.NewKit(t)
	natsCfg := testkit.NewNATSContainerConfig(t)
	etcdCfg := testkit.NewEtcdContainerConfig(t)
	prefix := testkit.NewTestSubject("runtime")
	domain := "fabric://acme-" + testkit.NewID()

	newRuntime := func(name string) *runtime.Runtime {
		nats := *natsCfg
		etcd := *etcdCfg
		rt, err := runtime.New(&runtime.Config{
			Host: runtime.HostInfo{RuntimeName: name, Domain: domain, Zone: "z1"},
			MQ:   &mq.Config{Driver: mq.DriverNATS},
			Membership: runtime.MembershipConfig{
				Kind: runtime.MembershipEtcd,
				Etcd: topology.EtcdConfig{TTL: 5 * time.Second},
			},
			Topology: topology.Config{Prefix: prefix},
			NATS:     &nats,
			Etcd:     &etcd,
		}, runtime.WithLogger(kit.Logger), runtime.WithMeter(kit.Meter))
		require.NoError(t, err)
		return rt
	}

	vm1 := newRuntime("vm1")
	require.NoError(t, vm1.Start(kit.Ctx))
	t.Cleanup(func() { _ = vm1.Stop(context.Background()) })

	a1 := addressing.SocketAddress{RuntimeName: "vm1", Zone: "z1", Protocol: "tcp", Host: "10.0.0.1", Port: 8080}
	require.NoError(t, vm1.AddressCache().Publish(kit.Ctx, addressing.AddressAnnouncement{
		EndpointID: "greeter", Type: addressing.Activated, Address: a1,
	}))

	vm2 := newRuntime("vm2")
	require.NoError(t, vm2.Start(kit.Ctx))
	assert.Eventually(t, func() bool {
		addrs := vm2.AddressCache().GetActiveAddresses("greeter")
		return len(addrs) == 1 && addrs[0] == a1
	}, 10*time.Second, 50*time.Millisecond)

	require.NoError(t, vm2.Stop(context.Background()))
	assert.Eventually(t, func() bool {
		return len(vm1.Topology().Runtimes()) == 1
	}, 10*time.Second, 50*time.Millisecond)
}

func TestRuntimeConnectorFailureRollsBack(t *testing.T) {
	testkit.SkipIfShort(t)
	rt, err := runtime.New(&runtime.Config{
		Host: runtime.HostInfo{RuntimeName: "vm1", Domain: "acme"},
		MQ:   &mq.Config{Driver: mq.DriverNATS},
		NATS: &connector.NATSConfig{URL: "nats://127.0.0.1:1", Timeout: 200 * time.Millisecond},
	}, runtime.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	var lerr *runtime.LifecycleError
	require.ErrorAs(t, rt.Start(context.Background()), &lerr)
	assert.Equal(t, "nats", lerr.Name)
	assert.Equal(t, runtime.PhaseConnector, lerr.Phase)
}
