package topology_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/fabric/mq"
	"github.com/ceyewan/fabric/testkit"
	"github.com/ceyewan/fabric/topology"
)

type events struct {
	mu   sync.Mutex
	list []string
}

func (e *events) OnJoin(name string)  { e.add("join:" + name) }
func (e *events) OnLeave(name string) { e.add("leave:" + name) }

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, s)
}

func (e *events) has(s string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, x := range e.list {
		if x == s {
			return true
		}
	}
	return false
}

func TestEtcdMembership(t *testing.T) {
	testkit.SkipIfShort(t)
	kit := testkit.NewKit(t)
	conn := testkit.NewEtcdContainerConnector(t)
	cfg := &topology.EtcdConfig{Domain: "domain-" + testkit.NewID(), TTL: 5 * time.Second}

	a, err := topology.NewEtcdMembership(conn, "vm1", cfg, topology.WithLogger(kit.Logger))
	require.NoError(t, err)
	b, err := topology.NewEtcdMembership(conn, "vm2", cfg, topology.WithLogger(kit.Logger))
	require.NoError(t, err)

	ea, eb := &events{}, &events{}
	a.Register(ea)
	b.Register(eb)

	require.NoError(t, a.Join(kit.Ctx))
	defer a.Leave(context.Background())
	assert.Equal(t, []string{"vm1"}, a.Members())
	assert.ErrorIs(t, a.Join(kit.Ctx), topology.ErrAlreadyJoined)

	require.NoError(t, b.Join(kit.Ctx))
	assert.Equal(t, []string{"vm1", "vm2"}, b.Members())

	assert.Eventually(t, func() bool { return ea.has("join:vm2") }, 5*time.Second, 50*time.Millisecond)
	assert.Eventually(t, func() bool { return eb.has("join:vm1") }, 5*time.Second, 50*time.Millisecond)
	assert.Eventually(t, func() bool { return len(a.Members()) == 2 }, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, b.Leave(kit.Ctx))
	assert.Empty(t, b.Members())
	assert.Eventually(t, func() bool { return ea.has("leave:vm2") }, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []string{"vm1"}, a.Members())
}

type inbox chan any

func (i inbox) OnMessage(_ context.Context, msg any) { i <- msg }

type hello struct {
	Text string `msgpack:"text"`
}

func TestMessagingOverNATS(t *testing.T) {
	testkit.SkipIfShort(t)
	kit := testkit.NewKit(t)
	conn := testkit.NewNATSContainerConnector(t)
	group := topology.NewStaticGroup()
	prefix := testkit.NewTestSubject("topology")

	newService := func(name string) (*topology.MessagingService, inbox) {
		client, err := mq.New(&mq.Config{Driver: mq.DriverNATS}, mq.WithNATSConnector(conn), mq.WithLogger(kit.Logger))
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		codec := topology.NewCodec()
		require.NoError(t, codec.Register("hello", func() any { return &hello{} }))
		m := group.Member(name)
		require.NoError(t, m.Join(kit.Ctx))

		svc, err := topology.NewMessagingService(&topology.Config{RuntimeName: name, Prefix: prefix}, client, m, codec,
			topology.WithLogger(kit.Logger))
		require.NoError(t, err)
		in := make(inbox, 4)
		require.NoError(t, svc.OpenChannel(kit.Ctx, "addresses", in))
		return svc, in
	}

	vm1, in1 := newService("vm1")
	_, in2 := newService("vm2")

	require.NoError(t, vm1.SendAsynchronous(kit.Ctx, "addresses", &hello{Text: "all"}))
	select {
	case msg := <-in2:
		assert.Equal(t, &hello{Text: "all"}, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast not received")
	}

	require.NoError(t, vm1.SendAsynchronousTo(kit.Ctx, "vm2", "addresses", &hello{Text: "direct"}))
	select {
	case msg := <-in2:
		assert.Equal(t, &hello{Text: "direct"}, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("targeted message not received")
	}

	select {
	case msg := <-in1:
		t.Fatalf("sender received %v", msg)
	case <-time.After(200 * time.Millisecond):
	}
}
