package topology

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/fabric/breaker"
	"github.com/ceyewan/fabric/mq"
	"github.com/ceyewan/fabric/xerrors"
)

type ping struct {
	From string `msgpack:"from"`
	Seq  int    `msgpack:"seq"`
}

func newCodec(t *testing.T) *Codec {
	t.Helper()
	c := NewCodec()
	require.NoError(t, c.Register("ping", func() any { return &ping{} }))
	return c
}

func TestCodecRoundTrip(t *testing.T) {
	c := newCodec(t)

	for _, payload := range []any{ping{From: "a", Seq: 1}, &ping{From: "a", Seq: 1}} {
		data, err := c.Encode("vm1", "vm2", payload)
		require.NoError(t, err)

		env, got, err := c.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, "vm1", env.Sender)
		assert.Equal(t, "vm2", env.Target)
		assert.Equal(t, "ping", env.Type)
		assert.Equal(t, &ping{From: "a", Seq: 1}, got)
	}
}

func TestCodecErrors(t *testing.T) {
	c := newCodec(t)

	assert.ErrorIs(t, c.Register("ping", func() any { return &ping{} }), xerrors.ErrInvalidInput)
	assert.ErrorIs(t, c.Register("other", func() any { return &ping{} }), xerrors.ErrInvalidInput)
	assert.ErrorIs(t, c.Register("value", func() any { return ping{} }), xerrors.ErrInvalidInput)

	_, err := c.Encode("vm1", "", struct{}{})
	assert.ErrorIs(t, err, ErrUnknownMessageType)

	data, err := NewCodec().Encode("vm1", "", nil)
	assert.Error(t, err)
	assert.Nil(t, data)

	other := NewCodec()
	require.NoError(t, other.Register("pong", func() any { return &ping{} }))
	data, err = other.Encode("vm1", "", &ping{})
	require.NoError(t, err)
	_, _, err = c.Decode(data)
	assert.ErrorIs(t, err, ErrUnknownMessageType)
}

type recorder struct {
	mu   sync.Mutex
	msgs []any
	got  chan any
}

func newRecorder() *recorder { return &recorder{got: make(chan any, 16)} }

func (r *recorder) OnMessage(_ context.Context, msg any) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	r.got <- msg
}

func (r *recorder) wait(t *testing.T) any {
	t.Helper()
	select {
	case msg := <-r.got:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
		return nil
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case msg := <-r.got:
		t.Fatalf("unexpected message %v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

type node struct {
	svc        *MessagingService
	membership *StaticMembership
}

func newNodes(t *testing.T, names ...string) map[string]*node {
	t.Helper()
	hub := mq.NewHub()
	group := NewStaticGroup()
	nodes := make(map[string]*node, len(names))
	for _, name := range names {
		client, err := mq.New(&mq.Config{Driver: mq.DriverMemory}, mq.WithHub(hub))
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		m := group.Member(name)
		svc, err := NewMessagingService(&Config{RuntimeName: name}, client, m, newCodec(t))
		require.NoError(t, err)
		require.NoError(t, m.Join(context.Background()))
		nodes[name] = &node{svc: svc, membership: m}
	}
	return nodes
}

func TestMessagingBroadcast(t *testing.T) {
	ctx := context.Background()
	nodes := newNodes(t, "vm1", "vm2", "vm3")
	recorders := map[string]*recorder{}
	for name, n := range nodes {
		recorders[name] = newRecorder()
		require.NoError(t, n.svc.OpenChannel(ctx, "FabricAddressChannel.acme", recorders[name]))
	}

	require.NoError(t, nodes["vm1"].svc.SendAsynchronous(ctx, "FabricAddressChannel.acme", &ping{From: "vm1"}))

	assert.Equal(t, &ping{From: "vm1"}, recorders["vm2"].wait(t))
	assert.Equal(t, &ping{From: "vm1"}, recorders["vm3"].wait(t))
	// 自己的广播被丢弃
	recorders["vm1"].none(t)
}

func TestMessagingTargeted(t *testing.T) {
	ctx := context.Background()
	nodes := newNodes(t, "vm1", "vm2", "vm3")
	recorders := map[string]*recorder{}
	for name, n := range nodes {
		recorders[name] = newRecorder()
		require.NoError(t, n.svc.OpenChannel(ctx, "updates", recorders[name]))
	}

	require.NoError(t, nodes["vm1"].svc.SendAsynchronousTo(ctx, "vm2", "updates", ping{Seq: 7}))
	assert.Equal(t, &ping{Seq: 7}, recorders["vm2"].wait(t))
	recorders["vm3"].none(t)

	// 发给自己的定向消息不会被当作自己的广播丢弃
	require.NoError(t, nodes["vm1"].svc.SendAsynchronousTo(ctx, "vm1", "updates", ping{Seq: 8}))
	assert.Equal(t, &ping{Seq: 8}, recorders["vm1"].wait(t))
}

func TestMessagingChannelLifecycle(t *testing.T) {
	ctx := context.Background()
	nodes := newNodes(t, "vm1", "vm2")
	svc := nodes["vm2"].svc
	rec := newRecorder()

	require.NoError(t, svc.OpenChannel(ctx, "c", rec))
	assert.ErrorIs(t, svc.OpenChannel(ctx, "c", rec), ErrChannelAlreadyOpen)
	require.NoError(t, svc.CloseChannel(ctx, "c"))
	assert.ErrorIs(t, svc.CloseChannel(ctx, "c"), ErrChannelNotOpen)

	require.NoError(t, nodes["vm1"].svc.SendAsynchronous(ctx, "c", &ping{}))
	rec.none(t)

	assert.Equal(t, []string{"vm1", "vm2"}, svc.Runtimes())
	assert.Equal(t, "vm2", svc.RuntimeName())
}

func TestMessagingSendErrors(t *testing.T) {
	ctx := context.Background()
	nodes := newNodes(t, "vm1")
	svc := nodes["vm1"].svc

	assert.ErrorIs(t, svc.SendAsynchronous(ctx, "c", struct{}{}), ErrUnknownMessageType)
	assert.ErrorIs(t, svc.SendAsynchronousTo(ctx, "", "c", &ping{}), xerrors.ErrInvalidInput)
}

type failingClient struct{ mq.Client }

func (failingClient) Publish(context.Context, string, []byte, ...mq.PublishOption) error {
	return xerrors.New("publish failed")
}

func TestMessagingBreakerOpens(t *testing.T) {
	ctx := context.Background()
	brk, err := breaker.New(&breaker.Config{MinimumRequests: 2, FailureRatio: 0.5, Timeout: time.Minute})
	require.NoError(t, err)

	svc, err := NewMessagingService(&Config{RuntimeName: "vm1"}, failingClient{}, NewStaticGroup().Member("vm1"), newCodec(t),
		WithBreaker(brk))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		err := svc.SendAsynchronous(ctx, "c", &ping{})
		require.Error(t, err)
		assert.Equal(t, xerrors.CodeTransport, xerrors.GetCode(err))
	}
	err = svc.SendAsynchronous(ctx, "c", &ping{})
	assert.ErrorIs(t, err, breaker.ErrOpenState)

	state, err := brk.State("c")
	require.NoError(t, err)
	assert.Equal(t, breaker.StateOpen, state)
}

func TestNewMessagingServiceValidation(t *testing.T) {
	client, err := mq.New(&mq.Config{})
	require.NoError(t, err)
	defer client.Close()
	m := NewStaticGroup().Member("vm1")

	_, err = NewMessagingService(&Config{RuntimeName: "a.b"}, client, m, NewCodec())
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	_, err = NewMessagingService(&Config{RuntimeName: "vm1"}, nil, m, NewCodec())
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

type memberEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *memberEvents) OnJoin(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, "join:"+name)
}

func (e *memberEvents) OnLeave(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, "leave:"+name)
}

func (e *memberEvents) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func TestStaticMembership(t *testing.T) {
	ctx := context.Background()
	group := NewStaticGroup()
	a, b, c := group.Member("a"), group.Member("b"), group.Member("c")
	ea, eb := &memberEvents{}, &memberEvents{}
	a.Register(ea)
	b.Register(eb)

	require.NoError(t, a.Join(ctx))
	require.NoError(t, b.Join(ctx))
	require.NoError(t, c.Join(ctx))
	assert.ErrorIs(t, group.Member("a").Join(ctx), ErrAlreadyJoined)
	assert.Equal(t, []string{"a", "b", "c"}, a.Members())

	require.NoError(t, c.Leave(ctx))
	require.NoError(t, c.Leave(ctx))
	assert.Equal(t, []string{"a", "b"}, b.Members())

	assert.Equal(t, []string{"join:b", "join:c", "leave:c"}, ea.list())
	assert.Equal(t, []string{"join:a", "join:c", "leave:c"}, eb.list())

	b.Deregister(eb)
	require.NoError(t, a.Leave(ctx))
	assert.Equal(t, []string{"join:a", "join:c", "leave:c"}, eb.list())
}
