package topology

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/fabric/mq"
	"github.com/ceyewan/fabric/trace"
)

type spanReceiver struct {
	got chan oteltrace.SpanContext
}

func (r *spanReceiver) OnMessage(ctx context.Context, _ any) {
	r.got <- oteltrace.SpanContextFromContext(ctx)
}

func TestMessagingTracePropagation(t *testing.T) {
	ctx := context.Background()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })
	tracer := tp.Tracer("test")

	hub := mq.NewHub()
	group := NewStaticGroup()
	services := make(map[string]*MessagingService)
	for _, name := range []string{"vm1", "vm2"} {
		client, err := mq.New(&mq.Config{Driver: mq.DriverMemory}, mq.WithHub(hub))
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		svc, err := NewMessagingService(&Config{RuntimeName: name}, client, group.Member(name), newCodec(t), WithTracer(tracer))
		require.NoError(t, err)
		services[name] = svc
	}

	rcv := &spanReceiver{got: make(chan oteltrace.SpanContext, 1)}
	require.NoError(t, services["vm2"].OpenChannel(ctx, "addr", rcv))

	parentCtx, parent := tracer.Start(ctx, "publish address")
	require.NoError(t, services["vm1"].SendAsynchronous(parentCtx, "addr", &ping{From: "vm1"}))
	parent.End()

	var consumerSC oteltrace.SpanContext
	select {
	case consumerSC = <-rcv.got:
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
	assert.True(t, consumerSC.IsValid())

	var producer, consumer sdktrace.ReadOnlySpan
	require.Eventually(t, func() bool {
		for _, s := range recorder.Ended() {
			switch s.Name() {
			case trace.SpanNamePublish("addr"):
				producer = s
			case trace.SpanNameProcess("addr"):
				consumer = s
			}
		}
		return producer != nil && consumer != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, parent.SpanContext().SpanID(), producer.Parent().SpanID())
	assert.Equal(t, consumerSC.SpanID(), consumer.SpanContext().SpanID())
	require.Len(t, consumer.Links(), 1)
	assert.Equal(t, producer.SpanContext().SpanID(), consumer.Links()[0].SpanContext.SpanID())
}
