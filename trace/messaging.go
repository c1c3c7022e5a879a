package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Messaging 语义属性键
const (
	AttrMessagingSystem      = "messaging.system"
	AttrMessagingDestination = "messaging.destination"
	AttrMessagingOperation   = "messaging.operation"
)

const (
	MessagingSystemFabric = "fabric"

	MessagingOperationPublish = "publish"
	MessagingOperationProcess = "process"
)

// TracerName 默认 Tracer 的 instrumentation 名称
const TracerName = "github.com/ceyewan/fabric/topology"

// Relation 消费者 Span 与上游 Span 的关系
type Relation string

const (
	// RelationLink 使用 Span Link（默认）
	RelationLink Relation = "link"
	// RelationChildOf 作为上游的子 Span
	RelationChildOf Relation = "child_of"
)

// MessagingMeta 标准化的消息属性
type MessagingMeta struct {
	System      string
	Destination string
	Operation   string
	Relation    Relation
}

func (m MessagingMeta) attributes(extra []attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(extra)+3)
	if m.System != "" {
		out = append(out, attribute.String(AttrMessagingSystem, m.System))
	}
	if m.Destination != "" {
		out = append(out, attribute.String(AttrMessagingDestination, m.Destination))
	}
	if m.Operation != "" {
		out = append(out, attribute.String(AttrMessagingOperation, m.Operation))
	}
	return append(out, extra...)
}

// SpanNamePublish 发送 Span 的名称
func SpanNamePublish(channel string) string { return "topology.send " + channel }

// SpanNameProcess 接收 Span 的名称
func SpanNameProcess(channel string) string { return "topology.receive " + channel }

// Tracer 为 nil 时返回全局 Tracer
func Tracer(t oteltrace.Tracer) oteltrace.Tracer {
	if t == nil {
		return otel.Tracer(TracerName)
	}
	return t
}

// StartProducerSpan 启动生产者 Span，并返回注入了上下文的消息头
func StartProducerSpan(ctx context.Context, tracer oteltrace.Tracer, name string, meta MessagingMeta, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span, map[string]string) {
	ctx, span := Tracer(tracer).Start(ctx, name, oteltrace.WithSpanKind(oteltrace.SpanKindProducer))
	span.SetAttributes(meta.attributes(attrs)...)

	headers := map[string]string{}
	Inject(ctx, headers)
	return ctx, span, headers
}

// StartConsumerSpanFromHeaders 从消息头启动消费者 Span
func StartConsumerSpanFromHeaders(ctx context.Context, tracer oteltrace.Tracer, name string, headers map[string]string, meta MessagingMeta, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	parent := ctx
	opts := []oteltrace.SpanStartOption{oteltrace.WithSpanKind(oteltrace.SpanKindConsumer)}

	if len(headers) > 0 {
		extracted := Extract(ctx, headers)
		if remote := oteltrace.SpanContextFromContext(extracted); remote.IsValid() {
			if meta.Relation == RelationChildOf {
				parent = extracted
			} else {
				opts = append(opts, oteltrace.WithLinks(oteltrace.Link{SpanContext: remote}))
			}
		}
	}

	ctx, span := Tracer(tracer).Start(parent, name, opts...)
	span.SetAttributes(meta.attributes(attrs)...)
	return ctx, span
}

// MarkSpanError err 不为 nil 时记录错误并设置状态
func MarkSpanError(span oteltrace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
