// Package eventbus 进程内的运行时事件总线。
//
// Publish 同步调用该类型的全部监听器，顺序与订阅顺序一致；监听器 panic 会被恢复并记录日志，
// 不影响后续监听器。监听器中可以再次 Subscribe 或 Publish。
//
// 基本使用：
//
//	bus := eventbus.New(eventbus.WithLogger(logger))
//	unsubscribe := eventbus.On(bus, func(ctx context.Context, e eventbus.JoinDomainCompleted) {
//	    // 打开集群通道
//	})
//	defer unsubscribe()
//
//	bus.Publish(ctx, eventbus.JoinDomainCompleted{RuntimeName: "vm1", Domain: "fabric://domain"})
package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/ceyewan/fabric/clog"
)

// EventType 事件类型
type EventType string

// Event 运行时事件
type Event interface {
	Type() EventType
}

const (
	TypeRuntimeStarted      EventType = "runtime_started"
	TypeJoinDomainCompleted EventType = "join_domain_completed"
	TypeRuntimeStopping     EventType = "runtime_stopping"
)

// RuntimeStarted 生命周期全部启动完成
type RuntimeStarted struct {
	RuntimeName string
}

func (RuntimeStarted) Type() EventType { return TypeRuntimeStarted }

// JoinDomainCompleted 运行时已加入域，可以打开集群通道
type JoinDomainCompleted struct {
	RuntimeName string
	Domain      string
}

func (JoinDomainCompleted) Type() EventType { return TypeJoinDomainCompleted }

// RuntimeStopping 即将停止
type RuntimeStopping struct {
	RuntimeName string
}

func (RuntimeStopping) Type() EventType { return TypeRuntimeStopping }

// Listener 事件监听器
type Listener interface {
	OnEvent(ctx context.Context, e Event)
}

// ListenerFunc 函数形式的 Listener
type ListenerFunc func(ctx context.Context, e Event)

func (f ListenerFunc) OnEvent(ctx context.Context, e Event) { f(ctx, e) }

// Bus 事件总线
type Bus interface {
	// Subscribe 返回取消订阅函数，可重复调用
	Subscribe(t EventType, l Listener) (unsubscribe func())
	Publish(ctx context.Context, e Event)
}

// On 按事件的具体类型订阅，E 必须是值类型的事件
func On[E Event](b Bus, fn func(ctx context.Context, e E)) (unsubscribe func()) {
	var zero E
	return b.Subscribe(zero.Type(), ListenerFunc(func(ctx context.Context, e Event) {
		if typed, ok := e.(E); ok {
			fn(ctx, typed)
		}
	}))
}

// Option 总线选项
type Option func(*bus)

// WithLogger 设置日志记录器，自动追加 "eventbus" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(b *bus) {
		if l != nil {
			b.logger = l.WithNamespace("eventbus")
		}
	}
}

type subscriber struct {
	id       uint64
	listener Listener
}

type bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[EventType][]subscriber
	logger clog.Logger
}

// New 创建事件总线
func New(opts ...Option) Bus {
	b := &bus{subs: make(map[EventType][]subscriber), logger: clog.Discard()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *bus) Subscribe(t EventType, l Listener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[t] = append(b.subs[t], subscriber{id: id, listener: l})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(t, id) })
	}
}

func (b *bus) remove(t EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[t]
	for i, s := range subs {
		if s.id == id {
			// 复制而不是原地修改，进行中的 Publish 持有旧切片
			next := make([]subscriber, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			b.subs[t] = append(next, subs[i+1:]...)
			return
		}
	}
}

func (b *bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := b.subs[e.Type()]
	b.mu.RUnlock()

	b.logger.Debug("publish event", clog.String("type", string(e.Type())), clog.Int("listeners", len(subs)))
	for _, s := range subs {
		b.deliver(ctx, s.listener, e)
	}
}

func (b *bus) deliver(ctx context.Context, l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorContext(ctx, "event listener panicked",
				clog.String("type", string(e.Type())),
				clog.String("panic", fmt.Sprint(r)))
		}
	}()
	l.OnEvent(ctx, e)
}
