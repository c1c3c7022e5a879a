package mq

import (
	"context"
	"sync"
)

type message struct {
	ctx     context.Context
	topic   string
	data    []byte
	headers Headers
}

func (m *message) Context() context.Context { return m.ctx }
func (m *message) Topic() string            { return m.topic }
func (m *message) Data() []byte             { return m.data }
func (m *message) Headers() Headers         { return m.headers }

// wireMessage redis 驱动的负载格式，Pub/Sub 本身不携带消息头
type wireMessage struct {
	Headers map[string]string `msgpack:"h,omitempty"`
	Data    []byte            `msgpack:"d"`
}

// subscription 各驱动共用的订阅句柄
type subscription struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	stop   func() error
	err    error
}

// newSubscription 订阅的生命周期与 Subscribe 的 ctx 解耦，只由 Unsubscribe 结束
func newSubscription(parent context.Context) *subscription {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &subscription{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.cancel()
		if s.stop != nil {
			s.err = s.stop()
		}
		close(s.done)
	})
	return s.err
}

func (s *subscription) Done() <-chan struct{} {
	return s.done
}
