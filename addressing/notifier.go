package addressing

import (
	"sync"

	"github.com/ceyewan/fabric/clog"
)

type notification struct {
	endpointID string
	listeners  []Listener
	addresses  []SocketAddress
}

// notifier 按入队顺序回调监听器。队列无界，actor 入队从不阻塞，
// 监听器也因此可以在回调中再次调用缓存
type notifier struct {
	logger clog.Logger

	mu      sync.Mutex
	queue   []notification
	closed  bool
	wakeup  chan struct{}
	stopped chan struct{}
}

func newNotifier(logger clog.Logger) *notifier {
	n := &notifier{
		logger:  logger,
		wakeup:  make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *notifier) enqueue(item notification) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.queue = append(n.queue, item)
	n.mu.Unlock()

	select {
	case n.wakeup <- struct{}{}:
	default:
	}
}

// close 投递完已入队的通知后退出
func (n *notifier) close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		<-n.stopped
		return
	}
	n.closed = true
	n.mu.Unlock()

	select {
	case n.wakeup <- struct{}{}:
	default:
	}
	<-n.stopped
}

func (n *notifier) run() {
	defer close(n.stopped)
	for range n.wakeup {
		for {
			n.mu.Lock()
			if len(n.queue) == 0 {
				closed := n.closed
				n.mu.Unlock()
				if closed {
					return
				}
				break
			}
			item := n.queue[0]
			n.queue[0] = notification{}
			n.queue = n.queue[1:]
			n.mu.Unlock()

			for _, l := range item.listeners {
				n.deliver(item.endpointID, l, item.addresses)
			}
		}
	}
}

func (n *notifier) deliver(endpointID string, l Listener, addresses []SocketAddress) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("address listener panicked",
				clog.String("endpoint", endpointID), clog.String("listener", l.ID()), clog.Any("panic", r))
		}
	}()
	l.OnUpdate(addresses)
}
