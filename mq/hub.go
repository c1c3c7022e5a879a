package mq

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
)

// Hub 进程内的消息总线，按 NATS 主题规则匹配：
// "*" 匹配一个 token，">" 匹配剩余全部 token。
//
// 多个 memory 客户端共享同一个 Hub 时，行为与连到同一 NATS 服务器一致，
// 测试中可用它模拟多个运行时组成的集群。
type Hub struct {
	mu     sync.RWMutex
	subs   map[*hubSub]struct{}
	cursor map[string]uint64 // 队列组轮询游标，key 为 pattern + 组名
	seq    uint64
}

type hubSub struct {
	seq     uint64
	pattern string
	group   string
	queue   chan *message
	sub     *subscription
}

// NewHub 创建空 Hub
func NewHub() *Hub {
	return &Hub{
		subs:   make(map[*hubSub]struct{}),
		cursor: make(map[string]uint64),
	}
}

func (h *Hub) publish(ctx context.Context, topic string, data []byte, headers Headers) error {
	targets := h.route(topic)
	for _, hs := range targets {
		m := &message{
			ctx:     hs.sub.ctx,
			topic:   topic,
			data:    append([]byte(nil), data...),
			headers: headers.Clone(),
		}
		select {
		case hs.queue <- m:
		case <-hs.sub.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// route 选出投递目标：普通订阅全部命中，队列组每组只选一个
func (h *Hub) route(topic string) []*hubSub {
	h.mu.Lock()
	defer h.mu.Unlock()

	var targets []*hubSub
	groups := make(map[string][]*hubSub)
	for hs := range h.subs {
		if !matchSubject(hs.pattern, topic) {
			continue
		}
		if hs.group == "" {
			targets = append(targets, hs)
			continue
		}
		key := hs.pattern + "|" + hs.group
		groups[key] = append(groups[key], hs)
	}
	for key, members := range groups {
		slices.SortFunc(members, func(a, b *hubSub) int { return cmp.Compare(a.seq, b.seq) })
		n := h.cursor[key]
		h.cursor[key] = n + 1
		targets = append(targets, members[n%uint64(len(members))])
	}
	return targets
}

func (h *Hub) subscribe(ctx context.Context, topic string, handler Handler, o subscribeOptions) (Subscription, error) {
	size := o.bufferSize
	if size <= 0 {
		size = 256
	}
	hs := &hubSub{
		pattern: topic,
		group:   o.queueGroup,
		queue:   make(chan *message, size),
		sub:     newSubscription(ctx),
	}
	hs.sub.stop = func() error {
		h.mu.Lock()
		delete(h.subs, hs)
		h.mu.Unlock()
		return nil
	}

	h.mu.Lock()
	h.seq++
	hs.seq = h.seq
	h.subs[hs] = struct{}{}
	h.mu.Unlock()

	go func() {
		for {
			select {
			case <-hs.sub.ctx.Done():
				return
			case m := <-hs.queue:
				_ = handler(m)
			}
		}
	}()
	return hs.sub, nil
}

// close Hub 可能被多个客户端共享，单个客户端关闭不影响 Hub
func (h *Hub) close() error {
	return nil
}

// matchSubject 判断 subject 是否匹配 pattern
func matchSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, tok := range pt {
		if tok == ">" {
			return i < len(st)
		}
		if i >= len(st) {
			return false
		}
		if tok != "*" && tok != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
