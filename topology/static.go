package topology

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// listenerSet 成员监听器集合，通知时复制快照后在锁外回调
type listenerSet struct {
	mu        sync.Mutex
	listeners []Listener
}

func (s *listenerSet) add(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.listeners, l) {
		s.listeners = append(s.listeners, l)
	}
}

func (s *listenerSet) remove(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = slices.DeleteFunc(slices.Clone(s.listeners), func(x Listener) bool { return x == l })
}

func (s *listenerSet) snapshot() []Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.listeners)
}

func (s *listenerSet) joined(name string) {
	for _, l := range s.snapshot() {
		l.OnJoin(name)
	}
}

func (s *listenerSet) left(name string) {
	for _, l := range s.snapshot() {
		l.OnLeave(name)
	}
}

// StaticGroup 进程内共享的域，成员加入与离开会同步通知其他成员
type StaticGroup struct {
	mu      sync.Mutex
	members map[string]*StaticMembership
}

func NewStaticGroup() *StaticGroup {
	return &StaticGroup{members: make(map[string]*StaticMembership)}
}

// Member 返回名为 name 的成员，尚未 Join
func (g *StaticGroup) Member(name string) *StaticMembership {
	return &StaticMembership{group: g, name: name}
}

func (g *StaticGroup) names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.members))
	for n := range g.members {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// StaticMembership StaticGroup 中的一个成员
type StaticMembership struct {
	group     *StaticGroup
	name      string
	listeners listenerSet
}

var _ Membership = (*StaticMembership)(nil)

// Join 新成员收到已有成员的 OnJoin，已有成员收到新成员的 OnJoin
func (m *StaticMembership) Join(_ context.Context) error {
	g := m.group
	g.mu.Lock()
	if _, exists := g.members[m.name]; exists {
		g.mu.Unlock()
		return ErrAlreadyJoined
	}
	others := make([]*StaticMembership, 0, len(g.members))
	for _, o := range g.members {
		others = append(others, o)
	}
	g.members[m.name] = m
	g.mu.Unlock()

	slices.SortFunc(others, func(a, b *StaticMembership) int { return cmp.Compare(a.name, b.name) })
	for _, o := range others {
		m.listeners.joined(o.name)
		o.listeners.joined(m.name)
	}
	return nil
}

func (m *StaticMembership) Leave(_ context.Context) error {
	g := m.group
	g.mu.Lock()
	if g.members[m.name] != m {
		g.mu.Unlock()
		return nil
	}
	delete(g.members, m.name)
	others := make([]*StaticMembership, 0, len(g.members))
	for _, o := range g.members {
		others = append(others, o)
	}
	g.mu.Unlock()

	for _, o := range others {
		o.listeners.left(m.name)
	}
	return nil
}

func (m *StaticMembership) Members() []string { return m.group.names() }

func (m *StaticMembership) Register(l Listener) { m.listeners.add(l) }

func (m *StaticMembership) Deregister(l Listener) { m.listeners.remove(l) }
