package topology

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/connector"
	"github.com/ceyewan/fabric/xerrors"
)

// EtcdConfig etcd 成员关系配置
type EtcdConfig struct {
	// Namespace key 前缀，默认 "/fabric"
	Namespace string `mapstructure:"namespace"`
	// Domain 域标识（域 URI 的 authority），必填
	Domain string `mapstructure:"domain"`
	// TTL 成员租约时长，默认 10s，最小 1s
	TTL time.Duration `mapstructure:"ttl"`
	// RetryInterval watch 中断后的重试间隔，默认 1s
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

func (c *EtcdConfig) setDefaults() {
	if c.Namespace == "" {
		c.Namespace = "/fabric"
	}
	if c.TTL == 0 {
		c.TTL = 10 * time.Second
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = time.Second
	}
}

func (c *EtcdConfig) validate() error {
	if c.Domain == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "topology: etcd domain is required")
	}
	if c.TTL < time.Second {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "topology: lease ttl %s below 1s", c.TTL)
	}
	return nil
}

// EtcdMembership 以租约 key "<namespace>/<domain>/runtimes/<name>" 表示在线成员。
// 加入后持续续约并 watch 前缀，把成员变化转换为 OnJoin / OnLeave；
// watch 因 compaction 失效时重新全量读取并与本地成员集合做差。
type EtcdMembership struct {
	conn   connector.EtcdConnector
	cfg    EtcdConfig
	name   string
	logger clog.Logger

	listeners listenerSet

	mu      sync.RWMutex
	members map[string]struct{}
	leaseID clientv3.LeaseID
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ Membership = (*EtcdMembership)(nil)

// NewEtcdMembership 借用 conn 的连接，不负责关闭
func NewEtcdMembership(conn connector.EtcdConnector, name string, cfg *EtcdConfig, opts ...Option) (*EtcdMembership, error) {
	if conn == nil || cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "topology: etcd connector and config are required")
	}
	if name == "" || strings.Contains(name, "/") {
		return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "topology: invalid runtime name %q", name)
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &EtcdMembership{
		conn:    conn,
		cfg:     c,
		name:    name,
		logger:  o.logger.With(clog.String("runtime", name), clog.String("domain", c.Domain)),
		members: make(map[string]struct{}),
	}, nil
}

func (m *EtcdMembership) prefix() string {
	return m.cfg.Namespace + "/" + m.cfg.Domain + "/runtimes/"
}

func (m *EtcdMembership) Join(ctx context.Context) error {
	client := m.conn.GetClient()
	if client == nil {
		return connector.ErrNotConnected
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return ErrAlreadyJoined
	}

	lease, err := client.Grant(ctx, int64(m.cfg.TTL.Seconds()))
	if err != nil {
		return xerrors.Wrap(err, "topology: grant lease")
	}
	if _, err := client.Put(ctx, m.prefix()+m.name, m.name, clientv3.WithLease(lease.ID)); err != nil {
		m.revoke(ctx, client, lease.ID)
		return xerrors.Wrap(err, "topology: put member key")
	}

	bg, cancel := context.WithCancel(context.Background())
	keepAlive, err := client.KeepAlive(bg, lease.ID)
	if err != nil {
		cancel()
		m.revoke(ctx, client, lease.ID)
		return xerrors.Wrap(err, "topology: keepalive")
	}

	resp, err := client.Get(ctx, m.prefix(), clientv3.WithPrefix())
	if err != nil {
		cancel()
		m.revoke(ctx, client, lease.ID)
		return xerrors.Wrap(err, "topology: list members")
	}
	m.leaseID = lease.ID
	m.cancel = cancel
	initial := m.namesFrom(resp.Kvs)
	initial[m.name] = struct{}{}
	m.members = initial

	m.wg.Add(2)
	go m.monitorKeepAlive(bg, lease.ID, keepAlive)
	go m.watch(bg, client, resp.Header.Revision, initial)

	m.logger.Info("joined domain", clog.Duration("ttl", m.cfg.TTL), clog.Int("members", len(initial)))
	return nil
}

func (m *EtcdMembership) revoke(ctx context.Context, client *clientv3.Client, id clientv3.LeaseID) {
	if _, err := client.Revoke(ctx, id); err != nil {
		m.logger.Warn("failed to revoke lease", clog.Int64("lease_id", int64(id)), clog.Error(err))
	}
}

// Leave 撤销租约后成员 key 被删除，其他运行时收到 OnLeave
func (m *EtcdMembership) Leave(ctx context.Context) error {
	m.mu.Lock()
	cancel, leaseID := m.cancel, m.leaseID
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	m.wg.Wait()

	m.mu.Lock()
	m.members = make(map[string]struct{})
	m.mu.Unlock()

	if client := m.conn.GetClient(); client != nil {
		if _, err := client.Revoke(ctx, leaseID); err != nil {
			return xerrors.Wrap(err, "topology: revoke lease")
		}
	}
	m.logger.Info("left domain")
	return nil
}

func (m *EtcdMembership) Members() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.members))
}

func (m *EtcdMembership) Register(l Listener) { m.listeners.add(l) }

func (m *EtcdMembership) Deregister(l Listener) { m.listeners.remove(l) }

func (m *EtcdMembership) namesFrom(kvs []*mvccpb.KeyValue) map[string]struct{} {
	names := make(map[string]struct{}, len(kvs))
	for _, kv := range kvs {
		names[strings.TrimPrefix(string(kv.Key), m.prefix())] = struct{}{}
	}
	return names
}

// apply 用新的成员集合替换旧集合并通知差异，自身不通知
func (m *EtcdMembership) apply(next map[string]struct{}) {
	m.mu.Lock()
	prev := m.members
	m.members = next
	m.mu.Unlock()

	for name := range next {
		if _, ok := prev[name]; !ok && name != m.name {
			m.logger.Debug("member joined", clog.String("member", name))
			m.listeners.joined(name)
		}
	}
	for name := range prev {
		if _, ok := next[name]; !ok && name != m.name {
			m.logger.Debug("member left", clog.String("member", name))
			m.listeners.left(name)
		}
	}
}

func (m *EtcdMembership) memberUp(name string) {
	m.mu.RLock()
	next := maps.Clone(m.members)
	m.mu.RUnlock()
	next[name] = struct{}{}
	m.apply(next)
}

func (m *EtcdMembership) memberDown(name string) {
	m.mu.RLock()
	next := maps.Clone(m.members)
	m.mu.RUnlock()
	delete(next, name)
	m.apply(next)
}

func (m *EtcdMembership) watch(ctx context.Context, client *clientv3.Client, rev int64, initial map[string]struct{}) {
	defer m.wg.Done()
	for _, name := range slices.Sorted(maps.Keys(initial)) {
		if name != m.name {
			m.listeners.joined(name)
		}
	}

	prefix := m.prefix()
	for {
		watchCh := client.Watch(ctx, prefix, clientv3.WithPrefix(), clientv3.WithRev(rev+1))
		m.logger.Debug("watch started", clog.Int64("from_revision", rev+1))

	events:
		for {
			select {
			case <-ctx.Done():
				return
			case resp, ok := <-watchCh:
				if !ok {
					m.logger.Warn("watch channel closed, will retry", clog.Duration("retry_after", m.cfg.RetryInterval))
					break events
				}
				if err := resp.Err(); err != nil {
					if xerrors.Is(err, rpctypes.ErrCompacted) {
						m.logger.Warn("watch revision compacted, resyncing")
						if latest, ok := m.resync(ctx, client); ok {
							rev = latest
						}
						break events
					}
					m.logger.Error("watch error, will retry", clog.Error(err))
					break events
				}
				for _, ev := range resp.Events {
					rev = max(rev, ev.Kv.ModRevision)
					name := strings.TrimPrefix(string(ev.Kv.Key), prefix)
					switch ev.Type {
					case clientv3.EventTypePut:
						m.memberUp(name)
					case clientv3.EventTypeDelete:
						m.memberDown(name)
					}
				}
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.RetryInterval):
		}
	}
}

// resync 全量读取成员并与本地集合做差，返回读取时的 revision
func (m *EtcdMembership) resync(ctx context.Context, client *clientv3.Client) (int64, bool) {
	resp, err := client.Get(ctx, m.prefix(), clientv3.WithPrefix())
	if err != nil {
		m.logger.Error("failed to resync members", clog.Error(err))
		return 0, false
	}
	m.apply(m.namesFrom(resp.Kvs))
	return resp.Header.Revision, true
}

func (m *EtcdMembership) monitorKeepAlive(ctx context.Context, leaseID clientv3.LeaseID, ch <-chan *clientv3.LeaseKeepAliveResponse) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				// 不自动重新加入：租约过期说明其他成员已经把本运行时视为离开
				m.logger.Error("keepalive channel closed, lease expired or connection lost",
					clog.Int64("lease_id", int64(leaseID)))
				return
			}
			m.logger.Debug("keepalive renewed", clog.Int64("lease_id", int64(resp.ID)), clog.Int64("ttl", resp.TTL))
		}
	}
}
