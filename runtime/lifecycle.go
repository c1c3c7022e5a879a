package runtime

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/xerrors"
)

// 启动阶段，数值越小越先启动、越后停止
const (
	PhaseConnector = 0  // 外部连接
	PhaseTransport = 10 // 消息客户端与拓扑
	PhaseComponent = 20 // 地址缓存等内部组件
	PhaseService   = 30 // 加入域、指标服务
)

// Lifecycle 可由 LifecycleManager 管理的对象
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Phase() int
}

// LifecycleItem 已注册的对象
type LifecycleItem struct {
	Name     string
	Instance Lifecycle
}

// LifecycleManager 按阶段启动，按逆序停止。
// 启动失败时已启动的对象会被逆序停止
type LifecycleManager struct {
	logger  clog.Logger
	items   []LifecycleItem
	started []LifecycleItem
}

func NewLifecycleManager(logger clog.Logger) *LifecycleManager {
	if logger == nil {
		logger = clog.Discard()
	}
	return &LifecycleManager{logger: logger}
}

func (m *LifecycleManager) Register(name string, instance Lifecycle) {
	m.items = append(m.items, LifecycleItem{Name: name, Instance: instance})
}

// StartAll 同一阶段内保持注册顺序
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	slices.SortStableFunc(m.items, func(a, b LifecycleItem) int {
		return cmp.Compare(a.Instance.Phase(), b.Instance.Phase())
	})

	for _, item := range m.items {
		if err := item.Instance.Start(ctx); err != nil {
			m.StopAll(ctx)
			return &LifecycleError{Phase: item.Instance.Phase(), Name: item.Name, Cause: err}
		}
		m.started = append(m.started, item)
		m.logger.Debug("lifecycle started", clog.String("name", item.Name), clog.Int("phase", item.Instance.Phase()))
	}
	return nil
}

// StopAll 逆序停止已启动的对象，单个失败不影响其他对象
func (m *LifecycleManager) StopAll(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		item := m.started[i]
		if err := item.Instance.Stop(ctx); err != nil {
			m.logger.Error("lifecycle stop failed", clog.String("name", item.Name), clog.Error(err))
			errs = append(errs, &LifecycleError{Phase: item.Instance.Phase(), Name: item.Name, Cause: err})
		}
	}
	m.started = nil
	return xerrors.Combine(errs...)
}

func (m *LifecycleManager) Items() []LifecycleItem {
	return slices.Clone(m.items)
}

// LifecycleError 生命周期错误
type LifecycleError struct {
	Phase int
	Name  string
	Cause error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("lifecycle error in phase %d [%s]: %v", e.Phase, e.Name, e.Cause)
}

func (e *LifecycleError) Unwrap() error {
	return e.Cause
}

// hook 用函数实现 Lifecycle，nil 函数视为空操作
type hook struct {
	phase int
	start func(ctx context.Context) error
	stop  func(ctx context.Context) error
}

func (h *hook) Start(ctx context.Context) error {
	if h.start == nil {
		return nil
	}
	return h.start(ctx)
}

func (h *hook) Stop(ctx context.Context) error {
	if h.stop == nil {
		return nil
	}
	return h.stop(ctx)
}

func (h *hook) Phase() int { return h.phase }
