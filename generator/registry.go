package generator

import (
	"sync"

	"github.com/ceyewan/fabric/model"
	"github.com/ceyewan/fabric/xerrors"
)

// Registry 生成器注册表，并发安全
type Registry struct {
	mu           sync.RWMutex
	components   map[model.ImplementationKind]ComponentGenerator
	bindings     map[model.BindingKind]WireBindingGenerator
	resources    map[model.ResourceKind]ResourceReferenceGenerator
	interceptors []InterceptorGenerator
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		components: make(map[model.ImplementationKind]ComponentGenerator),
		bindings:   make(map[model.BindingKind]WireBindingGenerator),
		resources:  make(map[model.ResourceKind]ResourceReferenceGenerator),
	}
}

func register[K ~string, V any](mu *sync.RWMutex, m map[K]V, kind K, g V) error {
	if kind == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "generator kind is empty")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, ok := m[kind]; ok {
		return xerrors.Wrapf(ErrDuplicateGenerator, "kind %q", kind)
	}
	m[kind] = g
	return nil
}

func (r *Registry) RegisterComponentGenerator(kind model.ImplementationKind, g ComponentGenerator) error {
	return register(&r.mu, r.components, kind, g)
}

func (r *Registry) RegisterBindingGenerator(kind model.BindingKind, g WireBindingGenerator) error {
	return register(&r.mu, r.bindings, kind, g)
}

func (r *Registry) RegisterResourceGenerator(kind model.ResourceKind, g ResourceReferenceGenerator) error {
	return register(&r.mu, r.resources, kind, g)
}

// RegisterInterceptorGenerator 按注册顺序对每个操作调用
func (r *Registry) RegisterInterceptorGenerator(g InterceptorGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interceptors = append(r.interceptors, g)
}

func (r *Registry) ComponentGenerator(kind model.ImplementationKind) (ComponentGenerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g, ok := r.components[kind]; ok {
		return g, nil
	}
	return nil, notFound("component", string(kind))
}

func (r *Registry) BindingGenerator(kind model.BindingKind) (WireBindingGenerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g, ok := r.bindings[kind]; ok {
		return g, nil
	}
	return nil, notFound("binding", string(kind))
}

func (r *Registry) ResourceGenerator(kind model.ResourceKind) (ResourceReferenceGenerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g, ok := r.resources[kind]; ok {
		return g, nil
	}
	return nil, notFound("resource", string(kind))
}

// Interceptors 返回拦截器生成器的快照
func (r *Registry) Interceptors() []InterceptorGenerator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]InterceptorGenerator, len(r.interceptors))
	copy(out, r.interceptors)
	return out
}

// ForComponent 组件实现对应的生成器
func (r *Registry) ForComponent(c *model.Component) (ComponentGenerator, error) {
	if c == nil || c.Definition == nil || c.Definition.Implementation == nil {
		uri := ""
		if c != nil {
			uri = c.URI
		}
		return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrGeneratorNotFound, "component %s has no implementation", uri)
	}
	return r.ComponentGenerator(c.Definition.Implementation.ImplementationKind())
}

// ForBinding 绑定定义对应的生成器
func (r *Registry) ForBinding(b *model.Binding) (WireBindingGenerator, error) {
	if b == nil || b.Definition == nil {
		return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrGeneratorNotFound, "binding has no definition")
	}
	return r.BindingGenerator(b.Kind())
}

// ForResource 资源定义对应的生成器
func (r *Registry) ForResource(res *model.ResourceReference) (ResourceReferenceGenerator, error) {
	if res == nil || res.Definition == nil {
		return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrGeneratorNotFound, "resource reference has no definition")
	}
	return r.ResourceGenerator(res.Definition.ResourceKind())
}
