package model

// BindingKind 传输绑定类型，用于查找绑定生成器
type BindingKind string

// BindingDefinition 绑定配置，内容对核心不透明
type BindingDefinition interface {
	Name() string
	BindingKind() BindingKind
}

// Bindable 可以挂载绑定的端点，只有 *Service 与 *Reference 实现
type Bindable interface {
	ParentComponent() *Component
	bindable()
}

// Binding 挂载在服务或引用上的传输绑定
type Binding struct {
	URI        string
	Definition BindingDefinition
	Parent     Bindable
}

// Kind 绑定类型，Definition 为空时返回空串
func (b *Binding) Kind() BindingKind {
	if b == nil || b.Definition == nil {
		return ""
	}
	return b.Definition.BindingKind()
}

// Service 组件暴露的服务
type Service struct {
	URI       string
	Name      string
	Contract  *ServiceContract
	Component *Component

	// Promotes 非空时本服务由组合体提升而来，指向被提升的内层服务
	Promotes *Service

	Bindings         []*Binding
	CallbackBindings []*Binding
}

func (s *Service) ParentComponent() *Component { return s.Component }
func (s *Service) bindable()                   {}

// Leaf 沿提升链走到最内层的具体服务
func (s *Service) Leaf() *Service {
	leaf := s
	for leaf.Promotes != nil {
		leaf = leaf.Promotes
	}
	return leaf
}

// LeafComponent 最内层服务所在的组件
func (s *Service) LeafComponent() *Component {
	return s.Leaf().Component
}

func (s *Service) Operations() []*Operation {
	if s.Contract == nil {
		return nil
	}
	return s.Contract.Operations
}

func (s *Service) CallbackOperations() []*Operation {
	return s.Contract.CallbackOperations()
}

// Multiplicity 引用的目标数量约束
type Multiplicity string

const (
	MultiplicityOneOne  Multiplicity = "1..1"
	MultiplicityZeroOne Multiplicity = "0..1"
	MultiplicityOneN    Multiplicity = "1..n"
	MultiplicityZeroN   Multiplicity = "0..n"
)

// Reference 组件依赖的服务
type Reference struct {
	URI          string
	Name         string
	Contract     *ServiceContract
	Component    *Component
	Multiplicity Multiplicity

	Bindings         []*Binding
	CallbackBindings []*Binding
}

func (r *Reference) ParentComponent() *Component { return r.Component }
func (r *Reference) bindable()                   {}

func (r *Reference) Operations() []*Operation {
	if r.Contract == nil {
		return nil
	}
	return r.Contract.Operations
}

func (r *Reference) CallbackOperations() []*Operation {
	return r.Contract.CallbackOperations()
}

// Wire 引用到服务的逻辑连线，端点不在本地时可携带两端的绑定
type Wire struct {
	Source        *Reference
	Target        *Service
	SourceBinding *Binding
	TargetBinding *Binding
}

// ResourceKind 资源类型，用于查找资源生成器
type ResourceKind string

// ResourceDefinition 资源声明
type ResourceDefinition interface {
	ResourceKind() ResourceKind
}

// ResourceReference 组件对环境资源（缓存、连接池等）的引用
type ResourceReference struct {
	URI        string
	Name       string
	Component  *Component
	Definition ResourceDefinition
	Contract   *ServiceContract
}

func (r *ResourceReference) Operations() []*Operation {
	if r.Contract == nil {
		return nil
	}
	return r.Contract.Operations
}
