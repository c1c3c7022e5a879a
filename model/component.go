package model

import "math"

// UnsetOrder 组件定义与组件类型都未指定顺序时的取值
const UnsetOrder = math.MinInt

// ImplementationKind 组件实现类型，用于查找组件生成器
type ImplementationKind string

// Implementation 组件实现，内容对生成器之外的代码不透明
type Implementation interface {
	ImplementationKind() ImplementationKind
}

// ComponentType 组件类型模板，为实例定义提供 key / order 的缺省值，nil 表示未设置
type ComponentType struct {
	Key   *string
	Order *int
}

// ComponentDefinition 组件实例定义
type ComponentDefinition struct {
	Name            string
	Key             *string
	Order           int
	ContributionURI string
	Implementation  Implementation
	ComponentType   *ComponentType
}

// NewComponentDefinition 返回未设置 key / order 的定义
func NewComponentDefinition(name, contributionURI string, impl Implementation) *ComponentDefinition {
	return &ComponentDefinition{
		Name:            name,
		Order:           UnsetOrder,
		ContributionURI: contributionURI,
		Implementation:  impl,
	}
}

// Component 组合树中的节点
type Component struct {
	URI        string
	Zone       string
	Definition *ComponentDefinition
	Parent     *Component

	Services   []*Service
	References []*Reference
	Resources  []*ResourceReference
	Producers  []*Producer
	Consumers  []*Consumer
	Children   []*Component
}

// ContributionURI 组件所属贡献包的标识，即物理描述上的 ClassLoaderID
func (c *Component) ContributionURI() string {
	if c == nil || c.Definition == nil {
		return ""
	}
	return c.Definition.ContributionURI
}

// Service 按名称查找服务
func (c *Component) Service(name string) *Service {
	for _, s := range c.Services {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// ServiceByInterface 按契约接口名查找服务，按声明顺序取第一个
func (c *Component) ServiceByInterface(interfaceName string) *Service {
	for _, s := range c.Services {
		if s.Contract != nil && s.Contract.InterfaceName == interfaceName {
			return s
		}
	}
	return nil
}

// Reference 按名称查找引用
func (c *Component) Reference(name string) *Reference {
	for _, r := range c.References {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Key 分派键：实例定义优先，其次组件类型，都未设置返回空串
func (c *Component) Key() string {
	d := c.Definition
	if d == nil {
		return ""
	}
	if d.Key != nil {
		return *d.Key
	}
	if d.ComponentType != nil && d.ComponentType.Key != nil {
		return *d.ComponentType.Key
	}
	return ""
}

// Order 多目标排序值：实例定义优先，其次组件类型，都未设置为 UnsetOrder
func (c *Component) Order() int {
	d := c.Definition
	if d == nil {
		return UnsetOrder
	}
	if d.Order != UnsetOrder {
		return d.Order
	}
	if d.ComponentType != nil && d.ComponentType.Order != nil {
		return *d.ComponentType.Order
	}
	return UnsetOrder
}
