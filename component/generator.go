// Package component 提供内置的 go 组件生成器。
//
// go 组件的实现由宿主按 GoImplementation.Type 注册的工厂创建，服务与引用都在同一进程内，
// 因此生成的两端描述都可优化为直接调用。
//
// 基本使用：
//
//	_ = registry.RegisterComponentGenerator(component.KindGo, component.NewGoGenerator())
package component

import (
	"github.com/ceyewan/fabric/model"
	"github.com/ceyewan/fabric/xerrors"
)

// KindGo go 组件实现类型
const KindGo model.ImplementationKind = "go"

// ErrNilEndpoint 生成描述时端点为 nil
var ErrNilEndpoint = xerrors.New("component: endpoint is nil")

// GoImplementation go 组件实现
type GoImplementation struct {
	// Type 宿主中注册的工厂名
	Type string `yaml:"type"`
}

func (GoImplementation) ImplementationKind() model.ImplementationKind { return KindGo }

// GoGenerator go 组件生成器，无状态
type GoGenerator struct{}

func NewGoGenerator() *GoGenerator {
	return &GoGenerator{}
}

func (g *GoGenerator) GenerateSource(ref *model.Reference) (*model.WireSource, error) {
	if ref == nil {
		return nil, ErrNilEndpoint
	}
	props := properties(ref.Component)
	props["reference"] = ref.Name
	if ref.Multiplicity != "" {
		props["multiplicity"] = string(ref.Multiplicity)
	}
	return &model.WireSource{URI: ref.URI, Kind: string(KindGo), Properties: props, Optimizable: true}, nil
}

func (g *GoGenerator) GenerateTarget(svc *model.Service) (*model.WireTarget, error) {
	if svc == nil {
		return nil, ErrNilEndpoint
	}
	props := properties(svc.LeafComponent())
	props["service"] = svc.Name
	return &model.WireTarget{URI: svc.URI, Kind: string(KindGo), Properties: props, Optimizable: true}, nil
}

// GenerateCallbackSource 回调调用从服务实现发出，源端指向服务本身
func (g *GoGenerator) GenerateCallbackSource(svc *model.Service) (*model.WireSource, error) {
	if svc == nil {
		return nil, ErrNilEndpoint
	}
	props := properties(svc.LeafComponent())
	props["service"] = svc.Name
	if svc.Contract != nil && svc.Contract.Callback != nil {
		props["callback"] = svc.Contract.Callback.InterfaceName
	}
	return &model.WireSource{URI: svc.URI, Kind: string(KindGo), Properties: props, Optimizable: true}, nil
}

func (g *GoGenerator) GenerateResourceSource(res *model.ResourceReference) (*model.WireSource, error) {
	if res == nil {
		return nil, ErrNilEndpoint
	}
	props := properties(res.Component)
	props["resource"] = res.Name
	return &model.WireSource{URI: res.URI, Kind: string(KindGo), Properties: props, Optimizable: true}, nil
}

func (g *GoGenerator) GenerateConnectionSource(p *model.Producer) (*model.ConnectionSource, error) {
	if p == nil {
		return nil, ErrNilEndpoint
	}
	props := properties(p.Component)
	props["producer"] = p.Name
	return &model.ConnectionSource{URI: p.URI, Kind: string(KindGo), Properties: props}, nil
}

func (g *GoGenerator) GenerateConnectionTarget(c *model.Consumer) (*model.ConnectionTarget, error) {
	if c == nil {
		return nil, ErrNilEndpoint
	}
	props := properties(c.Component)
	props["consumer"] = c.Name
	return &model.ConnectionTarget{URI: c.URI, Kind: string(KindGo), Properties: props}, nil
}

// properties 带上组件工厂名，非 go 实现时为空
func properties(c *model.Component) map[string]any {
	props := make(map[string]any, 3)
	if c == nil || c.Definition == nil {
		return props
	}
	props["component"] = c.URI
	if impl, ok := c.Definition.Implementation.(GoImplementation); ok {
		props["type"] = impl.Type
	}
	return props
}
