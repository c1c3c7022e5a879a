// Package generator 定义各类生成器的接口与按类型查找的注册表。
//
// 组件生成器按 model.ImplementationKind、绑定生成器按 model.BindingKind、
// 资源生成器按 model.ResourceKind 注册，启动时注册、运行期只读查找。
// 未注册的类型返回 ErrGeneratorNotFound。
//
// 基本使用：
//
//	reg := generator.NewRegistry()
//	_ = reg.RegisterComponentGenerator(component.KindGo, component.NewGoGenerator())
//	_ = reg.RegisterBindingGenerator(binding.KindNATS, binding.NewNATSGenerator())
//
//	gen, err := reg.ComponentGenerator(comp.Definition.Implementation.ImplementationKind())
package generator

import "github.com/ceyewan/fabric/model"

// ComponentGenerator 为某类组件实现生成连线两端的描述
type ComponentGenerator interface {
	GenerateSource(ref *model.Reference) (*model.WireSource, error)
	GenerateTarget(svc *model.Service) (*model.WireTarget, error)
	GenerateCallbackSource(svc *model.Service) (*model.WireSource, error)
	GenerateResourceSource(res *model.ResourceReference) (*model.WireSource, error)
	GenerateConnectionSource(producer *model.Producer) (*model.ConnectionSource, error)
	GenerateConnectionTarget(consumer *model.Consumer) (*model.ConnectionTarget, error)
}

// WireBindingGenerator 为某类传输绑定生成连线端点描述
type WireBindingGenerator interface {
	// GenerateSource 绑定作为源端（传输入站）
	GenerateSource(b *model.Binding, contract *model.ServiceContract, ops []*model.Operation) (*model.WireSource, error)
	// GenerateTarget 绑定作为目标端（传输出站）
	GenerateTarget(b *model.Binding, contract *model.ServiceContract, ops []*model.Operation) (*model.WireTarget, error)
	// GenerateServiceBindingTarget 远程连线中以服务侧绑定为目标
	GenerateServiceBindingTarget(b *model.Binding, contract *model.ServiceContract, ops []*model.Operation) (*model.WireTarget, error)
}

// ResourceReferenceGenerator 为某类资源生成目标端描述
type ResourceReferenceGenerator interface {
	GenerateWireTarget(res *model.ResourceReference) (*model.WireTarget, error)
}

// InterceptorGenerator 策略挂钩：按操作返回需要附加的拦截器，可返回 nil
type InterceptorGenerator interface {
	Generate(op *model.Operation) []model.Interceptor
}

// InterceptorFunc 函数形式的 InterceptorGenerator
type InterceptorFunc func(op *model.Operation) []model.Interceptor

func (f InterceptorFunc) Generate(op *model.Operation) []model.Interceptor { return f(op) }
