// Package wire 把逻辑连线解析为物理连线描述。
//
// 生成分两步：先按端点是否本地选择策略，再调用该策略的生成函数。
// 本地连线使用提升链最内层（leaf）的服务与组件，避免多余的数据转换；
// 远程连线的目标端由服务侧绑定的生成器产生，服务端点假定已独立部署。
//
// 每条生成路径都会在两端描述上设置所属贡献包标识（ClassLoaderID）。
// 组合模型错误返回带 xerrors.CodeGeneration 的错误；绑定挂在错误类型的端点上属于
// 程序缺陷，直接 panic。
//
// Generator 无可变状态，可并发调用。
//
// 基本使用：
//
//	gen, _ := wire.New(registry, contract.NewMatcher(), wire.WithLogger(logger))
//	pw, err := gen.GenerateWire(w)
package wire

import (
	"context"
	"strconv"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/contract"
	"github.com/ceyewan/fabric/generator"
	"github.com/ceyewan/fabric/metrics"
	"github.com/ceyewan/fabric/model"
	"github.com/ceyewan/fabric/xerrors"
)

const (
	// MetricGeneratedTotal 生成的物理连线数，标签 path / optimizable
	MetricGeneratedTotal = "fabric_wire_generated_total"
	// MetricGenerationErrorsTotal 生成失败次数，标签 path
	MetricGenerationErrorsTotal = "fabric_wire_generation_errors_total"
)

// 生成路径，用于日志与指标
const (
	pathLocal                  = "local"
	pathRemote                 = "remote"
	pathLocalCallback          = "local_callback"
	pathRemoteCallback         = "remote_callback"
	pathBoundService           = "bound_service"
	pathBoundServiceCallback   = "bound_service_callback"
	pathBoundReference         = "bound_reference"
	pathBoundReferenceCallback = "bound_reference_callback"
	pathResource               = "resource"
)

type strategy int

const (
	strategyLocal strategy = iota
	strategyRemote
)

// selectStrategy 两端同 zone 且都没有绑定时为本地连线
func selectStrategy(w *model.Wire) strategy {
	if w.Source.Component.Zone == w.Target.Component.Zone && w.SourceBinding == nil && w.TargetBinding == nil {
		return strategyLocal
	}
	return strategyRemote
}

// Generator 物理连线生成器
type Generator struct {
	registry *generator.Registry
	matcher  contract.Matcher
	ops      *OperationGenerator
	logger   clog.Logger

	generated metrics.Counter
	failures  metrics.Counter
}

// New 创建生成器
func New(registry *generator.Registry, matcher contract.Matcher, opts ...Option) (*Generator, error) {
	if registry == nil || matcher == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "wire: registry and matcher are required")
	}
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	if o.operations == nil {
		o.operations = NewOperationGenerator(registry)
	}

	g := &Generator{registry: registry, matcher: matcher, ops: o.operations, logger: o.logger}
	var err error
	if g.generated, err = o.meter.Counter(MetricGeneratedTotal, "Physical wires generated"); err != nil {
		return nil, err
	}
	if g.failures, err = o.meter.Counter(MetricGenerationErrorsTotal, "Wire generation failures"); err != nil {
		return nil, err
	}
	return g, nil
}

// GenerateWire 为引用到服务的连线生成物理连线
func (g *Generator) GenerateWire(w *model.Wire) (*model.PhysicalWire, error) {
	if selectStrategy(w) == strategyLocal {
		return g.record(pathLocal, w.Source.URI)(g.localWire(w))
	}
	return g.record(pathRemote, w.Source.URI)(g.remoteWire(w))
}

// GenerateWireCallback 为双向契约的回调方向生成物理连线
func (g *Generator) GenerateWireCallback(w *model.Wire) (*model.PhysicalWire, error) {
	if selectStrategy(w) == strategyLocal {
		return g.record(pathLocalCallback, w.Source.URI)(g.localWireCallback(w))
	}
	return g.record(pathRemoteCallback, w.Source.URI)(g.remoteWireCallback(w))
}

// GenerateBoundService 服务直接暴露在传输上：源端为绑定，目标端为 leaf 组件
func (g *Generator) GenerateBoundService(b *model.Binding, callbackURI string) (*model.PhysicalWire, error) {
	return g.record(pathBoundService, b.URI)(g.boundService(b, callbackURI))
}

// GenerateBoundServiceCallback 绑定服务的回调方向
func (g *Generator) GenerateBoundServiceCallback(b *model.Binding) (*model.PhysicalWire, error) {
	return g.record(pathBoundServiceCallback, b.URI)(g.boundServiceCallback(b))
}

// GenerateBoundReference 引用直接绑定到传输：源端为组件，目标端为绑定
func (g *Generator) GenerateBoundReference(b *model.Binding) (*model.PhysicalWire, error) {
	return g.record(pathBoundReference, b.URI)(g.boundReference(b))
}

// GenerateBoundReferenceCallback 绑定引用的回调方向
func (g *Generator) GenerateBoundReferenceCallback(b *model.Binding) (*model.PhysicalWire, error) {
	return g.record(pathBoundReferenceCallback, b.URI)(g.boundReferenceCallback(b))
}

// GenerateResource 组件到环境资源的连线，目标端由资源类型对应的生成器产生
func (g *Generator) GenerateResource(res *model.ResourceReference) (*model.PhysicalWire, error) {
	return g.record(pathResource, res.URI)(g.resource(res))
}

func (g *Generator) record(path, uri string) func(*model.PhysicalWire, error) (*model.PhysicalWire, error) {
	return func(pw *model.PhysicalWire, err error) (*model.PhysicalWire, error) {
		ctx := context.Background()
		if err != nil {
			g.failures.Inc(ctx, metrics.L("path", path))
			g.logger.Debug("wire generation failed", clog.String("path", path), clog.String("uri", uri), clog.Error(err))
			return nil, err
		}
		g.generated.Inc(ctx, metrics.L("path", path), metrics.L("optimizable", strconv.FormatBool(pw.Optimizable)))
		g.logger.Debug("wire generated",
			clog.String("path", path),
			clog.String("uri", uri),
			clog.String("source", pw.Source.URI),
			clog.String("target", pw.Target.URI),
			clog.Int("operations", len(pw.Operations)),
			clog.Bool("optimizable", pw.Optimizable))
		return pw, nil
	}
}

func (g *Generator) localWire(w *model.Wire) (*model.PhysicalWire, error) {
	ref := w.Source
	svc := w.Target.Leaf()
	source := ref.Component
	target := svc.Component

	src, err := g.componentSource(source, ref)
	if err != nil {
		return nil, err
	}
	src.Key = target.Key()
	src.Order = target.Order()

	tgt, err := g.componentTarget(target, svc)
	if err != nil {
		return nil, err
	}
	if cb := svc.Contract.Callback; cb != nil {
		if tgt.CallbackURI, err = g.callbackURI(source, cb, ref); err != nil {
			return nil, err
		}
	}

	ops, err := g.ops.GenerateMatched(ref.Operations(), svc.Operations(), false)
	if err != nil {
		return nil, xerrors.Wrapf(err, "reference %s", ref.URI)
	}
	return &model.PhysicalWire{
		Source:      src,
		Target:      tgt,
		Operations:  ops,
		Optimizable: src.Optimizable && tgt.Optimizable && checkOptimization(ref.Contract, ops),
	}, nil
}

func (g *Generator) remoteWire(w *model.Wire) (*model.PhysicalWire, error) {
	ref := w.Source
	svc := w.Target
	source := ref.Component

	src, err := g.componentSource(source, ref)
	if err != nil {
		return nil, err
	}
	src.Key = source.Key()
	src.Order = source.Order()

	if w.TargetBinding == nil {
		return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrTargetBindingNotSet,
			"wire from reference %s to service %s", ref.URI, svc.URI)
	}
	bg, err := g.registry.ForBinding(w.TargetBinding)
	if err != nil {
		return nil, err
	}
	tgt, err := bg.GenerateServiceBindingTarget(w.TargetBinding, svc.Contract, ref.Operations())
	if err != nil {
		return nil, err
	}
	tgt.ClassLoaderID = source.ContributionURI()
	if cb := svc.Contract.Callback; cb != nil {
		if tgt.CallbackURI, err = g.callbackURI(source, cb, ref); err != nil {
			return nil, err
		}
	}

	var ops []*model.PhysicalOperation
	if ref.Contract.Kind == svc.Contract.Kind || svc.Contract.Kind == model.ContractRemote {
		ops = g.ops.Generate(ref.Operations())
	} else if ops, err = g.ops.GenerateMatched(ref.Operations(), svc.Operations(), true); err != nil {
		return nil, xerrors.Wrapf(err, "reference %s", ref.URI)
	}
	return &model.PhysicalWire{Source: src, Target: tgt, Operations: ops}, nil
}

func (g *Generator) localWireCallback(w *model.Wire) (*model.PhysicalWire, error) {
	ref := w.Source
	svc := w.Target
	targetComp := ref.Component
	sourceComp := svc.LeafComponent()

	callbackSvc, err := g.callbackService(ref)
	if err != nil {
		return nil, err
	}
	ops, err := g.ops.GenerateMatched(callbackSvc.Operations(), svc.CallbackOperations(), false)
	if err != nil {
		return nil, xerrors.Wrapf(err, "callback for reference %s", ref.URI)
	}

	gen, err := g.registry.ForComponent(sourceComp)
	if err != nil {
		return nil, err
	}
	src, err := gen.GenerateCallbackSource(svc)
	if err != nil {
		return nil, err
	}
	src.ClassLoaderID = sourceComp.ContributionURI()

	tgt, err := g.componentTarget(targetComp, callbackSvc)
	if err != nil {
		return nil, err
	}
	tgt.Callback = true
	return &model.PhysicalWire{Source: src, Target: tgt, Operations: ops}, nil
}

func (g *Generator) remoteWireCallback(w *model.Wire) (*model.PhysicalWire, error) {
	ref := w.Source
	target := ref.Component
	if len(ref.CallbackBindings) == 0 {
		return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrCallbackBindingNotSet, "reference %s", ref.URI)
	}
	b := ref.CallbackBindings[0]
	callbackSvc, err := g.callbackService(ref)
	if err != nil {
		return nil, err
	}
	ops := ref.CallbackOperations()

	src, err := g.bindingSource(b, ref.Contract.Callback, ops)
	if err != nil {
		return nil, err
	}
	src.ClassLoaderID = target.ContributionURI()

	tgt, err := g.componentTarget(target, callbackSvc)
	if err != nil {
		return nil, err
	}
	tgt.Callback = true
	return &model.PhysicalWire{Source: src, Target: tgt, Operations: g.ops.Generate(ops)}, nil
}

func (g *Generator) boundService(b *model.Binding, callbackURI string) (*model.PhysicalWire, error) {
	svc := checkService(b)
	component := svc.LeafComponent()
	// 传输使用 leaf 契约，提升后的契约只参与连线匹配
	leafContract := svc.Leaf().Contract
	ops := svc.Operations()
	contributionURI := svc.Component.ContributionURI()

	gen, err := g.registry.ForComponent(component)
	if err != nil {
		return nil, err
	}
	tgt, err := gen.GenerateTarget(svc)
	if err != nil {
		return nil, err
	}
	tgt.ClassLoaderID = contributionURI
	tgt.CallbackURI = callbackURI

	src, err := g.bindingSource(b, leafContract, ops)
	if err != nil {
		return nil, err
	}
	src.ClassLoaderID = contributionURI

	physical := g.ops.Generate(ops)
	return &model.PhysicalWire{
		Source:      src,
		Target:      tgt,
		Operations:  physical,
		Optimizable: src.Optimizable && tgt.Optimizable && checkOptimization(leafContract, physical),
	}, nil
}

func (g *Generator) boundServiceCallback(b *model.Binding) (*model.PhysicalWire, error) {
	svc := checkService(b)
	component := svc.LeafComponent()
	callback := svc.Leaf().Contract.Callback
	if callback == nil {
		return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrNoCallbackContract, "service %s", svc.URI)
	}
	ops := svc.CallbackOperations()

	gen, err := g.registry.ForComponent(component)
	if err != nil {
		return nil, err
	}
	src, err := gen.GenerateCallbackSource(svc)
	if err != nil {
		return nil, err
	}
	src.ClassLoaderID = component.ContributionURI()

	bg, err := g.registry.ForBinding(b)
	if err != nil {
		return nil, err
	}
	tgt, err := bg.GenerateTarget(b, callback, ops)
	if err != nil {
		return nil, err
	}
	tgt.Callback = true
	tgt.ClassLoaderID = b.Parent.ParentComponent().ContributionURI()
	return &model.PhysicalWire{Source: src, Target: tgt, Operations: g.ops.Generate(ops)}, nil
}

func (g *Generator) boundReference(b *model.Binding) (*model.PhysicalWire, error) {
	ref := checkReference(b)
	component := ref.Component
	ops := ref.Operations()

	src, err := g.componentSource(component, ref)
	if err != nil {
		return nil, err
	}
	src.Key = b.Definition.Name()

	bg, err := g.registry.ForBinding(b)
	if err != nil {
		return nil, err
	}
	tgt, err := bg.GenerateTarget(b, ref.Contract, ops)
	if err != nil {
		return nil, err
	}
	if cb := ref.Contract.Callback; cb != nil {
		if tgt.CallbackURI, err = g.callbackURI(component, cb, ref); err != nil {
			return nil, err
		}
	}
	tgt.ClassLoaderID = b.Parent.ParentComponent().ContributionURI()
	return &model.PhysicalWire{Source: src, Target: tgt, Operations: g.ops.Generate(ops)}, nil
}

func (g *Generator) boundReferenceCallback(b *model.Binding) (*model.PhysicalWire, error) {
	ref := checkReference(b)
	component := ref.Component
	callbackSvc, err := g.callbackService(ref)
	if err != nil {
		return nil, err
	}
	ops := ref.CallbackOperations()

	src, err := g.bindingSource(b, ref.Contract.Callback, ops)
	if err != nil {
		return nil, err
	}
	src.ClassLoaderID = b.Parent.ParentComponent().ContributionURI()

	tgt, err := g.componentTarget(component, callbackSvc)
	if err != nil {
		return nil, err
	}
	tgt.ClassLoaderID = callbackSvc.Component.ContributionURI()
	tgt.Callback = true
	return &model.PhysicalWire{Source: src, Target: tgt, Operations: g.ops.Generate(ops)}, nil
}

func (g *Generator) resource(res *model.ResourceReference) (*model.PhysicalWire, error) {
	component := res.Component

	gen, err := g.registry.ForComponent(component)
	if err != nil {
		return nil, err
	}
	src, err := gen.GenerateResourceSource(res)
	if err != nil {
		return nil, err
	}
	src.ClassLoaderID = component.ContributionURI()

	rg, err := g.registry.ForResource(res)
	if err != nil {
		return nil, err
	}
	tgt, err := rg.GenerateWireTarget(res)
	if err != nil {
		return nil, err
	}
	tgt.ClassLoaderID = component.ContributionURI()

	return &model.PhysicalWire{
		Source:      src,
		Target:      tgt,
		Operations:  g.ops.Generate(res.Operations()),
		Optimizable: tgt.Optimizable,
	}, nil
}

// componentSource 组件生成器产生的源端，已设置 ClassLoaderID
func (g *Generator) componentSource(c *model.Component, ref *model.Reference) (*model.WireSource, error) {
	gen, err := g.registry.ForComponent(c)
	if err != nil {
		return nil, err
	}
	src, err := gen.GenerateSource(ref)
	if err != nil {
		return nil, err
	}
	src.ClassLoaderID = c.ContributionURI()
	return src, nil
}

// componentTarget 组件生成器产生的目标端，已设置 ClassLoaderID
func (g *Generator) componentTarget(c *model.Component, svc *model.Service) (*model.WireTarget, error) {
	gen, err := g.registry.ForComponent(c)
	if err != nil {
		return nil, err
	}
	tgt, err := gen.GenerateTarget(svc)
	if err != nil {
		return nil, err
	}
	tgt.ClassLoaderID = c.ContributionURI()
	return tgt, nil
}

func (g *Generator) bindingSource(b *model.Binding, c *model.ServiceContract, ops []*model.Operation) (*model.WireSource, error) {
	bg, err := g.registry.ForBinding(b)
	if err != nil {
		return nil, err
	}
	return bg.GenerateSource(b, c, ops)
}

// callbackService 引用所在组件上按回调接口名找到的服务
func (g *Generator) callbackService(ref *model.Reference) (*model.Service, error) {
	cb := ref.Contract.Callback
	if cb == nil {
		return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrNoCallbackContract, "reference %s", ref.URI)
	}
	svc := ref.Component.ServiceByInterface(cb.InterfaceName)
	if svc == nil {
		return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrCallbackServiceNotFound,
			"%s on component %s originating from reference %s", cb.InterfaceName, ref.Component.URI, ref.Name)
	}
	return svc, nil
}

// callbackURI 在 source 的服务中按声明顺序取第一个与回调契约兼容的服务，
// 返回 "<组件 URI>#<服务名>"。
func (g *Generator) callbackURI(source *model.Component, callback *model.ServiceContract, ref *model.Reference) (string, error) {
	var candidates []string
	var first *model.Service
	for _, s := range source.Services {
		if !g.matcher.IsAssignableFrom(callback, s.Contract, false).Assignable {
			continue
		}
		if first == nil {
			first = s
		}
		candidates = append(candidates, s.Name)
	}
	if first == nil {
		return "", xerrors.Codedf(xerrors.CodeGeneration, ErrCallbackServiceNotFound,
			"%s on component %s originating from reference %s", callback.InterfaceName, source.URI, ref.Name)
	}
	if len(candidates) > 1 {
		g.logger.Warn("multiple services match callback contract, using the first",
			clog.String("contract", callback.InterfaceName),
			clog.String("component", source.URI),
			clog.Strings("candidates", candidates))
	}
	return source.URI + "#" + first.Name, nil
}

// checkOptimization 可远程契约或任一操作带拦截器时不可优化
func checkOptimization(c *model.ServiceContract, ops []*model.PhysicalOperation) bool {
	if c.Remotable {
		return false
	}
	for _, op := range ops {
		if len(op.Interceptors) > 0 {
			return false
		}
	}
	return true
}

func checkService(b *model.Binding) *model.Service {
	svc, ok := b.Parent.(*model.Service)
	if !ok {
		panic("wire: expected *model.Service as parent to binding " + b.URI)
	}
	return svc
}

func checkReference(b *model.Binding) *model.Reference {
	ref, ok := b.Parent.(*model.Reference)
	if !ok {
		panic("wire: expected *model.Reference as parent to binding " + b.URI)
	}
	return ref
}
