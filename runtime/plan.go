package runtime

import (
	"context"
	"maps"

	"github.com/ceyewan/fabric/assembly"
	"github.com/ceyewan/fabric/cache"
	"github.com/ceyewan/fabric/channel"
	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/model"
	"github.com/ceyewan/fabric/resource"
	"github.com/ceyewan/fabric/wire"
	"github.com/ceyewan/fabric/xerrors"
)

// Plan 一个组合体的全部物理连线与通道连接
type Plan struct {
	URI         string                     `yaml:"uri"`
	Wires       []*model.PhysicalWire      `yaml:"wires"`
	Connections []*model.ChannelConnection `yaml:"connections"`
}

// GeneratePlan 依次生成：逻辑连线及其回调、绑定服务及其回调、绑定引用及其回调、资源、通道连接。
// 单条连线失败不中断其余连线，所有错误合并返回
func GeneratePlan(wires *wire.Generator, channels *channel.ConnectionGenerator, asm *assembly.Assembly) (*Plan, error) {
	if asm == nil || asm.Composite == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "runtime: assembly is required")
	}
	plan := &Plan{URI: asm.Composite.URI}
	var errs []error
	add := func(pw *model.PhysicalWire, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		plan.Wires = append(plan.Wires, pw)
	}

	for _, w := range asm.Composite.Wires {
		add(wires.GenerateWire(w))
		if w.Source.Contract != nil && w.Source.Contract.Callback != nil {
			add(wires.GenerateWireCallback(w))
		}
	}

	for _, b := range asm.ServiceBindings() {
		svc := b.Parent.(*model.Service)
		callbackURI := ""
		if len(svc.CallbackBindings) > 0 {
			callbackURI = svc.CallbackBindings[0].URI
		}
		add(wires.GenerateBoundService(b, callbackURI))
	}
	for _, svc := range boundServices(asm) {
		for _, cb := range svc.CallbackBindings {
			add(wires.GenerateBoundServiceCallback(cb))
		}
	}

	for _, b := range asm.ReferenceBindings() {
		add(wires.GenerateBoundReference(b))
	}
	for _, ref := range boundReferences(asm) {
		for _, cb := range ref.CallbackBindings {
			add(wires.GenerateBoundReferenceCallback(cb))
		}
	}

	for _, res := range asm.Resources() {
		add(wires.GenerateResource(res))
	}

	conns, err := channels.Generate(asm.Composite)
	if err != nil {
		errs = append(errs, err)
	}
	plan.Connections = conns

	if err := xerrors.Combine(errs...); err != nil {
		return nil, err
	}
	return plan, nil
}

func boundServices(asm *assembly.Assembly) []*model.Service {
	var out []*model.Service
	asm.Composite.Walk(func(c *model.Component) {
		for _, s := range c.Services {
			if len(s.CallbackBindings) > 0 {
				out = append(out, s)
			}
		}
	})
	return out
}

func boundReferences(asm *assembly.Assembly) []*model.Reference {
	var out []*model.Reference
	asm.Composite.Walk(func(c *model.Component) {
		for _, r := range c.References {
			if len(r.Bindings) > 0 && len(r.CallbackBindings) > 0 {
				out = append(out, r)
			}
		}
	})
	return out
}

// Deploy 生成组合体的连线计划，并为 cache-set 资源创建缓存实例。
// 同一资源重复部署时旧实例被关闭
func (rt *Runtime) Deploy(ctx context.Context, asm *assembly.Assembly) (*Plan, error) {
	plan, err := GeneratePlan(rt.wires, rt.channels, asm)
	if err != nil {
		rt.logger.ErrorContext(ctx, "plan generation failed", clog.Error(err))
		return nil, err
	}

	built := make(map[string]map[string]cache.Cache)
	for _, pw := range plan.Wires {
		if pw.Target.Kind != string(resource.KindCacheSet) {
			continue
		}
		caches, err := rt.resources.Build(pw.Target)
		if err != nil {
			errs := []error{err}
			for _, set := range built {
				errs = append(errs, closeAll(set))
			}
			return nil, xerrors.Combine(errs...)
		}
		built[pw.Target.URI] = caches
	}

	rt.mu.Lock()
	var replaced []map[string]cache.Cache
	for uri, caches := range built {
		if old, ok := rt.deployed[uri]; ok {
			replaced = append(replaced, old)
		}
		rt.deployed[uri] = caches
	}
	rt.mu.Unlock()
	for _, old := range replaced {
		if err := closeAll(old); err != nil {
			rt.logger.WarnContext(ctx, "close replaced caches failed", clog.Error(err))
		}
	}

	rt.logger.InfoContext(ctx, "composite deployed",
		clog.String("composite", plan.URI),
		clog.Int("wires", len(plan.Wires)),
		clog.Int("connections", len(plan.Connections)),
		clog.Int("resources", len(built)))
	return plan, nil
}

// Caches 已部署资源的缓存实例，按缓存名索引
func (rt *Runtime) Caches(resourceURI string) (map[string]cache.Cache, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	caches, ok := rt.deployed[resourceURI]
	if !ok {
		return nil, false
	}
	return maps.Clone(caches), true
}

func closeAll(caches map[string]cache.Cache) error {
	var errs []error
	for _, c := range caches {
		errs = append(errs, c.Close())
	}
	return xerrors.Combine(errs...)
}
