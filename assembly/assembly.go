// Package assembly 读取 YAML 组合体描述，构建逻辑模型与连线。
//
// 描述中的 URI 都相对组合体：组件 "outer/inner"、服务 "outer/inner#Greeter"、通道 "events"。
// 引用的每个目标生成一条连线；两端不在同一 zone 时，连线带上两端声明的第一个绑定。
// 描述引用了不存在的契约、组件、服务或通道时返回 ErrInvalidAssembly。
//
// 基本使用：
//
//	asm, err := assembly.LoadFile("app.yaml")
//	for _, w := range asm.Composite.Wires {
//	    pw, err := wireGen.GenerateWire(w)
//	}
package assembly

import (
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ceyewan/fabric/binding"
	"github.com/ceyewan/fabric/component"
	"github.com/ceyewan/fabric/model"
	"github.com/ceyewan/fabric/resource"
	"github.com/ceyewan/fabric/xerrors"
)

// ErrInvalidAssembly 描述文件无法构成合法的组合体
var ErrInvalidAssembly = xerrors.New("invalid assembly")

// Assembly 加载结果
type Assembly struct {
	Composite *model.Composite
}

// ServiceBindings 所有服务上的绑定（不含回调绑定），按组件深度优先顺序
func (a *Assembly) ServiceBindings() []*model.Binding {
	var out []*model.Binding
	a.Composite.Walk(func(c *model.Component) {
		for _, s := range c.Services {
			out = append(out, s.Bindings...)
		}
	})
	return out
}

// ReferenceBindings 所有引用上的绑定（不含回调绑定）
func (a *Assembly) ReferenceBindings() []*model.Binding {
	var out []*model.Binding
	a.Composite.Walk(func(c *model.Component) {
		for _, r := range c.References {
			out = append(out, r.Bindings...)
		}
	})
	return out
}

// Resources 所有资源引用
func (a *Assembly) Resources() []*model.ResourceReference {
	var out []*model.ResourceReference
	a.Composite.Walk(func(c *model.Component) {
		out = append(out, c.Resources...)
	})
	return out
}

// LoadFile 从文件加载
func LoadFile(path string) (*Assembly, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Wrapf(err, "assembly: open %s", path)
	}
	defer f.Close()
	return Load(f)
}

// Load 解析描述并构建组合体，未知字段视为错误
func Load(r io.Reader) (*Assembly, error) {
	var d descriptor
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, xerrors.Wrapf(ErrInvalidAssembly, "decode: %v", err)
	}
	if d.URI == "" {
		return nil, invalid("composite uri is required")
	}

	l := &loader{
		contracts:  make(map[string]*model.ServiceContract, len(d.Contracts)),
		components: make(map[string]*model.Component),
		composite: &model.Composite{
			URI:      d.URI,
			Channels: make(map[string]*model.Channel, len(d.Channels)),
		},
	}
	if err := l.loadContracts(d.Contracts); err != nil {
		return nil, err
	}
	if err := l.loadChannels(d.Channels); err != nil {
		return nil, err
	}
	for i := range d.Components {
		c, err := l.loadComponent(&d.Components[i], d.URI, nil, "")
		if err != nil {
			return nil, err
		}
		l.composite.Components = append(l.composite.Components, c)
	}
	if err := l.resolvePromotions(); err != nil {
		return nil, err
	}
	if err := l.resolveWires(); err != nil {
		return nil, err
	}
	return &Assembly{Composite: l.composite}, nil
}

func invalid(format string, args ...any) error {
	return xerrors.Wrapf(ErrInvalidAssembly, format, args...)
}

type pendingPromotion struct {
	service *model.Service
	target  string
}

type pendingReference struct {
	reference *model.Reference
	targets   []string
}

type loader struct {
	contracts  map[string]*model.ServiceContract
	components map[string]*model.Component
	composite  *model.Composite

	promotions []pendingPromotion
	references []pendingReference
}

func (l *loader) loadContracts(specs []contractSpec) error {
	for _, s := range specs {
		if s.Interface == "" {
			return invalid("contract without interface name")
		}
		if _, dup := l.contracts[s.Interface]; dup {
			return invalid("duplicate contract %s", s.Interface)
		}
		kind := model.ContractKind(s.Kind)
		switch kind {
		case "":
			kind = model.ContractGo
		case model.ContractGo, model.ContractWSDL, model.ContractRemote:
		default:
			return invalid("contract %s has unknown kind %q", s.Interface, s.Kind)
		}

		sc := &model.ServiceContract{InterfaceName: s.Interface, Kind: kind, Remotable: s.Remotable}
		for _, op := range s.Operations {
			sc.Operations = append(sc.Operations, &model.Operation{
				Name:    op.Name,
				Inputs:  dataTypes(op.Inputs),
				Output:  model.DataType(op.Output),
				Faults:  dataTypes(op.Faults),
				OneWay:  op.OneWay,
				Intents: op.Intents,
			})
		}
		l.contracts[s.Interface] = sc
	}

	// 回调契约可以声明在引用它的契约之后
	for _, s := range specs {
		if s.Callback == "" {
			continue
		}
		cb, ok := l.contracts[s.Callback]
		if !ok {
			return invalid("contract %s has unknown callback %s", s.Interface, s.Callback)
		}
		l.contracts[s.Interface].Callback = cb
	}
	return nil
}

func dataTypes(in []string) []model.DataType {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.DataType, len(in))
	for i, t := range in {
		out[i] = model.DataType(t)
	}
	return out
}

func (l *loader) contract(name, owner string, required bool) (*model.ServiceContract, error) {
	if name == "" {
		if required {
			return nil, invalid("%s has no contract", owner)
		}
		return nil, nil
	}
	sc, ok := l.contracts[name]
	if !ok {
		return nil, invalid("%s uses unknown contract %s", owner, name)
	}
	return sc, nil
}

func (l *loader) channelURI(name string) string {
	return l.composite.URI + "/" + name
}

func (l *loader) loadChannels(specs []channelSpec) error {
	for _, s := range specs {
		if s.Name == "" {
			return invalid("channel without name")
		}
		uri := l.channelURI(s.Name)
		if _, dup := l.composite.Channels[uri]; dup {
			return invalid("duplicate channel %s", s.Name)
		}
		bindings, err := buildBindings(s.Bindings, nil, uri)
		if err != nil {
			return err
		}
		l.composite.Channels[uri] = &model.Channel{URI: uri, Name: s.Name, Zone: s.Zone, Bindings: bindings}
	}
	return nil
}

func (l *loader) loadComponent(s *componentSpec, parentURI string, parent *model.Component, parentZone string) (*model.Component, error) {
	if s.Name == "" || strings.ContainsAny(s.Name, "/#") {
		return nil, invalid("invalid component name %q under %s", s.Name, parentURI)
	}
	uri := parentURI + "/" + s.Name
	if _, dup := l.components[uri]; dup {
		return nil, invalid("duplicate component %s", uri)
	}

	var impl model.Implementation
	switch s.Implementation.Kind {
	case "", string(component.KindGo):
		impl = component.GoImplementation{Type: s.Implementation.Type}
	default:
		return nil, invalid("component %s has unknown implementation kind %q", uri, s.Implementation.Kind)
	}

	contribution := s.Contribution
	if contribution == "" {
		contribution = l.composite.URI
	}
	def := model.NewComponentDefinition(s.Name, contribution, impl)
	def.Key = s.Key
	if s.Order != nil {
		def.Order = *s.Order
	}
	if t := s.ComponentType; t != nil {
		def.ComponentType = &model.ComponentType{Key: t.Key, Order: t.Order}
	}

	zone := s.Zone
	if zone == "" {
		zone = parentZone
	}
	c := &model.Component{URI: uri, Zone: zone, Definition: def, Parent: parent}
	l.components[uri] = c

	steps := []func(*componentSpec, *model.Component) error{
		l.loadServices,
		l.loadReferences,
		l.loadResources,
		l.loadProducers,
		l.loadConsumers,
	}
	for _, step := range steps {
		if err := step(s, c); err != nil {
			return nil, err
		}
	}

	for i := range s.Components {
		child, err := l.loadComponent(&s.Components[i], uri, c, zone)
		if err != nil {
			return nil, err
		}
		c.Children = append(c.Children, child)
	}
	return c, nil
}

func (l *loader) loadServices(s *componentSpec, c *model.Component) error {
	for _, ss := range s.Services {
		svcURI := c.URI + "#" + ss.Name
		if ss.Name == "" || c.Service(ss.Name) != nil {
			return invalid("invalid or duplicate service %q on %s", ss.Name, c.URI)
		}
		sc, err := l.contract(ss.Contract, "service "+svcURI, true)
		if err != nil {
			return err
		}
		svc := &model.Service{URI: svcURI, Name: ss.Name, Contract: sc, Component: c}
		if svc.Bindings, err = buildBindings(ss.Bindings, svc, svcURI); err != nil {
			return err
		}
		if svc.CallbackBindings, err = buildBindings(ss.CallbackBindings, svc, svcURI+"/callback"); err != nil {
			return err
		}
		if ss.Promotes != "" {
			l.promotions = append(l.promotions, pendingPromotion{service: svc, target: ss.Promotes})
		}
		c.Services = append(c.Services, svc)
	}
	return nil
}

func (l *loader) loadReferences(s *componentSpec, c *model.Component) error {
	for _, rs := range s.References {
		refURI := c.URI + "#" + rs.Name
		if rs.Name == "" || c.Reference(rs.Name) != nil {
			return invalid("invalid or duplicate reference %q on %s", rs.Name, c.URI)
		}
		sc, err := l.contract(rs.Contract, "reference "+refURI, true)
		if err != nil {
			return err
		}
		multiplicity := model.Multiplicity(rs.Multiplicity)
		switch multiplicity {
		case "":
			multiplicity = model.MultiplicityOneOne
		case model.MultiplicityOneOne, model.MultiplicityZeroOne, model.MultiplicityOneN, model.MultiplicityZeroN:
		default:
			return invalid("reference %s has unknown multiplicity %q", refURI, rs.Multiplicity)
		}

		ref := &model.Reference{URI: refURI, Name: rs.Name, Contract: sc, Component: c, Multiplicity: multiplicity}
		if ref.Bindings, err = buildBindings(rs.Bindings, ref, refURI); err != nil {
			return err
		}
		if ref.CallbackBindings, err = buildBindings(rs.CallbackBindings, ref, refURI+"/callback"); err != nil {
			return err
		}
		if err := checkMultiplicity(ref, len(rs.Targets)); err != nil {
			return err
		}
		if len(rs.Targets) > 0 {
			l.references = append(l.references, pendingReference{reference: ref, targets: rs.Targets})
		}
		c.References = append(c.References, ref)
	}
	return nil
}

// checkMultiplicity 直接绑定到传输的引用可以没有目标
func checkMultiplicity(ref *model.Reference, targets int) error {
	switch ref.Multiplicity {
	case model.MultiplicityOneOne, model.MultiplicityZeroOne:
		if targets > 1 {
			return invalid("reference %s allows one target, got %d", ref.URI, targets)
		}
	}
	switch ref.Multiplicity {
	case model.MultiplicityOneOne, model.MultiplicityOneN:
		if targets == 0 && len(ref.Bindings) == 0 {
			return invalid("reference %s requires a target or binding", ref.URI)
		}
	}
	return nil
}

func (l *loader) loadResources(s *componentSpec, c *model.Component) error {
	for _, rs := range s.Resources {
		resURI := c.URI + "#" + rs.Name
		sc, err := l.contract(rs.Contract, "resource "+resURI, false)
		if err != nil {
			return err
		}
		var def model.ResourceDefinition
		switch model.ResourceKind(rs.Kind) {
		case "", resource.KindCacheSet:
			def = &resource.CacheSetDefinition{Caches: rs.Caches}
		default:
			return invalid("resource %s has unknown kind %q", resURI, rs.Kind)
		}
		c.Resources = append(c.Resources, &model.ResourceReference{
			URI:        resURI,
			Name:       rs.Name,
			Component:  c,
			Definition: def,
			Contract:   sc,
		})
	}
	return nil
}

func (l *loader) loadProducers(s *componentSpec, c *model.Component) error {
	for _, ps := range s.Producers {
		uri := c.URI + "#" + ps.Name
		sc, err := l.contract(ps.Contract, "producer "+uri, false)
		if err != nil {
			return err
		}
		targets, err := l.channelURIs(ps.Targets, uri)
		if err != nil {
			return err
		}
		c.Producers = append(c.Producers, &model.Producer{URI: uri, Name: ps.Name, Component: c, Contract: sc, Targets: targets})
	}
	return nil
}

func (l *loader) loadConsumers(s *componentSpec, c *model.Component) error {
	for _, cs := range s.Consumers {
		uri := c.URI + "#" + cs.Name
		sc, err := l.contract(cs.Contract, "consumer "+uri, false)
		if err != nil {
			return err
		}
		sources, err := l.channelURIs(cs.Sources, uri)
		if err != nil {
			return err
		}
		c.Consumers = append(c.Consumers, &model.Consumer{URI: uri, Name: cs.Name, Component: c, Contract: sc, Sources: sources})
	}
	return nil
}

func (l *loader) channelURIs(names []string, owner string) ([]string, error) {
	uris := make([]string, 0, len(names))
	for _, n := range names {
		uri := l.channelURI(n)
		if l.composite.Channel(uri) == nil {
			return nil, invalid("%s uses unknown channel %s", owner, n)
		}
		uris = append(uris, uri)
	}
	return uris, nil
}

// lookupService 解析 "path#Service"，path 相对 base
func (l *loader) lookupService(base, target string) (*model.Service, error) {
	path, name, ok := strings.Cut(target, "#")
	if !ok || path == "" || name == "" {
		return nil, invalid("malformed service target %q", target)
	}
	c, found := l.components[base+"/"+path]
	if !found {
		return nil, invalid("unknown component %s in target %q", path, target)
	}
	svc := c.Service(name)
	if svc == nil {
		return nil, invalid("unknown service %s on component %s", name, c.URI)
	}
	return svc, nil
}

func (l *loader) resolvePromotions() error {
	for _, p := range l.promotions {
		inner, err := l.lookupService(p.service.Component.URI, p.target)
		if err != nil {
			return xerrors.Wrapf(err, "promotion of %s", p.service.URI)
		}
		if inner.Component.Parent != p.service.Component {
			return invalid("service %s can only promote services of its children, got %s", p.service.URI, inner.URI)
		}
		p.service.Promotes = inner
	}
	return nil
}

func (l *loader) resolveWires() error {
	for _, p := range l.references {
		for _, target := range p.targets {
			svc, err := l.lookupService(l.composite.URI, target)
			if err != nil {
				return xerrors.Wrapf(err, "reference %s", p.reference.URI)
			}
			w := &model.Wire{Source: p.reference, Target: svc}
			if p.reference.Component.Zone != svc.Component.Zone {
				w.SourceBinding = first(p.reference.Bindings)
				w.TargetBinding = first(svc.Bindings)
			}
			l.composite.Wires = append(l.composite.Wires, w)
		}
	}
	return nil
}

func first(bs []*model.Binding) *model.Binding {
	if len(bs) == 0 {
		return nil
	}
	return bs[0]
}

func buildBindings(specs []bindingSpec, parent model.Bindable, base string) ([]*model.Binding, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]*model.Binding, 0, len(specs))
	for _, s := range specs {
		name := s.Name
		if name == "" {
			name = s.Kind
		}
		var def model.BindingDefinition
		switch model.BindingKind(s.Kind) {
		case binding.KindNATS:
			def = &binding.NATSDefinition{BindingName: name, Subject: s.Subject, Queue: s.Queue}
		case binding.KindRedis:
			def = &binding.RedisDefinition{BindingName: name, Channel: s.Channel}
		default:
			return nil, invalid("binding %q on %s has unknown kind %q", name, base, s.Kind)
		}
		out = append(out, &model.Binding{URI: base + "/" + name, Definition: def, Parent: parent})
	}
	return out, nil
}
