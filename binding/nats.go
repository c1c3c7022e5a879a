package binding

import (
	"github.com/nats-io/nats.go"

	"github.com/ceyewan/fabric/model"
	"github.com/ceyewan/fabric/xerrors"
)

// NATSGenerator nats 绑定生成器
type NATSGenerator struct{}

func NewNATSGenerator() *NATSGenerator {
	return &NATSGenerator{}
}

// GenerateSource 入站：订阅 subject，允许通配符
func (g *NATSGenerator) GenerateSource(b *model.Binding, c *model.ServiceContract, ops []*model.Operation) (*model.WireSource, error) {
	props, err := g.properties(b, c, ops, roleInbound, true)
	if err != nil {
		return nil, err
	}
	return &model.WireSource{URI: b.URI, Kind: string(KindNATS), Properties: props, Key: bindingName(b)}, nil
}

// GenerateTarget 出站：向 subject 发布
func (g *NATSGenerator) GenerateTarget(b *model.Binding, c *model.ServiceContract, ops []*model.Operation) (*model.WireTarget, error) {
	props, err := g.properties(b, c, ops, roleOutbound, false)
	if err != nil {
		return nil, err
	}
	return &model.WireTarget{URI: b.URI, Kind: string(KindNATS), Properties: props}, nil
}

// GenerateServiceBindingTarget 远程连线的目标是服务侧绑定监听的 subject，queue 供负载均衡使用
func (g *NATSGenerator) GenerateServiceBindingTarget(b *model.Binding, c *model.ServiceContract, ops []*model.Operation) (*model.WireTarget, error) {
	props, err := g.properties(b, c, ops, roleServiceTarget, false)
	if err != nil {
		return nil, err
	}
	return &model.WireTarget{URI: b.URI, Kind: string(KindNATS), Properties: props}, nil
}

func (g *NATSGenerator) properties(b *model.Binding, c *model.ServiceContract, ops []*model.Operation, role string, wildcards bool) (map[string]any, error) {
	def, ok := b.Definition.(*NATSDefinition)
	if !ok {
		return nil, unexpected(b, KindNATS)
	}
	if def.Subject == "" {
		return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrAddressRequired, "nats binding %s", b.URI)
	}
	if !validSubject(def.Subject, wildcards) {
		return nil, xerrors.Codedf(xerrors.CodeGeneration, nats.ErrBadSubject, "nats binding %s subject %q", b.URI, def.Subject)
	}

	props := contractProperties(c, ops, role)
	props[PropSubject] = def.Subject
	if def.Queue != "" {
		props[PropQueue] = def.Queue
	}
	return props, nil
}
