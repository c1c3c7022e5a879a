package binding

import (
	"strings"

	"github.com/ceyewan/fabric/model"
	"github.com/ceyewan/fabric/xerrors"
)

// RedisGenerator redis Pub/Sub 绑定生成器。Pub/Sub 没有 queue group，入站是广播语义
type RedisGenerator struct{}

func NewRedisGenerator() *RedisGenerator {
	return &RedisGenerator{}
}

func (g *RedisGenerator) GenerateSource(b *model.Binding, c *model.ServiceContract, ops []*model.Operation) (*model.WireSource, error) {
	props, err := g.properties(b, c, ops, roleInbound)
	if err != nil {
		return nil, err
	}
	return &model.WireSource{URI: b.URI, Kind: string(KindRedis), Properties: props, Key: bindingName(b)}, nil
}

func (g *RedisGenerator) GenerateTarget(b *model.Binding, c *model.ServiceContract, ops []*model.Operation) (*model.WireTarget, error) {
	props, err := g.properties(b, c, ops, roleOutbound)
	if err != nil {
		return nil, err
	}
	return &model.WireTarget{URI: b.URI, Kind: string(KindRedis), Properties: props}, nil
}

func (g *RedisGenerator) GenerateServiceBindingTarget(b *model.Binding, c *model.ServiceContract, ops []*model.Operation) (*model.WireTarget, error) {
	props, err := g.properties(b, c, ops, roleServiceTarget)
	if err != nil {
		return nil, err
	}
	return &model.WireTarget{URI: b.URI, Kind: string(KindRedis), Properties: props}, nil
}

func (g *RedisGenerator) properties(b *model.Binding, c *model.ServiceContract, ops []*model.Operation, role string) (map[string]any, error) {
	def, ok := b.Definition.(*RedisDefinition)
	if !ok {
		return nil, unexpected(b, KindRedis)
	}
	if strings.TrimSpace(def.Channel) == "" {
		return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrAddressRequired, "redis binding %s", b.URI)
	}
	props := contractProperties(c, ops, role)
	props[PropChannel] = def.Channel
	return props, nil
}
