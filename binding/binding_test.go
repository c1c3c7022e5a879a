package binding

import (
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/fabric/model"
	"github.com/ceyewan/fabric/xerrors"
)

var greeter = &model.ServiceContract{
	InterfaceName: "Greeter",
	Operations:    []*model.Operation{{Name: "hello"}, {Name: "bye"}},
}

func TestNATSGenerator(t *testing.T) {
	g := NewNATSGenerator()
	b := &model.Binding{URI: "app/greeter#Greeter/nats", Definition: &NATSDefinition{BindingName: "in", Subject: "greeter.>", Queue: "workers"}}

	src, err := g.GenerateSource(b, greeter, greeter.Operations)
	require.NoError(t, err)
	assert.Equal(t, "nats", src.Kind)
	assert.Equal(t, "in", src.Key)
	assert.False(t, src.Optimizable)
	assert.Equal(t, "greeter.>", src.Properties[PropSubject])
	assert.Equal(t, "workers", src.Properties[PropQueue])
	assert.Equal(t, []string{"hello", "bye"}, src.Properties[PropOperations])
	assert.Equal(t, "Greeter", src.Properties[PropInterface])

	// 出站不允许通配符
	_, err = g.GenerateTarget(b, greeter, greeter.Operations)
	require.ErrorIs(t, err, nats.ErrBadSubject)
	assert.Equal(t, xerrors.CodeGeneration, xerrors.GetCode(err))

	b.Definition = &NATSDefinition{BindingName: "out", Subject: "greeter.hello"}
	tgt, err := g.GenerateServiceBindingTarget(b, greeter, greeter.Operations)
	require.NoError(t, err)
	assert.Equal(t, roleServiceTarget, tgt.Properties[PropRole])
	assert.NotContains(t, tgt.Properties, PropQueue)
	assert.False(t, tgt.Optimizable)
}

func TestNATSGeneratorErrors(t *testing.T) {
	g := NewNATSGenerator()

	_, err := g.GenerateTarget(&model.Binding{URI: "b", Definition: &RedisDefinition{Channel: "x"}}, greeter, nil)
	assert.ErrorIs(t, err, ErrUnexpectedDefinition)

	_, err = g.GenerateTarget(&model.Binding{URI: "b", Definition: &NATSDefinition{}}, greeter, nil)
	assert.ErrorIs(t, err, ErrAddressRequired)

	for _, subject := range []string{"a..b", "a b", ".a", "a."} {
		_, err = g.GenerateSource(&model.Binding{URI: "b", Definition: &NATSDefinition{Subject: subject}}, greeter, nil)
		assert.ErrorIs(t, err, nats.ErrBadSubject, subject)
	}
}

func TestRedisGenerator(t *testing.T) {
	g := NewRedisGenerator()
	b := &model.Binding{URI: "app/greeter#Greeter/redis", Definition: &RedisDefinition{BindingName: "in", Channel: "greeter"}}

	src, err := g.GenerateSource(b, greeter, greeter.Operations)
	require.NoError(t, err)
	assert.Equal(t, "redis", src.Kind)
	assert.Equal(t, "greeter", src.Properties[PropChannel])
	assert.Equal(t, roleInbound, src.Properties[PropRole])

	tgt, err := g.GenerateTarget(b, greeter.Callback, nil)
	require.NoError(t, err)
	assert.NotContains(t, tgt.Properties, PropInterface)

	_, err = g.GenerateTarget(&model.Binding{URI: "b", Definition: &RedisDefinition{Channel: " "}}, greeter, nil)
	assert.ErrorIs(t, err, ErrAddressRequired)
	_, err = g.GenerateSource(&model.Binding{URI: "b", Definition: &NATSDefinition{Subject: "x"}}, greeter, nil)
	assert.ErrorIs(t, err, ErrUnexpectedDefinition)
}
