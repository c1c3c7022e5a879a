package assembly

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/fabric/binding"
	"github.com/ceyewan/fabric/component"
	"github.com/ceyewan/fabric/model"
	"github.com/ceyewan/fabric/resource"
)

func TestLoadFile(t *testing.T) {
	asm, err := LoadFile("testdata/greeter.yaml")
	require.NoError(t, err)
	c := asm.Composite

	t.Run("contracts", func(t *testing.T) {
		ref := c.Component("app/client").Reference("greeter")
		require.NotNil(t, ref)
		assert.Equal(t, model.ContractGo, ref.Contract.Kind)
		assert.True(t, ref.Contract.Remotable)
		require.NotNil(t, ref.Contract.Callback)
		assert.Equal(t, "GreeterCallback", ref.Contract.Callback.InterfaceName)
		assert.True(t, ref.Contract.Callback.Operations[0].OneWay)
	})

	t.Run("components", func(t *testing.T) {
		inner := c.Component("app/outer/inner")
		require.NotNil(t, inner)
		assert.Equal(t, "z1", inner.Zone)
		assert.Equal(t, "contrib-inner", inner.ContributionURI())
		assert.Equal(t, component.GoImplementation{Type: "GreeterImpl"}, inner.Definition.Implementation)
		assert.Equal(t, "type-key", inner.Key())
		assert.Equal(t, 5, inner.Order())
		assert.Same(t, c.Component("app/outer"), inner.Parent)

		outer := c.Component("app/outer")
		assert.Equal(t, "outer-key", outer.Key())
		assert.Equal(t, 2, outer.Order())
	})

	t.Run("promotion", func(t *testing.T) {
		promoted := c.Component("app/outer").Service("Greeter")
		assert.Same(t, c.Component("app/outer/inner").Service("Greeter"), promoted.Leaf())
		require.Len(t, promoted.Bindings, 1)
		assert.Equal(t, "app/outer#Greeter/redis", promoted.Bindings[0].URI)
		assert.Same(t, promoted, promoted.Bindings[0].Parent)
	})

	t.Run("wires", func(t *testing.T) {
		require.Len(t, c.Wires, 2)
		local, remote := c.Wires[0], c.Wires[1]
		assert.Equal(t, "app/outer#Greeter", local.Target.URI)
		assert.Nil(t, local.TargetBinding)

		assert.Equal(t, "app/edge#Greeter", remote.Target.URI)
		require.NotNil(t, remote.TargetBinding)
		def := remote.TargetBinding.Definition.(*binding.NATSDefinition)
		assert.Equal(t, "greeter.edge", def.Subject)
		assert.Equal(t, "edge-workers", def.Queue)
		require.NotNil(t, remote.SourceBinding)
		assert.Equal(t, "out", remote.SourceBinding.Definition.Name())
	})

	t.Run("resources and channels", func(t *testing.T) {
		res := asm.Resources()
		require.Len(t, res, 1)
		def := res[0].Definition.(*resource.CacheSetDefinition)
		require.Len(t, def.Caches, 2)
		assert.Equal(t, time.Minute, def.Caches[0].TTL)

		assert.Equal(t, []string{"app/audit", "app/cluster-events"}, c.Component("app/client").Producers[0].Targets)
		assert.Len(t, c.Channel("app/cluster-events").Bindings, 1)
		assert.Equal(t, []string{"app/audit"}, c.Component("app/outer/inner").Consumers[0].Sources)
	})

	t.Run("bindings", func(t *testing.T) {
		assert.Len(t, asm.ServiceBindings(), 2)
		assert.Len(t, asm.ReferenceBindings(), 1)
	})
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"missing uri":         `components: []`,
		"unknown field":       "uri: app\nbogus: 1",
		"unknown contract":    "uri: app\ncomponents:\n  - name: a\n    services:\n      - {name: S, contract: Missing}",
		"unknown callback":    "uri: app\ncontracts:\n  - {interface: A, callback: B}",
		"unknown target":      "uri: app\ncontracts:\n  - {interface: A}\ncomponents:\n  - name: a\n    references:\n      - {name: r, contract: A, targets: [\"b#S\"]}",
		"malformed target":    "uri: app\ncontracts:\n  - {interface: A}\ncomponents:\n  - name: a\n    references:\n      - {name: r, contract: A, targets: [\"b\"]}",
		"unknown channel":     "uri: app\ncomponents:\n  - name: a\n    producers:\n      - {name: p, targets: [missing]}",
		"unknown binding":     "uri: app\ncontracts:\n  - {interface: A}\ncomponents:\n  - name: a\n    services:\n      - name: S\n        contract: A\n        bindings: [{kind: jms}]",
		"unknown impl":        "uri: app\ncomponents:\n  - name: a\n    implementation: {kind: java}",
		"too many targets":    "uri: app\ncontracts:\n  - {interface: A}\ncomponents:\n  - name: b\n    services: [{name: S, contract: A}]\n  - name: a\n    references:\n      - {name: r, contract: A, targets: [\"b#S\", \"b#S\"]}",
		"required reference":  "uri: app\ncontracts:\n  - {interface: A}\ncomponents:\n  - name: a\n    references:\n      - {name: r, contract: A}",
		"duplicate component": "uri: app\ncomponents:\n  - name: a\n  - name: a",
		"promote non child":   "uri: app\ncontracts:\n  - {interface: A}\ncomponents:\n  - name: b\n    services: [{name: S, contract: A}]\n  - name: a\n    services: [{name: S, contract: A, promotes: \"b#S\"}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrInvalidAssembly)
		})
	}
}
