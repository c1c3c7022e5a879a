package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ceyewan/fabric/model"
)

func op(name string, inputs ...model.DataType) *model.Operation {
	return &model.Operation{Name: name, Inputs: inputs, Output: "string"}
}

func TestIsAssignableFrom(t *testing.T) {
	m := NewMatcher()

	tests := []struct {
		name   string
		source *model.ServiceContract
		target *model.ServiceContract
		strict bool
		want   bool
	}{
		{
			name:   "same interface name",
			source: &model.ServiceContract{InterfaceName: "Quote"},
			target: &model.ServiceContract{InterfaceName: "Quote"},
			want:   true,
		},
		{
			name:   "structurally equal",
			source: &model.ServiceContract{InterfaceName: "A", Operations: []*model.Operation{op("get", "int")}},
			target: &model.ServiceContract{InterfaceName: "B", Operations: []*model.Operation{op("get", "int"), op("extra")}},
			strict: true,
			want:   true,
		},
		{
			name:   "missing operation",
			source: &model.ServiceContract{InterfaceName: "A", Operations: []*model.Operation{op("get")}},
			target: &model.ServiceContract{InterfaceName: "B", Operations: []*model.Operation{op("put")}},
		},
		{
			name:   "arity differs",
			source: &model.ServiceContract{InterfaceName: "A", Operations: []*model.Operation{op("get", "int")}},
			target: &model.ServiceContract{InterfaceName: "B", Operations: []*model.Operation{op("get")}},
		},
		{
			name:   "any matches loosely",
			source: &model.ServiceContract{InterfaceName: "A", Operations: []*model.Operation{op("get", model.AnyType)}},
			target: &model.ServiceContract{InterfaceName: "B", Operations: []*model.Operation{op("get", "int")}},
			want:   true,
		},
		{
			name:   "any rejected under strict",
			source: &model.ServiceContract{InterfaceName: "A", Operations: []*model.Operation{op("get", model.AnyType)}},
			target: &model.ServiceContract{InterfaceName: "B", Operations: []*model.Operation{op("get", "int")}},
			strict: true,
		},
		{
			name: "one-way mismatch",
			source: &model.ServiceContract{InterfaceName: "A", Operations: []*model.Operation{
				{Name: "fire", OneWay: true}}},
			target: &model.ServiceContract{InterfaceName: "B", Operations: []*model.Operation{{Name: "fire"}}},
		},
		{
			name: "callback required",
			source: &model.ServiceContract{InterfaceName: "A",
				Callback: &model.ServiceContract{InterfaceName: "ACallback"}},
			target: &model.ServiceContract{InterfaceName: "B"},
		},
		{
			name: "callback checked recursively",
			source: &model.ServiceContract{InterfaceName: "A",
				Callback: &model.ServiceContract{InterfaceName: "CB1", Operations: []*model.Operation{op("done")}}},
			target: &model.ServiceContract{InterfaceName: "B",
				Callback: &model.ServiceContract{InterfaceName: "CB2", Operations: []*model.Operation{op("done")}}},
			want: true,
		},
		{
			name:   "nil contract",
			source: nil,
			target: &model.ServiceContract{InterfaceName: "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := m.IsAssignableFrom(tt.source, tt.target, tt.strict)
			assert.Equal(t, tt.want, r.Assignable, r.Reason)
			if !tt.want {
				assert.NotEmpty(t, r.Reason)
			}
		})
	}
}
