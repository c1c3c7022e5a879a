package wire

import (
	"github.com/ceyewan/fabric/generator"
	"github.com/ceyewan/fabric/model"
	"github.com/ceyewan/fabric/xerrors"
)

// interceptorSource 拦截器生成器的来源，*generator.Registry 实现
type interceptorSource interface {
	Interceptors() []generator.InterceptorGenerator
}

// OperationGenerator 把逻辑操作转换为物理操作，并附加拦截器
type OperationGenerator struct {
	interceptors interceptorSource
}

// NewOperationGenerator 从 source 读取拦截器生成器，source 为 nil 时不附加拦截器
func NewOperationGenerator(source interceptorSource) *OperationGenerator {
	return &OperationGenerator{interceptors: source}
}

// Generate 两端使用相同的操作定义
func (g *OperationGenerator) Generate(ops []*model.Operation) []*model.PhysicalOperation {
	gens := g.generators()
	out := make([]*model.PhysicalOperation, 0, len(ops))
	for _, op := range ops {
		out = append(out, &model.PhysicalOperation{
			Name:         op.Name,
			SourceInputs: op.Inputs,
			TargetInputs: op.Inputs,
			SourceOutput: op.Output,
			TargetOutput: op.Output,
			Faults:       op.Faults,
			OneWay:       op.OneWay,
			Interceptors: collect(gens, op),
		})
	}
	return out
}

// GenerateMatched 按名称把 source 的每个操作与 target 配对，结果保持 source 顺序。
// remote 为 true 时标记为远程操作，并允许两端参数个数不同（由传输层转换）。
func (g *OperationGenerator) GenerateMatched(source, target []*model.Operation, remote bool) ([]*model.PhysicalOperation, error) {
	byName := make(map[string]*model.Operation, len(target))
	for _, op := range target {
		byName[op.Name] = op
	}

	gens := g.generators()
	out := make([]*model.PhysicalOperation, 0, len(source))
	for _, op := range source {
		t, ok := byName[op.Name]
		if !ok {
			return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrOperationNotFound, "operation %s", op.Name)
		}
		if !remote && len(op.Inputs) != len(t.Inputs) {
			return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrOperationMismatch,
				"operation %s has %d inputs, target has %d", op.Name, len(op.Inputs), len(t.Inputs))
		}
		out = append(out, &model.PhysicalOperation{
			Name:         op.Name,
			SourceInputs: op.Inputs,
			TargetInputs: t.Inputs,
			SourceOutput: op.Output,
			TargetOutput: t.Output,
			Faults:       op.Faults,
			OneWay:       op.OneWay,
			Remote:       remote,
			Interceptors: collect(gens, op),
		})
	}
	return out, nil
}

func (g *OperationGenerator) generators() []generator.InterceptorGenerator {
	if g == nil || g.interceptors == nil {
		return nil
	}
	return g.interceptors.Interceptors()
}

func collect(gens []generator.InterceptorGenerator, op *model.Operation) []model.Interceptor {
	var out []model.Interceptor
	for _, gen := range gens {
		out = append(out, gen.Generate(op)...)
	}
	return out
}
