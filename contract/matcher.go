// Package contract 判断服务契约之间的兼容性。
//
// 判断规则：
//   - 接口名相同直接兼容
//   - 否则 source 的每个操作都要在 target 上找到同名、同参数个数、同 one-way 的操作
//   - strict 模式下参数、返回值与异常类型必须完全一致；非 strict 模式下 model.AnyType 与任何类型兼容
//   - source 声明了回调契约时，target 也必须有兼容的回调契约
//
// Matcher 无状态，可并发使用。
package contract

import (
	"fmt"

	"github.com/ceyewan/fabric/model"
)

// MatchResult 匹配结果，不兼容时 Reason 说明第一处差异
type MatchResult struct {
	Assignable bool
	Reason     string
}

func assignable() MatchResult { return MatchResult{Assignable: true} }

func mismatch(format string, args ...any) MatchResult {
	return MatchResult{Reason: fmt.Sprintf(format, args...)}
}

// Matcher 契约匹配器
type Matcher interface {
	// IsAssignableFrom 判断 target 能否满足 source 的要求
	IsAssignableFrom(source, target *model.ServiceContract, strict bool) MatchResult
}

// NewMatcher 返回默认匹配器
func NewMatcher() Matcher {
	return matcher{}
}

type matcher struct{}

func (m matcher) IsAssignableFrom(source, target *model.ServiceContract, strict bool) MatchResult {
	if source == nil || target == nil {
		return mismatch("contract is nil")
	}
	if source.InterfaceName != "" && source.InterfaceName == target.InterfaceName {
		return assignable()
	}

	for _, op := range source.Operations {
		candidate := target.Operation(op.Name)
		if candidate == nil {
			return mismatch("operation %s not found on %s", op.Name, target.InterfaceName)
		}
		if r := matchOperation(op, candidate, strict); !r.Assignable {
			return r
		}
	}

	if source.Callback != nil {
		if target.Callback == nil {
			return mismatch("callback contract %s not declared on %s", source.Callback.InterfaceName, target.InterfaceName)
		}
		if r := m.IsAssignableFrom(source.Callback, target.Callback, strict); !r.Assignable {
			return mismatch("callback: %s", r.Reason)
		}
	}
	return assignable()
}

func matchOperation(source, target *model.Operation, strict bool) MatchResult {
	if source.OneWay != target.OneWay {
		return mismatch("operation %s one-way mismatch", source.Name)
	}
	if len(source.Inputs) != len(target.Inputs) {
		return mismatch("operation %s expects %d inputs, found %d", source.Name, len(source.Inputs), len(target.Inputs))
	}
	for i := range source.Inputs {
		if !matchType(source.Inputs[i], target.Inputs[i], strict) {
			return mismatch("operation %s input %d: %s is not assignable from %s", source.Name, i, source.Inputs[i], target.Inputs[i])
		}
	}
	if !matchType(source.Output, target.Output, strict) {
		return mismatch("operation %s output: %s is not assignable from %s", source.Name, source.Output, target.Output)
	}
	if strict {
		if len(source.Faults) != len(target.Faults) {
			return mismatch("operation %s fault count differs", source.Name)
		}
		for i := range source.Faults {
			if source.Faults[i] != target.Faults[i] {
				return mismatch("operation %s fault %d differs", source.Name, i)
			}
		}
	}
	return assignable()
}

func matchType(a, b model.DataType, strict bool) bool {
	if a == b {
		return true
	}
	if strict {
		return false
	}
	return a == model.AnyType || b == model.AnyType
}
