// Package model 定义逻辑组合图与物理连线描述。
//
// 逻辑图（Component / Service / Reference / Binding / Wire ...）由 assembly 加载，
// 对 wire 生成器只读；物理描述（PhysicalWire 等）是生成结果，交给执行引擎挂载。
// 逻辑图中的指针关系（Component.Parent、Service.Component 等）由构造方负责保持一致。
package model

// ContractKind 契约的描述方式，决定远程连线的操作生成分支
type ContractKind string

const (
	ContractGo     ContractKind = "go"
	ContractWSDL   ContractKind = "wsdl"
	ContractRemote ContractKind = "remote"
)

// DataType 操作参数或返回值的逻辑类型名
type DataType string

// AnyType 非严格匹配时与任何类型兼容
const AnyType DataType = "any"

// Operation 契约上的一个操作
type Operation struct {
	Name    string     `yaml:"name"`
	Inputs  []DataType `yaml:"inputs,omitempty"`
	Output  DataType   `yaml:"output,omitempty"`
	Faults  []DataType `yaml:"faults,omitempty"`
	OneWay  bool       `yaml:"one_way,omitempty"`
	Intents []string   `yaml:"intents,omitempty"`
}

// ServiceContract 服务契约：操作列表、可选的回调契约、是否可远程
type ServiceContract struct {
	InterfaceName string
	Kind          ContractKind
	Operations    []*Operation
	Callback      *ServiceContract
	Remotable     bool
}

// Operation 按名称查找操作
func (c *ServiceContract) Operation(name string) *Operation {
	if c == nil {
		return nil
	}
	for _, op := range c.Operations {
		if op.Name == name {
			return op
		}
	}
	return nil
}

// CallbackOperations 回调契约的操作，无回调时为 nil
func (c *ServiceContract) CallbackOperations() []*Operation {
	if c == nil || c.Callback == nil {
		return nil
	}
	return c.Callback.Operations
}
