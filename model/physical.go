package model

// WireSource 物理连线源端描述
type WireSource struct {
	URI           string         `yaml:"uri"`
	Kind          string         `yaml:"kind"`
	Properties    map[string]any `yaml:"properties,omitempty"`
	ClassLoaderID string         `yaml:"class_loader_id"`
	Key           string         `yaml:"key,omitempty"`
	Order         int            `yaml:"order"`
	Optimizable   bool           `yaml:"optimizable"`
}

// WireTarget 物理连线目标端描述
type WireTarget struct {
	URI           string         `yaml:"uri"`
	Kind          string         `yaml:"kind"`
	Properties    map[string]any `yaml:"properties,omitempty"`
	ClassLoaderID string         `yaml:"class_loader_id"`
	CallbackURI   string         `yaml:"callback_uri,omitempty"`
	Callback      bool           `yaml:"callback,omitempty"`
	Optimizable   bool           `yaml:"optimizable"`
}

// Interceptor 挂在调用链上的拦截器元数据，由策略或事务等外部系统提供
type Interceptor struct {
	Kind       string            `yaml:"kind"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// PhysicalOperation 单个操作的物理描述
type PhysicalOperation struct {
	Name         string        `yaml:"name"`
	SourceInputs []DataType    `yaml:"source_inputs,omitempty"`
	TargetInputs []DataType    `yaml:"target_inputs,omitempty"`
	SourceOutput DataType      `yaml:"source_output,omitempty"`
	TargetOutput DataType      `yaml:"target_output,omitempty"`
	Faults       []DataType    `yaml:"faults,omitempty"`
	OneWay       bool          `yaml:"one_way,omitempty"`
	Remote       bool          `yaml:"remote,omitempty"`
	Interceptors []Interceptor `yaml:"interceptors,omitempty"`
}

// PhysicalWire 生成结果。Optimizable 为 true 时执行引擎可以绕过调用链直接调用
type PhysicalWire struct {
	Source      *WireSource          `yaml:"source"`
	Target      *WireTarget          `yaml:"target"`
	Operations  []*PhysicalOperation `yaml:"operations"`
	Optimizable bool                 `yaml:"optimizable"`
}

// DeliveryType 通道事件的投递方式
type DeliveryType string

const (
	// DeliveryLocal 进程内投递
	DeliveryLocal DeliveryType = "local"
	// DeliveryBroadcast 经绑定的传输广播到集群
	DeliveryBroadcast DeliveryType = "broadcast"
)

// ConnectionSource 通道连接源端
type ConnectionSource struct {
	URI           string         `yaml:"uri"`
	Kind          string         `yaml:"kind"`
	Properties    map[string]any `yaml:"properties,omitempty"`
	ClassLoaderID string         `yaml:"class_loader_id"`
}

// ConnectionTarget 通道连接目标端
type ConnectionTarget struct {
	URI           string         `yaml:"uri"`
	Kind          string         `yaml:"kind"`
	Properties    map[string]any `yaml:"properties,omitempty"`
	ClassLoaderID string         `yaml:"class_loader_id"`
}

// ChannelConnection 生产者或消费者与一个通道之间的物理连接
type ChannelConnection struct {
	Source       *ConnectionSource `yaml:"source"`
	Target       *ConnectionTarget `yaml:"target"`
	Topic        string            `yaml:"topic"`
	DeliveryType DeliveryType      `yaml:"delivery_type"`
}
