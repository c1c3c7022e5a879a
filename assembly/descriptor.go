package assembly

import (
	"github.com/ceyewan/fabric/resource"
)

// 组合体描述文件的 YAML 结构

type descriptor struct {
	URI        string          `yaml:"uri"`
	Contracts  []contractSpec  `yaml:"contracts"`
	Channels   []channelSpec   `yaml:"channels"`
	Components []componentSpec `yaml:"components"`
}

type contractSpec struct {
	Interface  string          `yaml:"interface"`
	Kind       string          `yaml:"kind"`
	Remotable  bool            `yaml:"remotable"`
	Callback   string          `yaml:"callback"`
	Operations []operationSpec `yaml:"operations"`
}

type operationSpec struct {
	Name    string   `yaml:"name"`
	Inputs  []string `yaml:"inputs"`
	Output  string   `yaml:"output"`
	Faults  []string `yaml:"faults"`
	OneWay  bool     `yaml:"one_way"`
	Intents []string `yaml:"intents"`
}

type implementationSpec struct {
	Kind string `yaml:"kind"`
	Type string `yaml:"type"`
}

type componentTypeSpec struct {
	Key   *string `yaml:"key"`
	Order *int    `yaml:"order"`
}

type componentSpec struct {
	Name           string             `yaml:"name"`
	Zone           string             `yaml:"zone"`
	Contribution   string             `yaml:"contribution"`
	Key            *string            `yaml:"key"`
	Order          *int               `yaml:"order"`
	Implementation implementationSpec `yaml:"implementation"`
	ComponentType  *componentTypeSpec `yaml:"component_type"`
	Services       []serviceSpec      `yaml:"services"`
	References     []referenceSpec    `yaml:"references"`
	Resources      []resourceSpec     `yaml:"resources"`
	Producers      []producerSpec     `yaml:"producers"`
	Consumers      []consumerSpec     `yaml:"consumers"`
	Components     []componentSpec    `yaml:"components"`
}

type bindingSpec struct {
	Kind    string `yaml:"kind"`
	Name    string `yaml:"name"`
	Subject string `yaml:"subject"`
	Queue   string `yaml:"queue"`
	Channel string `yaml:"channel"`
}

type serviceSpec struct {
	Name     string `yaml:"name"`
	Contract string `yaml:"contract"`
	// Promotes 子组件服务，形如 "inner#Greeter"
	Promotes         string        `yaml:"promotes"`
	Bindings         []bindingSpec `yaml:"bindings"`
	CallbackBindings []bindingSpec `yaml:"callback_bindings"`
}

type referenceSpec struct {
	Name         string `yaml:"name"`
	Contract     string `yaml:"contract"`
	Multiplicity string `yaml:"multiplicity"`
	// Targets 组合体内的服务，形如 "outer/inner#Greeter"
	Targets          []string      `yaml:"targets"`
	Bindings         []bindingSpec `yaml:"bindings"`
	CallbackBindings []bindingSpec `yaml:"callback_bindings"`
}

type resourceSpec struct {
	Name     string               `yaml:"name"`
	Kind     string               `yaml:"kind"`
	Contract string               `yaml:"contract"`
	Caches   []resource.CacheSpec `yaml:"caches"`
}

type producerSpec struct {
	Name     string   `yaml:"name"`
	Contract string   `yaml:"contract"`
	Targets  []string `yaml:"targets"`
}

type consumerSpec struct {
	Name     string   `yaml:"name"`
	Contract string   `yaml:"contract"`
	Sources  []string `yaml:"sources"`
}

type channelSpec struct {
	Name     string        `yaml:"name"`
	Zone     string        `yaml:"zone"`
	Bindings []bindingSpec `yaml:"bindings"`
}
