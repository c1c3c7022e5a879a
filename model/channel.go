package model

// Channel 发布订阅通道
type Channel struct {
	URI      string
	Name     string
	Zone     string
	Bindings []*Binding
}

// Producer 组件向通道发送事件的端点
type Producer struct {
	URI       string
	Name      string
	Component *Component
	Contract  *ServiceContract
	Targets   []string // 通道 URI
}

// Consumer 组件从通道接收事件的端点
type Consumer struct {
	URI       string
	Name      string
	Component *Component
	Contract  *ServiceContract
	Sources   []string // 通道 URI
}

// Composite 组合体：组件树的根与其声明的通道、连线
type Composite struct {
	URI        string
	Components []*Component
	Channels   map[string]*Channel
	Wires      []*Wire
}

// Channel 按 URI 查找通道
func (c *Composite) Channel(uri string) *Channel {
	if c == nil {
		return nil
	}
	return c.Channels[uri]
}

// Component 按 URI 深度优先查找组件
func (c *Composite) Component(uri string) *Component {
	var find func([]*Component) *Component
	find = func(cs []*Component) *Component {
		for _, comp := range cs {
			if comp.URI == uri {
				return comp
			}
			if found := find(comp.Children); found != nil {
				return found
			}
		}
		return nil
	}
	return find(c.Components)
}

// Walk 深度优先遍历全部组件
func (c *Composite) Walk(fn func(*Component)) {
	var walk func([]*Component)
	walk = func(cs []*Component) {
		for _, comp := range cs {
			fn(comp)
			walk(comp.Children)
		}
	}
	walk(c.Components)
}
