package topology

import (
	"reflect"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/fabric/xerrors"
)

// Envelope 通道上传输的消息
type Envelope struct {
	Sender string             `msgpack:"s"`
	Target string             `msgpack:"t,omitempty"`
	Type   string             `msgpack:"y"`
	Body   msgpack.RawMessage `msgpack:"b"`
}

// Codec 按名称注册消息类型。工厂返回指针，编码时指针与值都能识别
type Codec struct {
	mu        sync.RWMutex
	factories map[string]func() any
	names     map[reflect.Type]string
}

func NewCodec() *Codec {
	return &Codec{
		factories: make(map[string]func() any),
		names:     make(map[reflect.Type]string),
	}
}

// Register 注册消息类型，名称或类型重复时报错
func (c *Codec) Register(name string, factory func() any) error {
	if name == "" || factory == nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "topology: codec name and factory are required")
	}
	sample := factory()
	t := reflect.TypeOf(sample)
	if t == nil || t.Kind() != reflect.Pointer {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "topology: factory for %s must return a pointer", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.factories[name]; dup {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "topology: message type %s already registered", name)
	}
	if _, dup := c.names[t]; dup {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "topology: go type %s already registered", t)
	}
	c.factories[name] = factory
	c.names[t] = name
	c.names[t.Elem()] = name
	return nil
}

// Encode 封装并编码，target 为空表示广播
func (c *Codec) Encode(sender, target string, payload any) ([]byte, error) {
	c.mu.RLock()
	name, ok := c.names[reflect.TypeOf(payload)]
	c.mu.RUnlock()
	if !ok {
		return nil, xerrors.Wrapf(ErrUnknownMessageType, "%T", payload)
	}

	body, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, xerrors.Wrapf(err, "topology: encode %s", name)
	}
	data, err := msgpack.Marshal(&Envelope{Sender: sender, Target: target, Type: name, Body: body})
	if err != nil {
		return nil, xerrors.Wrap(err, "topology: encode envelope")
	}
	return data, nil
}

// Decode 返回信封与工厂创建并填充的负载
func (c *Codec) Decode(data []byte) (*Envelope, any, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, nil, xerrors.Wrap(err, "topology: decode envelope")
	}

	c.mu.RLock()
	factory, ok := c.factories[env.Type]
	c.mu.RUnlock()
	if !ok {
		return &env, nil, xerrors.Wrapf(ErrUnknownMessageType, "%s from %s", env.Type, env.Sender)
	}

	payload := factory()
	if err := msgpack.Unmarshal(env.Body, payload); err != nil {
		return &env, nil, xerrors.Wrapf(err, "topology: decode %s", env.Type)
	}
	return &env, payload, nil
}
