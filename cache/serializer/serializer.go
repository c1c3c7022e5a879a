// Package serializer 缓存值的编解码
package serializer

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/fabric/xerrors"
)

// ErrUnsupported 不支持的序列化器类型
var ErrUnsupported = xerrors.New("serializer: unsupported type")

// Serializer 序列化接口
type Serializer interface {
	Marshal(value any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

type msgpackSerializer struct{}

func (msgpackSerializer) Marshal(value any) ([]byte, error)     { return msgpack.Marshal(value) }
func (msgpackSerializer) Unmarshal(data []byte, dest any) error { return msgpack.Unmarshal(data, dest) }

type jsonSerializer struct{}

func (jsonSerializer) Marshal(value any) ([]byte, error)     { return json.Marshal(value) }
func (jsonSerializer) Unmarshal(data []byte, dest any) error { return json.Unmarshal(data, dest) }

// New 按名称返回序列化器，空字符串为 msgpack
func New(name string) (Serializer, error) {
	switch name {
	case "msgpack", "":
		return msgpackSerializer{}, nil
	case "json":
		return jsonSerializer{}, nil
	default:
		return nil, xerrors.Wrapf(ErrUnsupported, "%q", name)
	}
}
