package addressing

import (
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"

	"github.com/ceyewan/fabric/topology"
)

// SocketAddress 某个运行时上可访问的网络地址，按值比较
type SocketAddress struct {
	RuntimeName string `msgpack:"runtime" yaml:"runtime"`
	Zone        string `msgpack:"zone,omitempty" yaml:"zone,omitempty"`
	Protocol    string `msgpack:"protocol" yaml:"protocol"`
	Host        string `msgpack:"host" yaml:"host"`
	Port        int    `msgpack:"port" yaml:"port"`
}

func (a SocketAddress) String() string {
	return fmt.Sprintf("%s://%s@%s", a.Protocol, net.JoinHostPort(a.Host, strconv.Itoa(a.Port)), a.RuntimeName)
}

// AnnouncementType 地址变化类型
type AnnouncementType string

const (
	Activated   AnnouncementType = "activated"
	Deactivated AnnouncementType = "deactivated"
)

// AddressAnnouncement 单个端点地址的上线或下线
type AddressAnnouncement struct {
	EndpointID string           `msgpack:"endpoint"`
	Type       AnnouncementType `msgpack:"type"`
	Address    SocketAddress    `msgpack:"address"`
}

// AddressUpdate 批量公告，用于回复 AddressRequest
type AddressUpdate struct {
	Announcements []AddressAnnouncement `msgpack:"announcements"`
}

// AddressRequest 新加入的运行时请求其他成员重发自己的地址
type AddressRequest struct {
	RuntimeName string `msgpack:"runtime"`
}

// 通道上的消息类型名
const (
	MessageAnnouncement = "address_announcement"
	MessageUpdate       = "address_update"
	MessageRequest      = "address_request"
)

// RegisterMessages 在 codec 中注册地址缓存使用的消息类型
func RegisterMessages(codec *topology.Codec) error {
	if err := codec.Register(MessageAnnouncement, func() any { return &AddressAnnouncement{} }); err != nil {
		return err
	}
	if err := codec.Register(MessageUpdate, func() any { return &AddressUpdate{} }); err != nil {
		return err
	}
	return codec.Register(MessageRequest, func() any { return &AddressRequest{} })
}

// Listener 端点地址监听器。OnUpdate 收到的是完整快照而不是增量
type Listener interface {
	ID() string
	OnUpdate(addresses []SocketAddress)
}

type funcListener struct {
	id string
	fn func([]SocketAddress)
}

func (l *funcListener) ID() string                         { return l.id }
func (l *funcListener) OnUpdate(addresses []SocketAddress) { l.fn(addresses) }

// NewListener 用函数创建监听器，ID 为随机 UUID
func NewListener(fn func(addresses []SocketAddress)) Listener {
	return &funcListener{id: uuid.NewString(), fn: fn}
}
