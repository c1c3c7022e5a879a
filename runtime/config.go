package runtime

import (
	"net/url"
	"strings"

	"github.com/ceyewan/fabric/addressing"
	"github.com/ceyewan/fabric/breaker"
	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/config"
	"github.com/ceyewan/fabric/connector"
	"github.com/ceyewan/fabric/metrics"
	"github.com/ceyewan/fabric/mq"
	"github.com/ceyewan/fabric/topology"
	"github.com/ceyewan/fabric/trace"
	"github.com/ceyewan/fabric/xerrors"
)

// Mode 运行时在域中的角色
type Mode string

const (
	// ModeNode 域内节点，参与成员关系并复制地址
	ModeNode Mode = "node"
	// ModeController 独立控制器，不建立拓扑
	ModeController Mode = "controller"
)

// HostInfo 运行时身份
type HostInfo struct {
	RuntimeName string `mapstructure:"runtime_name" yaml:"runtime_name"`
	// Domain 域 URI，如 "fabric://acme"
	Domain string `mapstructure:"domain" yaml:"domain"`
	Zone   string `mapstructure:"zone" yaml:"zone"`
	Mode   Mode   `mapstructure:"mode" yaml:"mode"`
}

// DomainAuthority 域 URI 的 authority 部分，没有 scheme 时返回原值
func (h HostInfo) DomainAuthority() string {
	if u, err := url.Parse(h.Domain); err == nil && u.Host != "" {
		return u.Host
	}
	return h.Domain
}

// 成员关系实现
const (
	MembershipStatic = "static"
	MembershipEtcd   = "etcd"
)

// MembershipConfig 成员关系配置
type MembershipConfig struct {
	// Kind static 或 etcd。为空时配置了 etcd 连接则用 etcd，否则 static
	Kind string              `mapstructure:"kind"`
	Etcd topology.EtcdConfig `mapstructure:"etcd"`
}

// Config 运行时配置
//
//	host:
//	  runtime_name: vm1
//	  domain: fabric://acme
//	  zone: z1
//	  mode: node
//	mq:
//	  driver: nats
//	nats:
//	  url: nats://127.0.0.1:4222
//	etcd:
//	  endpoints: ["127.0.0.1:2379"]
type Config struct {
	Host       HostInfo          `mapstructure:"host"`
	Log        *clog.Config      `mapstructure:"log"`
	Metrics    *metrics.Config   `mapstructure:"metrics"`
	Trace      *trace.Config     `mapstructure:"trace"`
	MQ         *mq.Config        `mapstructure:"mq"`
	Membership MembershipConfig  `mapstructure:"membership"`
	Topology   topology.Config   `mapstructure:"topology"`
	Breaker    *breaker.Config   `mapstructure:"breaker"`
	Addressing addressing.Config `mapstructure:"addressing"`

	NATS  *connector.NATSConfig  `mapstructure:"nats"`
	Redis *connector.RedisConfig `mapstructure:"redis"`
	Etcd  *connector.EtcdConfig  `mapstructure:"etcd"`
}

func (c *Config) setDefaults() {
	if c.Host.Mode == "" {
		c.Host.Mode = ModeNode
	}
	if c.Log == nil {
		c.Log = clog.NewProdDefaultConfig()
	}
	if c.MQ == nil {
		c.MQ = &mq.Config{}
	}
	if c.Membership.Kind == "" {
		c.Membership.Kind = MembershipStatic
		if c.Etcd != nil {
			c.Membership.Kind = MembershipEtcd
		}
	}
	if c.Breaker == nil {
		c.Breaker = breaker.DefaultConfig()
	}
	c.Topology.RuntimeName = c.Host.RuntimeName
	c.Addressing.RuntimeName = c.Host.RuntimeName
	c.Addressing.Domain = c.Host.DomainAuthority()
	c.Addressing.Node = c.Host.Mode == ModeNode
	if c.Membership.Etcd.Domain == "" {
		c.Membership.Etcd.Domain = c.Host.DomainAuthority()
	}
}

// Validate 填充默认值并检查配置，失败时错误匹配 config.ErrValidationFailed
func (c *Config) Validate() error {
	c.setDefaults()

	var errs []error
	if c.Host.RuntimeName == "" || strings.ContainsAny(c.Host.RuntimeName, "./*> \t") {
		errs = append(errs, xerrors.Wrapf(config.ErrValidationFailed, "invalid host.runtime_name %q", c.Host.RuntimeName))
	}
	switch c.Host.Mode {
	case ModeNode:
		if c.Host.Domain == "" {
			errs = append(errs, xerrors.Wrap(config.ErrValidationFailed, "host.domain is required in node mode"))
		}
	case ModeController:
	default:
		errs = append(errs, xerrors.Wrapf(config.ErrValidationFailed, "unknown host.mode %q", c.Host.Mode))
	}

	switch c.MQ.Driver {
	case mq.DriverNATS:
		if c.NATS == nil {
			errs = append(errs, xerrors.Wrap(config.ErrValidationFailed, "mq driver nats requires a nats section"))
		}
	case mq.DriverRedis:
		if c.Redis == nil {
			errs = append(errs, xerrors.Wrap(config.ErrValidationFailed, "mq driver redis requires a redis section"))
		}
	}

	switch c.Membership.Kind {
	case MembershipStatic:
	case MembershipEtcd:
		if c.Etcd == nil && c.Host.Mode == ModeNode {
			errs = append(errs, xerrors.Wrap(config.ErrValidationFailed, "etcd membership requires an etcd section"))
		}
	default:
		errs = append(errs, xerrors.Wrapf(config.ErrValidationFailed, "unknown membership.kind %q", c.Membership.Kind))
	}
	return xerrors.Combine(errs...)
}
