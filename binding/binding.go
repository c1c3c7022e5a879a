// Package binding 提供内置的传输绑定生成器：nats（subject / queue group）与 redis（Pub/Sub channel）。
//
// 绑定描述只记录传输地址与契约信息，不持有连接；执行层在 mq 客户端上按描述收发。
// 经过传输的调用需要序列化，生成的描述一律不可优化。
//
// 基本使用：
//
//	_ = registry.RegisterBindingGenerator(binding.KindNATS, binding.NewNATSGenerator())
//	_ = registry.RegisterBindingGenerator(binding.KindRedis, binding.NewRedisGenerator())
package binding

import (
	"strings"

	"github.com/ceyewan/fabric/model"
	"github.com/ceyewan/fabric/xerrors"
)

const (
	KindNATS  model.BindingKind = "nats"
	KindRedis model.BindingKind = "redis"
)

var (
	// ErrUnexpectedDefinition 绑定定义与生成器类型不符
	ErrUnexpectedDefinition = xerrors.New("binding: unexpected definition")
	// ErrAddressRequired 未配置 subject / channel
	ErrAddressRequired = xerrors.New("binding: transport address is required")
)

// 描述中的属性名
const (
	PropSubject    = "subject"
	PropQueue      = "queue"
	PropChannel    = "channel"
	PropInterface  = "interface"
	PropOperations = "operations"
	PropRole       = "role"
)

// 绑定在连线中的角色
const (
	roleInbound       = "inbound"
	roleOutbound      = "outbound"
	roleServiceTarget = "service_target"
)

// NATSDefinition nats 绑定配置
type NATSDefinition struct {
	BindingName string `yaml:"name"`
	Subject     string `yaml:"subject"`
	// Queue 非空时入站以 queue group 订阅，同组只有一个订阅者收到
	Queue string `yaml:"queue"`
}

func (d *NATSDefinition) Name() string                   { return d.BindingName }
func (d *NATSDefinition) BindingKind() model.BindingKind { return KindNATS }

// RedisDefinition redis Pub/Sub 绑定配置
type RedisDefinition struct {
	BindingName string `yaml:"name"`
	Channel     string `yaml:"channel"`
}

func (d *RedisDefinition) Name() string                   { return d.BindingName }
func (d *RedisDefinition) BindingKind() model.BindingKind { return KindRedis }

// contractProperties 两种绑定共用的契约属性
func contractProperties(c *model.ServiceContract, ops []*model.Operation, role string) map[string]any {
	names := make([]string, 0, len(ops))
	for _, op := range ops {
		names = append(names, op.Name)
	}
	props := map[string]any{
		PropOperations: names,
		PropRole:       role,
	}
	if c != nil {
		props[PropInterface] = c.InterfaceName
	}
	return props
}

func bindingName(b *model.Binding) string {
	if b.Definition == nil {
		return ""
	}
	return b.Definition.Name()
}

func unexpected(b *model.Binding, want model.BindingKind) error {
	return xerrors.Codedf(xerrors.CodeGeneration, ErrUnexpectedDefinition,
		"binding %s has kind %q, want %q", b.URI, b.Kind(), want)
}

// validSubject 发布目标不允许通配符与空 token
func validSubject(subject string, wildcards bool) bool {
	if subject == "" || strings.ContainsAny(subject, " \t\r\n") {
		return false
	}
	for _, tok := range strings.Split(subject, ".") {
		if tok == "" {
			return false
		}
		if !wildcards && (tok == "*" || tok == ">") {
			return false
		}
	}
	return true
}
