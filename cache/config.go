package cache

import (
	"time"

	"github.com/ceyewan/fabric/cache/serializer"
	"github.com/ceyewan/fabric/xerrors"
)

// Type 缓存后端类型
type Type string

const (
	TypeMemory Type = "memory"
	TypeRedis  Type = "redis"
)

// Config 缓存配置
type Config struct {
	// Name 缓存名称，redis 后端在未设置 Prefix 时用 "<Name>:" 作为键前缀
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Type 后端类型，默认 memory
	Type Type `json:"type" yaml:"type" mapstructure:"type"`

	// Prefix redis 键前缀
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`

	// Serializer redis 值编码："msgpack"（默认）| "json"
	Serializer string `json:"serializer" yaml:"serializer" mapstructure:"serializer"`

	// Capacity memory 后端最大条目数，默认 10000
	Capacity int `json:"capacity" yaml:"capacity" mapstructure:"capacity"`

	// DefaultTTL Set 未指定 ttl 时使用
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl" mapstructure:"default_ttl"`
}

func (c *Config) setDefaults() {
	if c.Type == "" {
		c.Type = TypeMemory
	}
	if c.Capacity <= 0 {
		c.Capacity = 10000
	}
	if c.Prefix == "" && c.Name != "" {
		c.Prefix = c.Name + ":"
	}
}

func (c *Config) validate() error {
	if c.Name == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "cache: name is required")
	}
	switch c.Type {
	case TypeMemory, TypeRedis:
	default:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "cache: unsupported type %q", c.Type)
	}
	if _, err := serializer.New(c.Serializer); err != nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, err.Error())
	}
	return nil
}
