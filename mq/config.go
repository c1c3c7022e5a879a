package mq

import (
	"fmt"

	"github.com/ceyewan/fabric/xerrors"
)

// DriverType 传输驱动类型
type DriverType string

const (
	// DriverNATS NATS Core 发布订阅
	DriverNATS DriverType = "nats"
	// DriverRedis Redis Pub/Sub
	DriverRedis DriverType = "redis"
	// DriverMemory 进程内 Hub
	DriverMemory DriverType = "memory"
)

// Config mq 配置
type Config struct {
	// Driver 驱动类型，默认 memory
	Driver DriverType `json:"driver" yaml:"driver" mapstructure:"driver"`
	// BufferSize 每个订阅的本地队列长度，仅 memory 与 redis 驱动使用
	BufferSize int `json:"buffer_size" yaml:"buffer_size" mapstructure:"buffer_size"`
}

func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverNATS, DriverRedis, DriverMemory:
		return nil
	default:
		return xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("mq: unsupported driver %q", c.Driver))
	}
}
