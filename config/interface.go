// Package config 为 fabric 提供统一的配置加载能力，基于 Viper 实现。
//
// 配置优先级：环境变量 > .env 文件 > 环境特定配置 (<name>.<env>.yaml) > 基础配置
//
// 基本使用：
//
//	loader, _ := config.New(&config.Config{
//	    Name:      "fabric",
//	    Paths:     []string{"./config"},
//	    EnvPrefix: "FABRIC",
//	}, config.WithLogger(logger))
//	_ = loader.Load(ctx)
//
//	var cfg runtime.Config
//	_ = loader.Unmarshal(&cfg)
//
//	ch, _ := loader.Watch(ctx, "log.level")
//	for ev := range ch {
//	    logger.Info("config changed", clog.Any("value", ev.Value))
//	}
package config

import (
	"context"
	"time"
)

// Loader 配置加载器
type Loader interface {
	// Load 依次加载各个来源并开始监听文件变化
	Load(ctx context.Context) error

	Get(key string) any
	Unmarshal(v any) error
	UnmarshalKey(key string, v any) error

	// Watch 监听某个 key 的变化，ctx 取消后通道关闭
	Watch(ctx context.Context, key string) (<-chan Event, error)

	Validate() error
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file"
	Timestamp time.Time
}
