// Package clog 为 fabric 运行时提供结构化日志组件。
//
// 默认使用 slog 作为后端，也可以通过 Config.Backend 切换到 zap。
// 两种后端对调用方完全透明，都通过 Logger 接口使用。
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "console",
//	    Output: "stdout",
//	})
//	logger.Info("runtime started", clog.String("runtime", "node-1"))
//
// 使用函数式选项：
//
//	logger, _ := clog.New(&clog.Config{Level: "debug", Format: "json"},
//	    clog.WithNamespace("fabric", "addressing"),
//	    clog.WithTraceContext(),
//	)
package clog

import "github.com/ceyewan/fabric/xerrors"

// New 创建一个新的 Logger 实例
//
// config 为 nil 时使用开发环境默认配置。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig("fabric")
	}
	if err := config.validate(); err != nil {
		return nil, xerrors.Wrap(err, "invalid log config")
	}

	o := applyOptions(opts...)

	h, err := newBackend(config, o)
	if err != nil {
		return nil, err
	}
	return &loggerImpl{backend: h, options: o}, nil
}
