package clog

import "context"

// Logger 日志接口
//
// 五个级别 Debug、Info、Warn、Error、Fatal，各有带 Context 的版本。
// Fatal 写出日志后调用 os.Exit(1)。
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// 带 Context 的版本会提取 WithContextField / WithTraceContext 配置的字段
	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 创建带预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 在现有命名空间后追加
	//
	//	logger.WithNamespace("fabric").WithNamespace("wire") // namespace=fabric.wire
	WithNamespace(parts ...string) Logger

	// SetLevel 运行时调整级别，对所有派生 Logger 生效
	SetLevel(level Level) error

	// Flush 同步缓冲区
	Flush()
}
