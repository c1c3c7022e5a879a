package clog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBackend(config *Config, o *options) (backend, error) {
	w, err := openWriter(config.Output, o)
	if err != nil {
		return nil, err
	}
	level, _ := ParseLevel(config.Level)

	if strings.ToLower(config.Backend) == BackendZap {
		return newZapBackend(config, w, level.slogLevel()), nil
	}
	return newSlogBackend(config, w, level.slogLevel()), nil
}

func openWriter(output string, o *options) (io.Writer, error) {
	if o.writer != nil {
		return o.writer, nil
	}
	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log output %s: %w", output, err)
		}
		return f, nil
	}
}

// trimSource 按 SourceRoot 裁剪调用位置
func trimSource(root, file string) string {
	if root == "" {
		return file
	}
	if rel, err := filepath.Rel(root, file); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	if idx := strings.Index(file, root); idx != -1 {
		return file[idx:]
	}
	return file
}

// slogBackend 封装 slog 内置 Handler，负责级别显示、时间格式与 caller 裁剪
type slogBackend struct {
	slog.Handler
	levelVar *slog.LevelVar
}

func newSlogBackend(config *Config, w io.Writer, level slog.Level) *slogBackend {
	lv := new(slog.LevelVar)
	lv.Set(level)

	opts := &slog.HandlerOptions{
		AddSource: config.AddSource,
		Level:     lv,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				if l, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelName(l))
				}
			case slog.TimeKey:
				if a.Value.Kind() == slog.KindTime {
					a.Value = slog.StringValue(a.Value.Time().Format(timeFormat))
				}
			case slog.SourceKey:
				if src, ok := a.Value.Any().(*slog.Source); ok {
					return slog.String("caller", fmt.Sprintf("%s:%d", trimSource(config.SourceRoot, src.File), src.Line))
				}
			}
			return a
		},
	}

	var h slog.Handler
	if strings.ToLower(config.Format) == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &slogBackend{Handler: h, levelVar: lv}
}

func (b *slogBackend) setLevel(l slog.Level) { b.levelVar.Set(l) }

func (b *slogBackend) flush() {}

// zapBackend 把 slog.Record 转换为 zap 的 Entry 写入 zapcore.Core
type zapBackend struct {
	core       zapcore.Core
	level      zap.AtomicLevel
	sourceRoot string
	addSource  bool
	groups     []string
}

func newZapBackend(config *Config, w io.Writer, level slog.Level) *zapBackend {
	var encCfg zapcore.EncoderConfig
	if strings.ToLower(config.Format) == "json" {
		encCfg = zap.NewProductionEncoderConfig()
	} else {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeFormat)
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.CallerKey = zapcore.OmitKey
	if config.AddSource {
		encCfg.CallerKey = "caller"
		root := config.SourceRoot
		encCfg.EncodeCaller = func(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(fmt.Sprintf("%s:%d", trimSource(root, c.File), c.Line))
		}
	}

	var enc zapcore.Encoder
	if strings.ToLower(config.Format) == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	atom := zap.NewAtomicLevelAt(toZapLevel(level))
	return &zapBackend{
		core:       zapcore.NewCore(enc, zapcore.AddSync(w), atom),
		level:      atom,
		sourceRoot: config.SourceRoot,
		addSource:  config.AddSource,
	}
}

func toZapLevel(l slog.Level) zapcore.Level {
	switch {
	case l <= slog.LevelDebug:
		return zapcore.DebugLevel
	case l <= slog.LevelInfo:
		return zapcore.InfoLevel
	case l <= slog.LevelWarn:
		return zapcore.WarnLevel
	case l <= slog.LevelError:
		return zapcore.ErrorLevel
	default:
		// 直接写 core，不会触发 zap 自身的退出逻辑
		return zapcore.FatalLevel
	}
}

func (b *zapBackend) Enabled(_ context.Context, l slog.Level) bool {
	return b.core.Enabled(toZapLevel(l))
}

func (b *zapBackend) Handle(_ context.Context, r slog.Record) error {
	ent := zapcore.Entry{
		Level:   toZapLevel(r.Level),
		Time:    r.Time,
		Message: r.Message,
	}
	if b.addSource && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		ent.Caller = zapcore.NewEntryCaller(frame.PC, frame.File, frame.Line, true)
	}

	fields := make([]zapcore.Field, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		fields = appendZapField(fields, b.groups, a)
		return true
	})
	return b.core.Write(ent, fields)
}

func (b *zapBackend) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make([]zapcore.Field, 0, len(attrs))
	for _, a := range attrs {
		fields = appendZapField(fields, b.groups, a)
	}
	nb := *b
	nb.core = b.core.With(fields)
	return &nb
}

func (b *zapBackend) WithGroup(name string) slog.Handler {
	nb := *b
	nb.groups = append(append([]string(nil), b.groups...), name)
	return &nb
}

func (b *zapBackend) setLevel(l slog.Level) { b.level.SetLevel(toZapLevel(l)) }

func (b *zapBackend) flush() { _ = b.core.Sync() }

// appendZapField 分组属性展开为 "group.key"
func appendZapField(fields []zapcore.Field, groups []string, a slog.Attr) []zapcore.Field {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		sub := a.Value.Group()
		prefix := groups
		if a.Key != "" {
			prefix = append(append([]string(nil), groups...), a.Key)
		}
		for _, ga := range sub {
			fields = appendZapField(fields, prefix, ga)
		}
		return fields
	}
	if a.Key == "" {
		return fields
	}
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + a.Key
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return append(fields, zap.String(key, a.Value.String()))
	case slog.KindInt64:
		return append(fields, zap.Int64(key, a.Value.Int64()))
	case slog.KindUint64:
		return append(fields, zap.Uint64(key, a.Value.Uint64()))
	case slog.KindFloat64:
		return append(fields, zap.Float64(key, a.Value.Float64()))
	case slog.KindBool:
		return append(fields, zap.Bool(key, a.Value.Bool()))
	case slog.KindDuration:
		return append(fields, zap.Duration(key, a.Value.Duration()))
	case slog.KindTime:
		return append(fields, zap.Time(key, a.Value.Time()))
	default:
		return append(fields, zap.Any(key, a.Value.Any()))
	}
}
