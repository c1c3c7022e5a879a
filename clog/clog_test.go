package clog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func newBufferLogger(t *testing.T, cfg *Config, opts ...Option) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := New(cfg, append(opts, WithWriter(buf))...)
	require.NoError(t, err)
	return logger, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "nil config", config: nil},
		{name: "defaults", config: &Config{}},
		{name: "zap backend", config: &Config{Backend: BackendZap, Format: "json"}},
		{name: "invalid level", config: &Config{Level: "verbose"}, wantErr: true},
		{name: "invalid format", config: &Config{Format: "xml"}, wantErr: true},
		{name: "invalid backend", config: &Config{Backend: "logrus"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config, WithWriter(&bytes.Buffer{}))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, lvl)
	assert.Equal(t, "warn", lvl.String())

	lvl, err = ParseLevel("nope")
	assert.Error(t, err)
	assert.Equal(t, InfoLevel, lvl)
}

func TestBackends_JSONOutput(t *testing.T) {
	for _, b := range []string{BackendSlog, BackendZap} {
		t.Run(b, func(t *testing.T) {
			logger, buf := newBufferLogger(t, &Config{Level: "debug", Format: "json", Backend: b},
				WithNamespace("fabric", "wire"))

			logger.With(String("runtime", "node-1")).Info("wire generated",
				Int("operations", 3), Bool("optimizable", true))

			lines := decodeLines(t, buf)
			require.Len(t, lines, 1)
			assert.Equal(t, "wire generated", lines[0]["msg"])
			assert.Equal(t, "INFO", lines[0]["level"])
			assert.Equal(t, "fabric.wire", lines[0][NamespaceKey])
			assert.Equal(t, "node-1", lines[0]["runtime"])
			assert.Equal(t, float64(3), lines[0]["operations"])
			assert.Equal(t, true, lines[0]["optimizable"])
		})
	}
}

func TestSetLevel(t *testing.T) {
	for _, b := range []string{BackendSlog, BackendZap} {
		t.Run(b, func(t *testing.T) {
			logger, buf := newBufferLogger(t, &Config{Level: "info", Format: "json", Backend: b})

			logger.Debug("hidden")
			assert.Empty(t, buf.String())

			require.NoError(t, logger.SetLevel(DebugLevel))
			logger.WithNamespace("child").Debug("visible")
			assert.Contains(t, buf.String(), "visible")
		})
	}
}

func TestWithNamespace_DoesNotLeak(t *testing.T) {
	logger, buf := newBufferLogger(t, &Config{Format: "json"}, WithNamespace("fabric"))

	a := logger.WithNamespace("a")
	_ = logger.WithNamespace("b")
	a.Info("from a")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "fabric.a", lines[0][NamespaceKey])
}

func TestContextFields(t *testing.T) {
	logger, buf := newBufferLogger(t, &Config{Format: "json"}, WithStandardContext(), WithTraceContext())

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = context.WithValue(ctx, "runtime", "node-2")

	logger.InfoContext(ctx, "joined")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "node-2", lines[0]["runtime"])
	assert.Equal(t, traceID.String(), lines[0]["trace_id"])
	assert.Equal(t, spanID.String(), lines[0]["span_id"])
}

func TestErrorFields(t *testing.T) {
	logger, buf := newBufferLogger(t, &Config{Format: "json"})

	logger.Error("send failed", Error(errors.New("boom")), Error(nil))
	logger.Error("generation failed", ErrorWithCode(errors.New("missing"), "GENERATION"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "boom", lines[0]["err_msg"])
	group, ok := lines[1]["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "GENERATION", group["code"])
	assert.Equal(t, "missing", group["msg"])
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Info("nothing")
	assert.NotNil(t, logger.With(String("k", "v")).WithNamespace("x"))
	assert.NoError(t, logger.SetLevel(ErrorLevel))
}
