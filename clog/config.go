package clog

import (
	"fmt"
	"strings"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// 支持的日志后端
const (
	BackendSlog = "slog"
	BackendZap  = "zap"
)

// Config 日志配置
//
//	Level:      日志级别 (debug|info|warn|error|fatal)
//	Format:     输出格式 (json|console)
//	Output:     输出目标 (stdout|stderr|文件路径)
//	AddSource:  是否输出调用位置
//	SourceRoot: 调用位置的路径前缀，用于裁剪
//	Backend:    底层实现 (slog|zap)
type Config struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level"`
	Format     string `json:"format" yaml:"format" mapstructure:"format"`
	Output     string `json:"output" yaml:"output" mapstructure:"output"`
	AddSource  bool   `json:"addSource" yaml:"addSource" mapstructure:"add_source"`
	SourceRoot string `json:"sourceRoot" yaml:"sourceRoot" mapstructure:"source_root"`
	Backend    string `json:"backend" yaml:"backend" mapstructure:"backend"`
}

// NewDevDefaultConfig 开发环境默认配置：debug 级别，console 输出，带调用位置
func NewDevDefaultConfig(sourceRoot string) *Config {
	return &Config{
		Level:      "debug",
		Format:     "console",
		Output:     "stdout",
		AddSource:  true,
		SourceRoot: sourceRoot,
		Backend:    BackendSlog,
	}
}

// NewProdDefaultConfig 生产环境默认配置：info 级别，json 输出
func NewProdDefaultConfig() *Config {
	return &Config{
		Level:   "info",
		Format:  "json",
		Output:  "stdout",
		Backend: BackendSlog,
	}
}

func (c *Config) validate() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
	if c.Backend == "" {
		c.Backend = BackendSlog
	}

	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid format: %s, must be json or console", c.Format)
	}
	switch strings.ToLower(c.Backend) {
	case BackendSlog, BackendZap:
	default:
		return fmt.Errorf("invalid backend: %s, must be slog or zap", c.Backend)
	}
	return nil
}
