package metrics

// Config 指标配置
//
//	metrics:
//	  enabled: true
//	  service_name: "fabricd"
//	  version: "v0.1.0"
//	  port: 9090
//	  path: "/metrics"
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
	// Port 大于 0 时 Server 在该端口暴露 Prometheus 指标
	Port int    `mapstructure:"port"`
	Path string `mapstructure:"path"`
}

// NewDevDefaultConfig 开发环境配置：启用指标，不监听端口
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Version:     "dev",
		Path:        "/metrics",
	}
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "fabric"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}
