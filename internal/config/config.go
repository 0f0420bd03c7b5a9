// Package config 提供了示例日志服务的配置管理功能。
// 该包负责从 YAML 配置文件加载配置，并支持通过环境变量覆盖部分配置项。
// 所有配置项都有默认值，默认配置即为服务的固定行为（端口 3000，每 5 秒一条定时记录）。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/oriys/logdemo/internal/telemetry"
	"gopkg.in/yaml.v3"
)

// Config 是应用程序的主配置结构体
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server"`
	// Emitter 定时发射器配置
	Emitter EmitterConfig `yaml:"emitter"`
	// Logging 诊断日志配置（不影响记录流）
	Logging LoggingConfig `yaml:"logging"`
	// Metrics 指标配置，用于 Prometheus 监控
	Metrics MetricsConfig `yaml:"metrics"`
	// Telemetry 遥测配置，用于分布式追踪
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ServerConfig 服务器配置结构体
type ServerConfig struct {
	// HTTPPort HTTP 服务端口
	// 默认值：3000
	HTTPPort int `yaml:"http_port"`
	// MetricsPort 指标服务端口，与 HTTPPort 相同时 /metrics 挂在主路由上
	// 默认值：9090
	MetricsPort int `yaml:"metrics_port"`
	// ShutdownTimeout 优雅关闭超时时间
	// 默认值：10 秒
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// EmitterConfig 定时发射器配置结构体
type EmitterConfig struct {
	// Interval 发射间隔
	// 默认值：5 秒
	Interval time.Duration `yaml:"interval"`
	// Service 定时记录和启动记录中的 service 字段
	// 默认值：example-app
	Service string `yaml:"service"`
	// Seed 随机数种子，0 表示每次启动随机播种
	Seed uint64 `yaml:"seed"`
}

// LoggingConfig 日志配置结构体
type LoggingConfig struct {
	// Level 诊断日志级别：debug、info、warn、error
	// 默认值：info
	Level string `yaml:"level"`
}

// MetricsConfig 指标配置结构体
type MetricsConfig struct {
	// Enabled 是否启用 Prometheus 指标
	Enabled bool `yaml:"enabled"`
	// Namespace 指标名前缀
	// 默认值：logdemo
	Namespace string `yaml:"namespace"`
}

// Default 返回全部使用默认值的配置
func Default() *Config {
	cfg := newConfig()
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg
}

// Load 从指定路径加载配置文件。
// 该函数会读取 YAML 配置文件，应用默认值，处理环境变量覆盖，最后校验配置。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := newConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault 与 Load 相同，但路径为空或文件不存在时返回默认配置
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		cfg, err := Load(path)
		if !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newConfig 返回预置了零值有意义的字段默认值的配置，YAML 中显式写出的值会覆盖它们。
// 采样率 0 表示不采样，因此不能放在 applyDefaults 中按零值补齐。
func newConfig() *Config {
	return &Config{
		Telemetry: telemetry.Config{SampleRate: 1.0},
	}
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid server.metrics_port %d", c.Server.MetricsPort)
	}
	// cron 的固定间隔调度以秒为单位
	if c.Emitter.Interval < time.Second {
		return fmt.Errorf("emitter.interval must be at least 1s, got %s", c.Emitter.Interval)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be within [0, 1], got %v", c.Telemetry.SampleRate)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	return nil
}

// applyEnvOverrides 应用环境变量覆盖
func (c *Config) applyEnvOverrides() {
	if v := readEnvAny("LOGDEMO_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := readEnvAny("LOGDEMO_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}
}

// readEnvAny 按优先级从高到低读取环境变量，返回第一个非空值
func readEnvAny(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

// applyDefaults 应用默认配置值
func (c *Config) applyDefaults() {
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 3000
	}
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = 9090
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Emitter.Interval == 0 {
		c.Emitter.Interval = 5 * time.Second
	}
	if c.Emitter.Service == "" {
		c.Emitter.Service = "example-app"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "logdemo"
	}
	// 遥测服务名称默认为 logdemo
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "logdemo"
	}
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = "development"
	}
}
