package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 与环境变量都可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行时行为：监听端口、日志与链路追踪。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort" env:"LISTEN_PORT"`
	LogLevel      string `mapstructure:"LogLevel" env:"LOG_LEVEL"`
	LogFilePath   string `mapstructure:"LogFilePath" env:"LOG_FILE_PATH"`
	LogMaxSize    int    `mapstructure:"LogMaxSize" env:"LOG_MAX_SIZE"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups" env:"LOG_MAX_BACKUPS"`
	LogCompress   bool   `mapstructure:"LogCompress" env:"LOG_COMPRESS"`
	TraceEndpoint string `mapstructure:"TraceEndpoint" env:"TRACE_ENDPOINT"`
}

// UpstreamConfig 决定代理对外暴露的资源路径，以及如何访问唯一的上游 JSON 资源。
type UpstreamConfig struct {
	URL            string   `mapstructure:"URL" env:"URL"`
	ResourcePath   string   `mapstructure:"ResourcePath" env:"RESOURCE_PATH"`
	UserAgent      string   `mapstructure:"UserAgent" env:"USER_AGENT"`
	Proxy          string   `mapstructure:"Proxy" env:"PROXY"`
	CacheTTL       Duration `mapstructure:"CacheTTL" env:"CACHE_TTL"`
	Timeout        Duration `mapstructure:"Timeout" env:"TIMEOUT"`
	MaxRetries     int      `mapstructure:"MaxRetries" env:"MAX_RETRIES"`
	InitialBackoff Duration `mapstructure:"InitialBackoff" env:"INITIAL_BACKOFF"`
	MaxBodySize    int64    `mapstructure:"MaxBodySize" env:"MAX_BODY_SIZE"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global   GlobalConfig   `mapstructure:",squash"`
	Upstream UpstreamConfig `mapstructure:"Upstream" envPrefix:"UPSTREAM_"`
}

// CacheTTL 返回缓存新鲜度窗口。
func (c *Config) CacheTTL() time.Duration {
	return c.Upstream.CacheTTL.DurationValue()
}

// UpstreamTimeout 返回单次刷新（含重试）的总耗时上限。
func (c *Config) UpstreamTimeout() time.Duration {
	return c.Upstream.Timeout.DurationValue()
}

// HasProxy 表示是否通过出站代理访问上游。
func (u UpstreamConfig) HasProxy() bool {
	return strings.TrimSpace(u.Proxy) != ""
}
