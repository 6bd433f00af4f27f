package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// 默认值沿用最初的本地调试代理：8787 端口 + EO 会议日程 JSON。
const (
	DefaultListenPort     = 8787
	DefaultUpstreamURL    = "https://2026.everythingopen.au/schedule/conference.json"
	DefaultResourcePath   = "/conference.json"
	DefaultUserAgent      = "eo-local-test-proxy"
	DefaultCacheTTL       = 5 * time.Minute
	DefaultTimeout        = 10 * time.Second
	DefaultMaxRetries     = 0
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBodySize    = 16 * 1024 * 1024
)

// Load 读取并解析 TOML 配置文件（path 为空时仅使用默认值），随后叠加
// CORSPROXY_* 环境变量并执行校验。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	applyGlobalDefaults(&cfg.Global)
	applyUpstreamDefaults(&cfg.Upstream)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", DefaultListenPort)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("TraceEndpoint", "")
	v.SetDefault("Upstream.URL", DefaultUpstreamURL)
	v.SetDefault("Upstream.ResourcePath", DefaultResourcePath)
	v.SetDefault("Upstream.UserAgent", DefaultUserAgent)
	v.SetDefault("Upstream.Proxy", "")
	v.SetDefault("Upstream.CacheTTL", "5m")
	v.SetDefault("Upstream.Timeout", "10s")
	v.SetDefault("Upstream.MaxRetries", DefaultMaxRetries)
	v.SetDefault("Upstream.InitialBackoff", "500ms")
	v.SetDefault("Upstream.MaxBodySize", DefaultMaxBodySize)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = DefaultListenPort
	}
	if strings.TrimSpace(g.LogLevel) == "" {
		g.LogLevel = "info"
	}
}

func applyUpstreamDefaults(u *UpstreamConfig) {
	u.URL = strings.TrimSpace(u.URL)
	u.Proxy = strings.TrimSpace(u.Proxy)
	if u.ResourcePath = strings.TrimSpace(u.ResourcePath); u.ResourcePath == "" {
		u.ResourcePath = DefaultResourcePath
	}
	if !strings.HasPrefix(u.ResourcePath, "/") {
		u.ResourcePath = "/" + u.ResourcePath
	}
	if strings.TrimSpace(u.UserAgent) == "" {
		u.UserAgent = DefaultUserAgent
	}
	if u.CacheTTL.DurationValue() == 0 {
		u.CacheTTL = Duration(DefaultCacheTTL)
	}
	if u.Timeout.DurationValue() == 0 {
		u.Timeout = Duration(DefaultTimeout)
	}
	if u.InitialBackoff.DurationValue() == 0 {
		u.InitialBackoff = Duration(DefaultInitialBackoff)
	}
	if u.MaxBodySize == 0 {
		u.MaxBodySize = DefaultMaxBodySize
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
