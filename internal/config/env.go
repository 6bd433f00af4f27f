package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix 是所有环境变量覆盖项的统一前缀，例如 CORSPROXY_UPSTREAM_URL。
const EnvPrefix = "CORSPROXY_"

// applyEnvOverrides 仅覆盖已设置的环境变量，未设置的字段保留文件/默认值。
func applyEnvOverrides(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("解析环境变量失败: %w", err)
	}
	return nil
}
