package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// diagnosticsPrefix 保留给 /-/status 等诊断接口，资源路径不能与之冲突。
const diagnosticsPrefix = "/-/"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "仅支持 trace/debug/info/warn/error/fatal/panic")
	}
	if g.TraceEndpoint != "" {
		if err := validateHTTPURL(g.TraceEndpoint); err != nil {
			return fmt.Errorf("Global.TraceEndpoint: %w", err)
		}
	}

	u := c.Upstream
	if err := validateHTTPURL(u.URL); err != nil {
		return fmt.Errorf("%s: %w", upstreamField("URL"), err)
	}
	if u.Proxy != "" {
		if err := validateHTTPURL(u.Proxy); err != nil {
			return fmt.Errorf("%s: %w", upstreamField("Proxy"), err)
		}
	}
	if err := validateResourcePath(u.ResourcePath); err != nil {
		return fmt.Errorf("%s: %w", upstreamField("ResourcePath"), err)
	}
	if strings.TrimSpace(u.UserAgent) == "" {
		return newFieldError(upstreamField("UserAgent"), "不能为空")
	}
	if u.CacheTTL.DurationValue() <= 0 {
		return newFieldError(upstreamField("CacheTTL"), "必须大于 0")
	}
	if u.Timeout.DurationValue() <= 0 {
		return newFieldError(upstreamField("Timeout"), "必须大于 0")
	}
	if u.MaxRetries < 0 {
		return newFieldError(upstreamField("MaxRetries"), "不能为负数")
	}
	if u.InitialBackoff.DurationValue() <= 0 {
		return newFieldError(upstreamField("InitialBackoff"), "必须大于 0")
	}
	if u.MaxBodySize <= 0 {
		return newFieldError(upstreamField("MaxBodySize"), "必须大于 0")
	}

	return nil
}

func validateResourcePath(p string) error {
	if p == "" || p == "/" {
		return errors.New("资源路径不能为空")
	}
	if !strings.HasPrefix(p, "/") {
		return errors.New("资源路径必须以 / 开头")
	}
	if strings.HasPrefix(p, diagnosticsPrefix) {
		return fmt.Errorf("资源路径不能使用保留前缀 %s", diagnosticsPrefix)
	}
	if strings.ContainsAny(p, "?# ") {
		return errors.New("资源路径不允许包含查询串、锚点或空格")
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("缺少地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
