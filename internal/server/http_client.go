package server

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/eo-schedule/corsproxy/internal/config"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewUpstreamClient 返回共享 http.Client，用于所有上游请求。
// 配置了 Upstream.Proxy 时，所有请求经由该出站代理转发。
func NewUpstreamClient(cfg *config.Config) *http.Client {
	timeout := config.DefaultTimeout
	if cfg != nil && cfg.UpstreamTimeout() > 0 {
		timeout = cfg.UpstreamTimeout()
	}

	transport := defaultTransport.Clone()
	if cfg != nil && cfg.Upstream.HasProxy() {
		if proxyURL, err := url.Parse(cfg.Upstream.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
