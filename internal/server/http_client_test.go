package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/eo-schedule/corsproxy/internal/config"
)

func TestNewUpstreamClientUsesConfigTimeout(t *testing.T) {
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			Timeout: config.Duration(45 * time.Second),
		},
	}

	client := NewUpstreamClient(cfg)
	if client.Timeout != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", client.Timeout)
	}
}

func TestNewUpstreamClientDefaultsWithoutConfig(t *testing.T) {
	client := NewUpstreamClient(nil)
	if client.Timeout != config.DefaultTimeout {
		t.Fatalf("expected default timeout, got %s", client.Timeout)
	}
}

func TestNewUpstreamClientRoutesThroughProxy(t *testing.T) {
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			Proxy: "http://proxy.internal:3128",
		},
	}

	client := NewUpstreamClient(cfg)
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("unexpected transport %T", client.Transport)
	}

	req, _ := http.NewRequest(http.MethodGet, "https://2026.everythingopen.au/schedule/conference.json", nil)
	proxyURL, err := transport.Proxy(req)
	if err != nil {
		t.Fatalf("proxy func error: %v", err)
	}
	if proxyURL == nil || proxyURL.Host != "proxy.internal:3128" {
		t.Fatalf("expected outbound proxy, got %v", proxyURL)
	}
}
