package proxy

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/eo-schedule/corsproxy/internal/logging"
	"github.com/eo-schedule/corsproxy/internal/server"
	"github.com/eo-schedule/corsproxy/internal/upstream"
)

// 响应头：缓存状态与降级原因。
const (
	HeaderCacheStatus = "X-Proxy-Cache"
	HeaderProxyError  = "X-Proxy-Error"
)

// Handler 把 Service 暴露为 Fiber handler：HIT/MISS/STALE 一律 200，
// 只有上游失败且没有任何历史数据时才返回错误状态。
type Handler struct {
	service  *Service
	logger   *logrus.Logger
	resource string
}

// NewHandler constructs the resource handler on top of a shared Service.
func NewHandler(service *Service, logger *logrus.Logger, resource string) *Handler {
	return &Handler{
		service:  service,
		logger:   logger,
		resource: resource,
	}
}

// Handle 执行缓存查找、合并刷新与降级逻辑，每个请求输出一条结构化日志。
func (h *Handler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := h.service.Get(ctx)
	if err != nil {
		status := upstream.StatusCode(err)
		h.logFailure(requestID, status, started, err)
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(status).SendString(err.Error())
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(HeaderCacheStatus, string(result.Status))
	if result.Status == CacheStale && result.Err != nil {
		c.Set(HeaderProxyError, headerSafe(result.Err.Error()))
	}

	h.logResult(requestID, result, started)
	return c.Status(fiber.StatusOK).Send(result.Body)
}

// Preflight 直接返回 204，不读缓存也不访问上游；CORS 头由路由中间件写入。
func (h *Handler) Preflight(c fiber.Ctx) error {
	c.Status(fiber.StatusNoContent)
	return nil
}

func (h *Handler) logResult(requestID string, result Result, started time.Time) {
	fields := logging.RequestFields(h.resource, h.service.UpstreamURL(), string(result.Status), requestID)
	fields["action"] = "proxy"
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	fields["fetched_at"] = result.FetchedAt.UTC().Format(time.RFC3339)

	switch result.Status {
	case CacheHit:
		h.logger.WithFields(fields).Info("cache_hit")
	case CacheStale:
		fields["error"] = result.Err.Error()
		h.logger.WithFields(fields).Warn("serve_stale")
	default:
		h.logger.WithFields(fields).Info("proxy_complete")
	}
}

func (h *Handler) logFailure(requestID string, status int, started time.Time, err error) {
	fields := logging.RequestFields(h.resource, h.service.UpstreamURL(), "", requestID)
	fields["action"] = "proxy"
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	fields["error"] = err.Error()
	fields["no_cache"] = errors.Is(err, ErrNoCacheAvailable)
	h.logger.WithFields(fields).Error("upstream_failed_no_cache")
}

// headerSafe 去掉换行，避免错误信息破坏响应头。
func headerSafe(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.TrimSpace(value)
}
