package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ProxyHandler describes the component that answers the cached resource. It
// allows injecting fake handlers during tests.
type ProxyHandler interface {
	// Handle answers GET requests for the resource.
	Handle(fiber.Ctx) error
	// Preflight answers OPTIONS requests without touching cache or upstream.
	Preflight(fiber.Ctx) error
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger       *logrus.Logger
	Proxy        ProxyHandler
	ResourcePath string
	ListenPort   int
}

const contextKeyRequestID = "_corsproxy_request_id"

// NewApp builds a Fiber application exposing the resource path with CORS and
// request-id middlewares attached.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Proxy == nil {
		return nil, errors.New("proxy handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}
	resource := strings.TrimSpace(opts.ResourcePath)
	if !strings.HasPrefix(resource, "/") || resource == "/" {
		return nil, fmt.Errorf("invalid resource path: %q", opts.ResourcePath)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	app.Get(resource, corsMiddleware, opts.Proxy.Handle)
	app.Options(resource, corsMiddleware, opts.Proxy.Preflight)

	opts.Logger.WithFields(logrus.Fields{
		"action":   "register_route",
		"resource": resource,
		"methods":  AllowedMethods,
	}).Debug("route registered")

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID 并回写 X-Request-ID。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
