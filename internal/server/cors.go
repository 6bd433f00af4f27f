package server

import "github.com/gofiber/fiber/v3"

// Cross-origin values sent on every response of the resource route, including
// errors and stale fallbacks, whether or not the request carried an Origin.
const (
	AllowedOrigin  = "*"
	AllowedMethods = "GET, OPTIONS"
	AllowedHeaders = "Content-Type"
)

func corsMiddleware(c fiber.Ctx) error {
	SetCORSHeaders(c)
	return c.Next()
}

// SetCORSHeaders writes the three Access-Control-Allow-* headers.
func SetCORSHeaders(c fiber.Ctx) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, AllowedOrigin)
	c.Set(fiber.HeaderAccessControlAllowMethods, AllowedMethods)
	c.Set(fiber.HeaderAccessControlAllowHeaders, AllowedHeaders)
}
