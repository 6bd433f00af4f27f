package server

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

func TestRouterRoutesResourceRequest(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("GET", "http://proxy.local/conference.json", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200 status, got %d (body=%s)", resp.StatusCode, string(body))
	}
	if app.recorder.handled != 1 {
		t.Fatalf("expected proxy handler to run once, got %d", app.recorder.handled)
	}
	if app.recorder.lastRequestID == "" {
		t.Fatalf("handler should see the request id")
	}
	if reqID := resp.Header.Get("X-Request-ID"); reqID != app.recorder.lastRequestID {
		t.Fatalf("X-Request-ID mismatch: header=%q handler=%q", reqID, app.recorder.lastRequestID)
	}
	assertCORSHeaders(t, resp.Header.Get)
}

func TestRouterAnswersPreflight(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("OPTIONS", "http://proxy.local/conference.json", nil)
	req.Header.Set("Origin", "https://widgets.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204 status, got %d", resp.StatusCode)
	}
	if app.recorder.preflights != 1 || app.recorder.handled != 0 {
		t.Fatalf("expected preflight only, got handled=%d preflights=%d", app.recorder.handled, app.recorder.preflights)
	}
	assertCORSHeaders(t, resp.Header.Get)
}

func TestRouterReturns404ForOtherPaths(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("GET", "http://proxy.local/other.json", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 status, got %d", resp.StatusCode)
	}
	if app.recorder.handled != 0 {
		t.Fatalf("proxy handler must not run for unknown paths")
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cases := []struct {
		name string
		opts AppOptions
	}{
		{"missing logger", AppOptions{Proxy: &proxyRecorder{}, ResourcePath: "/conference.json", ListenPort: 8787}},
		{"missing proxy", AppOptions{Logger: logger, ResourcePath: "/conference.json", ListenPort: 8787}},
		{"bad port", AppOptions{Logger: logger, Proxy: &proxyRecorder{}, ResourcePath: "/conference.json"}},
		{"root resource", AppOptions{Logger: logger, Proxy: &proxyRecorder{}, ResourcePath: "/", ListenPort: 8787}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewApp(tc.opts); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func assertCORSHeaders(t *testing.T, get func(string) string) {
	t.Helper()
	if got := get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected Access-Control-Allow-Origin: %q", got)
	}
	if got := get("Access-Control-Allow-Methods"); got != "GET, OPTIONS" {
		t.Fatalf("unexpected Access-Control-Allow-Methods: %q", got)
	}
	if got := get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Fatalf("unexpected Access-Control-Allow-Headers: %q", got)
	}
}

type testApp struct {
	*fiber.App
	recorder *proxyRecorder
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	recorder := &proxyRecorder{}
	app, err := NewApp(AppOptions{
		Logger:       logger,
		Proxy:        recorder,
		ResourcePath: "/conference.json",
		ListenPort:   8787,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	return &testApp{App: app, recorder: recorder}
}

type proxyRecorder struct {
	handled       int
	preflights    int
	lastRequestID string
}

func (p *proxyRecorder) Handle(c fiber.Ctx) error {
	p.handled++
	p.lastRequestID = RequestID(c)
	return c.Status(fiber.StatusOK).SendString("{}")
}

func (p *proxyRecorder) Preflight(c fiber.Ctx) error {
	p.preflights++
	c.Status(fiber.StatusNoContent)
	return nil
}
