package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/eo-schedule/corsproxy/internal/proxy"
)

type staticReporter struct {
	snap proxy.Snapshot
}

func (r staticReporter) Snapshot() proxy.Snapshot {
	return r.snap
}

func TestStatusRouteEncodesSnapshot(t *testing.T) {
	fetchedAt := time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)
	reporter := staticReporter{snap: proxy.Snapshot{
		State:       "fresh",
		FetchedAt:   fetchedAt,
		Age:         2 * time.Minute,
		SizeBytes:   2048,
		TTL:         5 * time.Minute,
		UpstreamURL: "https://upstream.test/conference.json",
		Hits:        3,
		Misses:      1,
		Joins:       2,
		Fetches:     1,
	}}

	app := fiber.New()
	RegisterStatusRoutes(app, "/conference.json", reporter)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, StatusPath, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if payload.Resource != "/conference.json" || payload.State != "fresh" || payload.TTLSeconds != 300 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.FetchedAt != "2024-02-03T10:00:00Z" {
		t.Fatalf("unexpected fetched_at %q", payload.FetchedAt)
	}
	if payload.Age != "2 minutes ago" {
		t.Fatalf("unexpected age %q", payload.Age)
	}
	if payload.Size != "2.0 kB" {
		t.Fatalf("unexpected size %q", payload.Size)
	}
	if payload.Counters.Hits != 3 || payload.Counters.Joins != 2 || payload.Counters.Fetches != 1 {
		t.Fatalf("unexpected counters: %+v", payload.Counters)
	}
}

func TestEncodeStatusOmitsEntryFieldsWhenEmpty(t *testing.T) {
	payload := encodeStatus("/conference.json", proxy.Snapshot{State: "empty", TTL: time.Minute})
	if payload.FetchedAt != "" || payload.Age != "" || payload.Size != "" {
		t.Fatalf("empty slot should not report entry metadata: %+v", payload)
	}
	if payload.TTLSeconds != 60 {
		t.Fatalf("unexpected ttl %d", payload.TTLSeconds)
	}
}

func TestRegisterStatusRoutesIgnoresNilReporter(t *testing.T) {
	app := fiber.New()
	RegisterStatusRoutes(app, "/conference.json", nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, StatusPath, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 without reporter, got %d", resp.StatusCode)
	}
}
