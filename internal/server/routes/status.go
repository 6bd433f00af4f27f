package routes

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v3"

	"github.com/eo-schedule/corsproxy/internal/proxy"
)

// StatusPath 是诊断接口路径；资源路径不允许占用 /-/ 前缀。
const StatusPath = "/-/status"

// StatusReporter 提供缓存快照，测试中可替换。
type StatusReporter interface {
	Snapshot() proxy.Snapshot
}

// RegisterStatusRoutes 暴露 /-/status 诊断接口，供排查缓存状态与刷新情况，不会访问上游。
func RegisterStatusRoutes(app *fiber.App, resource string, reporter StatusReporter) {
	if app == nil || reporter == nil {
		return
	}

	app.Get(StatusPath, func(c fiber.Ctx) error {
		return c.JSON(encodeStatus(resource, reporter.Snapshot()))
	})
}

type statusPayload struct {
	Resource   string          `json:"resource"`
	Upstream   string          `json:"upstream"`
	TTLSeconds int64           `json:"ttl_seconds"`
	State      string          `json:"state"`
	FetchedAt  string          `json:"fetched_at,omitempty"`
	Age        string          `json:"age,omitempty"`
	Size       string          `json:"size,omitempty"`
	SizeBytes  int64           `json:"size_bytes"`
	Refreshing bool            `json:"refreshing"`
	Waiting    int64           `json:"waiting"`
	Counters   countersPayload `json:"counters"`
}

type countersPayload struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Joins    int64 `json:"joins"`
	Stale    int64 `json:"stale"`
	Failures int64 `json:"failures"`
	Fetches  int64 `json:"upstream_fetches"`
}

func encodeStatus(resource string, snap proxy.Snapshot) statusPayload {
	payload := statusPayload{
		Resource:   resource,
		Upstream:   snap.UpstreamURL,
		TTLSeconds: int64(snap.TTL / time.Second),
		State:      snap.State,
		SizeBytes:  snap.SizeBytes,
		Refreshing: snap.Refreshing,
		Waiting:    snap.Waiting,
		Counters: countersPayload{
			Hits:     snap.Hits,
			Misses:   snap.Misses,
			Joins:    snap.Joins,
			Stale:    snap.Stale,
			Failures: snap.Failures,
			Fetches:  snap.Fetches,
		},
	}
	if !snap.FetchedAt.IsZero() {
		payload.FetchedAt = snap.FetchedAt.UTC().Format(time.RFC3339)
		// humanize.Time 依赖墙钟，这里直接用快照里的 Age 拼出相对时间。
		payload.Age = humanize.RelTime(snap.FetchedAt, snap.FetchedAt.Add(snap.Age), "ago", "from now")
		payload.Size = humanize.Bytes(uint64(snap.SizeBytes))
	}
	return payload
}
