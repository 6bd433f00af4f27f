package proxy

import (
	"context"
	"time"
)

// Snapshot 是缓存槽位与刷新状态的只读视图，供 /-/status 诊断接口使用。
type Snapshot struct {
	State       string
	FetchedAt   time.Time
	Age         time.Duration
	SizeBytes   int64
	TTL         time.Duration
	UpstreamURL string
	Refreshing  bool
	Waiting     int64
	Hits        int64
	Misses      int64
	Joins       int64
	Stale       int64
	Failures    int64
	Fetches     int64
}

// Snapshot 不触发任何上游请求。
func (s *Service) Snapshot() Snapshot {
	entry := s.current(context.Background())
	snap := Snapshot{
		State:       s.freshness.State(entry).String(),
		TTL:         s.freshness.TTL(),
		UpstreamURL: s.fetcher.URL(),
		Refreshing:  s.refreshing.Load(),
		Waiting:     s.waiting.Load(),
		Hits:        s.stats.hits.Load(),
		Misses:      s.stats.misses.Load(),
		Joins:       s.stats.joins.Load(),
		Stale:       s.stats.stale.Load(),
		Failures:    s.stats.failures.Load(),
		Fetches:     s.stats.fetches.Load(),
	}
	if entry != nil {
		snap.FetchedAt = entry.FetchedAt
		snap.Age = entry.Age(s.freshness.Now())
		snap.SizeBytes = entry.SizeBytes
	}
	return snap
}
