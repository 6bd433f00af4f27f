package cache

import "time"

// State 描述缓存槽位相对 TTL 的状态。
type State int

const (
	StateEmpty State = iota
	StateFresh
	StateStale
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "empty"
	}
}

// Freshness 注入固定 TTL 与时钟，判断条目是否仍可直接返回。
type Freshness struct {
	ttl time.Duration
	now func() time.Time
}

// NewFreshness 构造新鲜度判定器，now 为空时使用 time.Now。
func NewFreshness(ttl time.Duration, now func() time.Time) Freshness {
	if now == nil {
		now = time.Now
	}
	return Freshness{ttl: ttl, now: now}
}

// TTL 返回新鲜度窗口。
func (f Freshness) TTL() time.Duration {
	return f.ttl
}

// Now 返回判定器使用的当前时间。
func (f Freshness) Now() time.Time {
	return f.now()
}

// State 仅当 now - FetchedAt < TTL 时视为 fresh。
func (f Freshness) State(entry *Entry) State {
	if entry == nil {
		return StateEmpty
	}
	if f.ttl <= 0 {
		return StateStale
	}
	if f.now().Sub(entry.FetchedAt) < f.ttl {
		return StateFresh
	}
	return StateStale
}
