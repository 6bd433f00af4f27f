package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/eo-schedule/corsproxy/internal/cache"
	"github.com/eo-schedule/corsproxy/internal/logging"
	"github.com/eo-schedule/corsproxy/internal/upstream"
)

// refreshKey 是 singleflight 的唯一 key：整个进程只有一个缓存槽位。
const refreshKey = "upstream"

const tracerName = "github.com/eo-schedule/corsproxy/internal/proxy"

// Fetcher 抽象上游资源，测试中可替换为桩实现。
type Fetcher interface {
	Fetch(ctx context.Context) (io.ReadCloser, error)
	URL() string
}

// CacheStatus 对应响应头 X-Proxy-Cache 的取值。
type CacheStatus string

const (
	// CacheHit 表示直接返回了 TTL 内的缓存。
	CacheHit CacheStatus = "HIT"
	// CacheMiss 表示本次响应来自一次刷新（无论是发起者还是加入者）。
	CacheMiss CacheStatus = "MISS"
	// CacheStale 表示刷新失败，返回了过期的缓存。
	CacheStale CacheStatus = "STALE"
)

// Result 是一次 Get 的结果。Err 仅在 CacheStale 时非空，记录导致降级的上游错误。
type Result struct {
	Body      []byte
	Status    CacheStatus
	FetchedAt time.Time
	Err       error
}

// ErrNoCacheAvailable 表示上游失败且从未成功抓取过，无法降级。
var ErrNoCacheAvailable = errors.New("no cached payload available")

// NoCacheError 包装导致硬失败的上游错误。Error() 保持上游错误原文，
// errors.Is(err, ErrNoCacheAvailable) 成立，errors.As 可取出 upstream 错误。
type NoCacheError struct {
	Cause error
}

func (e *NoCacheError) Error() string {
	return e.Cause.Error()
}

func (e *NoCacheError) Unwrap() error {
	return e.Cause
}

func (e *NoCacheError) Is(target error) bool {
	return target == ErrNoCacheAvailable
}

// ServiceOptions 汇总 Service 的依赖。Now 为空时使用 time.Now。
type ServiceOptions struct {
	Store       cache.Store
	Fetcher     Fetcher
	Logger      *logrus.Logger
	TTL         time.Duration
	Timeout     time.Duration
	MaxBodySize int64
	Now         func() time.Time
}

// Service 持有唯一缓存槽位与进行中的刷新：新鲜时直接返回，过期/为空时
// 合并并发刷新为一次上游请求，失败时优先返回旧数据。
type Service struct {
	store     cache.Store
	fetcher   Fetcher
	logger    *logrus.Logger
	freshness cache.Freshness
	timeout   time.Duration
	maxBody   int64
	tracer    trace.Tracer

	group      singleflight.Group
	refreshing atomic.Bool
	waiting    atomic.Int64
	stats      counters
}

type counters struct {
	hits     atomic.Int64
	misses   atomic.Int64
	joins    atomic.Int64
	stale    atomic.Int64
	failures atomic.Int64
	fetches  atomic.Int64
}

// NewService 校验依赖并构建 Service。
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("upstream fetcher is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("invalid cache ttl: %s", opts.TTL)
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("invalid upstream timeout: %s", opts.Timeout)
	}

	return &Service{
		store:     opts.Store,
		fetcher:   opts.Fetcher,
		logger:    opts.Logger,
		freshness: cache.NewFreshness(opts.TTL, opts.Now),
		timeout:   opts.Timeout,
		maxBody:   opts.MaxBodySize,
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// Get 返回资源正文及缓存状态。仅当上游失败且槽位为空时返回 *NoCacheError。
func (s *Service) Get(ctx context.Context) (Result, error) {
	entry := s.current(ctx)
	if s.freshness.State(entry) == cache.StateFresh {
		s.stats.hits.Add(1)
		return Result{Body: entry.Body, Status: CacheHit, FetchedAt: entry.FetchedAt}, nil
	}

	refreshed, err := s.Refresh(ctx)
	if err == nil {
		s.stats.misses.Add(1)
		return Result{Body: refreshed.Body, Status: CacheMiss, FetchedAt: refreshed.FetchedAt}, nil
	}

	// 降级使用刷新前读到的条目；期间若有其他刷新写入了新数据，也不能把它标成 STALE。
	if entry != nil {
		s.stats.stale.Add(1)
		return Result{Body: entry.Body, Status: CacheStale, FetchedAt: entry.FetchedAt, Err: err}, nil
	}

	s.stats.failures.Add(1)
	return Result{}, &NoCacheError{Cause: err}
}

// Refresh 获取或创建进行中的刷新并等待其结果。并发调用者共享同一次上游请求；
// 刷新结束（成功或失败）后 singleflight 立即释放 key，后续请求可以再次触发刷新。
func (s *Service) Refresh(ctx context.Context) (*cache.Entry, error) {
	started := time.Now()
	leader := false

	s.waiting.Add(1)
	value, err, shared := s.group.Do(refreshKey, func() (interface{}, error) {
		leader = true
		return s.refresh(ctx)
	})
	s.waiting.Add(-1)

	if !leader {
		s.stats.joins.Add(1)
		fields := logging.RefreshFields(s.fetcher.URL(), false)
		fields["shared"] = shared
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		entry := s.logger.WithFields(fields)
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Info("refresh_joined")
	}

	if err != nil {
		return nil, err
	}
	return value.(*cache.Entry), nil
}

// refresh 只在 singleflight leader 中运行。
func (s *Service) refresh(parent context.Context) (*cache.Entry, error) {
	// 调用方检查新鲜度之后、成为 leader 之前，可能已有一次刷新完成。
	if entry := s.current(parent); s.freshness.State(entry) == cache.StateFresh {
		return entry, nil
	}

	s.refreshing.Store(true)
	defer s.refreshing.Store(false)

	// 客户端断开不影响刷新：其他等待者依赖同一个结果。
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "upstream.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("url.full", s.fetcher.URL())),
	)
	defer span.End()

	started := time.Now()
	s.stats.fetches.Add(1)
	s.logger.WithFields(logging.RefreshFields(s.fetcher.URL(), true)).Info("cache_miss")

	entry, err := s.fetchAndStore(ctx)
	fields := logging.RefreshFields(s.fetcher.URL(), true)
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		var httpErr *upstream.HTTPError
		if errors.As(err, &httpErr) {
			span.SetAttributes(attribute.Int("http.response.status_code", httpErr.StatusCode))
			fields["upstream_status"] = httpErr.StatusCode
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WithFields(fields).WithError(err).Warn("refresh_failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int64("cache.size_bytes", entry.SizeBytes))
	fields["size_bytes"] = entry.SizeBytes
	fields["size"] = humanize.Bytes(uint64(entry.SizeBytes))
	s.logger.WithFields(fields).Info("cache_updated")
	return entry, nil
}

func (s *Service) fetchAndStore(ctx context.Context) (*cache.Entry, error) {
	body, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	entry, err := s.store.Put(ctx, body, cache.PutOptions{
		FetchedAt: s.freshness.Now(),
		MaxBytes:  s.maxBody,
	})
	if err != nil {
		return nil, &upstream.TransportError{Err: fmt.Errorf("read body: %w", err)}
	}
	return entry, nil
}

// current 读取槽位；请求上下文已取消时仍需要能读到旧条目用于降级。
func (s *Service) current(ctx context.Context) *cache.Entry {
	entry, err := s.store.Get(context.WithoutCancel(ctx))
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			s.logger.WithError(err).WithField("action", "cache_get").Warn("cache_get_failed")
		}
		return nil
	}
	return entry
}

// UpstreamURL 返回上游地址。
func (s *Service) UpstreamURL() string {
	return s.fetcher.URL()
}
