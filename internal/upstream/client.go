package upstream

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/eo-schedule/corsproxy/internal/config"
)

// maxDrainBytes 限制失败响应的读取量，只为复用连接。
const maxDrainBytes = 4 * 1024

// Client 以固定 URL + 自定义 User-Agent 访问唯一的上游资源，正文按字节透传，不做 JSON 校验。
type Client struct {
	retry     *retryablehttp.Client
	url       string
	userAgent string
}

// NewClient 基于共享 http.Client 构建带重试的上游客户端。
// 最后一次尝试的响应会原样返回，保证上游状态码不会被重试层吞掉；
// 退避时间封顶于 RetryWaitMax，且不会超出调用方 ctx 的截止时间。
func NewClient(httpClient *http.Client, cfg config.UpstreamConfig, logger *logrus.Logger) *Client {
	rc := retryablehttp.NewClient()
	if httpClient != nil {
		rc.HTTPClient = httpClient
	}
	rc.RetryMax = cfg.MaxRetries
	backoff := cfg.InitialBackoff.DurationValue()
	if backoff <= 0 {
		backoff = config.DefaultInitialBackoff
	}
	rc.RetryWaitMin = backoff
	rc.RetryWaitMax = backoff * 8
	rc.Backoff = cappedBackoff
	rc.CheckRetry = deadlineAwareRetryPolicy(rc.RetryWaitMax)
	rc.ErrorHandler = keepLastResponse
	if logger != nil {
		rc.Logger = newRetryLogger(logger)
	} else {
		rc.Logger = nil
	}

	return &Client{
		retry:     rc,
		url:       cfg.URL,
		userAgent: cfg.UserAgent,
	}
}

// URL 返回上游地址，便于日志与诊断输出。
func (c *Client) URL() string {
	return c.url
}

// Fetch 发起一次 GET（含重试）。成功时返回未读取的正文，由调用方负责关闭；
// 非 2xx 返回 *HTTPError，网络层失败返回 *TransportError。
func (c *Client) Fetch(ctx context.Context) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.retry.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp.Body, nil
}

// cappedBackoff 忽略上游的 Retry-After，等待时间始终落在 [min, max] 内。
func cappedBackoff(minWait, maxWait time.Duration, attemptNum int, _ *http.Response) time.Duration {
	return retryablehttp.DefaultBackoff(minWait, maxWait, attemptNum, nil)
}

// deadlineAwareRetryPolicy 在剩余时间不足以再等待一次时停止重试，
// 让最后一次响应原样返回，而不是在退避中途因超时丢掉上游状态码。
func deadlineAwareRetryPolicy(maxWait time.Duration) retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		retry, checkErr := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		if !retry || checkErr != nil {
			return retry, checkErr
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= maxWait {
			// 传输层错误需要作为 checkErr 交给 ErrorHandler，否则只剩 "giving up"。
			return false, err
		}
		return true, nil
	}
}

// keepLastResponse 在重试耗尽时返回最后一次响应而不是 "giving up" 错误，
// 上游状态码因此总能到达调用方；只有拿不到任何响应时才返回错误。
func keepLastResponse(resp *http.Response, err error, _ int) (*http.Response, error) {
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

// retryLogger 将 retryablehttp 的 key/value 日志桥接到 logrus 字段。
type retryLogger struct {
	logger *logrus.Logger
}

func newRetryLogger(logger *logrus.Logger) *retryLogger {
	return &retryLogger{logger: logger}
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Error(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Info(msg)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Debug(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Warn(msg)
}

func (l *retryLogger) entry(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{"action": "upstream_retry"}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if d, ok := keysAndValues[i+1].(time.Duration); ok {
			fields[key] = d.String()
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return l.logger.WithFields(fields)
}
