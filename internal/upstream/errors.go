package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError 表示上游返回了非 2xx 状态码。无缓存可降级时，该状态码会原样回传给客户端。
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("Upstream error: %d", e.StatusCode)
}

// TransportError 表示网络/DNS/超时/正文读取失败，没有可用的上游状态码。
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCode 返回错误对应的 HTTP 状态：上游状态错误沿用其状态码，其余一律 500。
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode > 0 {
		return httpErr.StatusCode
	}
	return http.StatusInternalServerError
}
