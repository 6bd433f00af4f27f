package integration

import (
	"context"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"
)

// upstreamStub 模拟会议日程 JSON 上游：状态码/正文可在测试中切换，
// 并可通过 gate 阻塞响应以观察并发合并。
type upstreamStub struct {
	server   *http.Server
	listener net.Listener
	URL      string

	mu       sync.Mutex
	requests []RecordedRequest
	status   int
	body     []byte
	header   http.Header
	gate     chan struct{}
}

// RecordedRequest 捕获每次请求的方法/路径/Headers，便于断言代理行为。
type RecordedRequest struct {
	Method  string
	Path    string
	Headers http.Header
}

func newUpstreamStub(t *testing.T, body string) *upstreamStub {
	t.Helper()

	stub := &upstreamStub{
		status: http.StatusOK,
		body:   []byte(body),
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("unable to start upstream stub listener: %v", err)
	}
	server := &http.Server{Handler: http.HandlerFunc(stub.serve)}

	stub.server = server
	stub.listener = listener
	stub.URL = "http://" + listener.Addr().String() + "/conference.json"

	go func() {
		_ = server.Serve(listener)
	}()

	t.Cleanup(stub.Close)
	return stub
}

func (s *upstreamStub) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: r.Header.Clone(),
	})
	status, body, header, gate := s.status, s.body, s.header, s.gate
	s.mu.Unlock()

	for key, values := range header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// Respond 切换后续请求的状态码与正文。
func (s *upstreamStub) Respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.body = []byte(body)
}

// SetHeader 为后续所有响应追加响应头，例如 Retry-After。
func (s *upstreamStub) SetHeader(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.header == nil {
		s.header = http.Header{}
	}
	s.header.Set(key, value)
}

// Hold 让后续请求阻塞，直到返回的 release 被调用。
func (s *upstreamStub) Hold() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.gate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *upstreamStub) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

func (s *upstreamStub) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}
