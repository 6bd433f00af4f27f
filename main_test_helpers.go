package main

import (
	"bytes"
	"testing"
)

// useBufferWriters 在测试期间把 CLI 的 stdout/stderr 换成内存缓冲，
// 便于断言 -version 与 -check-config 的输出，测试结束后自动恢复。
func useBufferWriters(t *testing.T) {
	t.Helper()

	prevOut, prevErr := stdOut, stdErr
	stdOut, stdErr = &bytes.Buffer{}, &bytes.Buffer{}

	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
}

// stdErrBuffer 返回当前的 stderr 缓冲；未调用 useBufferWriters 时返回空缓冲。
func stdErrBuffer() *bytes.Buffer {
	if buf, ok := stdErr.(*bytes.Buffer); ok {
		return buf
	}
	return &bytes.Buffer{}
}
