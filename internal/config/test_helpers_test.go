package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testConfigPath 指向 testdata 中的会议日程代理配置样例。
func testConfigPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join("testdata", name)
}

// writeTempConfig 把内联 TOML 写到临时目录，用于构造非法上游/时长等场景。
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corsproxy.toml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}
