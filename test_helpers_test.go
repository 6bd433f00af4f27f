package main

import (
	"os"
	"path/filepath"
	"testing"
)

// configFixture 返回 internal/config/testdata 下的 TOML 样例路径，
// 从当前工作目录向上查找 go.mod 定位模块根目录。
func configFixture(t *testing.T, name string) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("获取工作目录失败: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "internal", "config", "testdata", name)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("无法定位 corsproxy 模块根目录")
		}
		dir = parent
	}
}
