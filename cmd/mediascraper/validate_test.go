package main

import (
	"path/filepath"
	"testing"

	"github.com/RecoveryAshes/MediaScraper/internal/models"
)

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		maxFiles  int
		delay     float64
		depth     int
		timeout   int
		traversal string
		wantErr   bool
	}{
		{"默认参数", "https://example.com", 100, 1, 1, 10, "", false},
		{"仅URL文件", "", 100, 1, 1, 10, "", false},
		{"广度优先", "https://example.com", 100, 0, 3, 10, "bfs", false},
		{"无效URL", "ftp://example.com", 100, 1, 1, 10, "", true},
		{"文件上限为0", "https://example.com", 0, 1, 1, 10, "", true},
		{"负的下载间隔", "https://example.com", 100, -1, 1, 10, "", true},
		{"深度过大", "https://example.com", 100, 1, 11, 10, "", true},
		{"超时为0", "https://example.com", 100, 1, 1, 0, "", true},
		{"未知遍历顺序", "https://example.com", 100, 1, 1, 10, "random", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFlags(tt.url, tt.maxFiles, tt.delay, tt.depth, tt.timeout, tt.traversal)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseTraversal(t *testing.T) {
	tests := []struct {
		input string
		want  models.Traversal
	}{
		{"dfs", models.TraversalDepthFirst},
		{"DFS", models.TraversalDepthFirst},
		{"depth-first", models.TraversalDepthFirst},
		{"bfs", models.TraversalBreadthFirst},
		{" breadth-first ", models.TraversalBreadthFirst},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTraversal(tt.input)
			if err != nil || got != tt.want {
				t.Errorf("ParseTraversal(%q) = %v, %v", tt.input, got, err)
			}
		})
	}
}

func TestSessionOutputDir(t *testing.T) {
	if got := sessionOutputDir("out", true, "example.com"); got != filepath.Join("out", "example.com") {
		t.Errorf("按域名分目录 = %s", got)
	}
	if got := sessionOutputDir("out", false, "example.com"); got != "out" {
		t.Errorf("不分目录 = %s", got)
	}
	if got := sessionOutputDir("out", true, ""); got != "out" {
		t.Errorf("无主机名 = %s", got)
	}
}

func TestLoadCookies(t *testing.T) {
	if _, err := loadCookies("a=1", "cookies.txt"); err == nil {
		t.Error("同时指定 --cookies 和 --cookie-file 应返回错误")
	}
	if got, err := loadCookies("  a=1; b=2 ", ""); err != nil || got != "a=1; b=2" {
		t.Errorf("loadCookies() = %q, %v", got, err)
	}
	if _, err := loadCookies("", filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Cookie文件不存在时应返回错误")
	}
}
