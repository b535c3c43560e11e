package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/MediaScraper/internal/models"
	"github.com/spf13/cobra"
)

// ValidateFlags 验证命令行标志
func ValidateFlags(targetURL string, maxFiles int, delay float64, depth int, timeout int, traversal string) error {
	if targetURL != "" {
		if err := models.ValidateURL(targetURL); err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}
	}

	if maxFiles < 1 || maxFiles > 100000 {
		return fmt.Errorf("文件数量上限必须在1-100000之间,当前值: %d", maxFiles)
	}

	if delay < 0 || delay > 60 {
		return fmt.Errorf("下载间隔必须在0-60秒之间,当前值: %g", delay)
	}

	if depth < 0 || depth > 10 {
		return fmt.Errorf("链接跟随深度必须在0-10之间,当前值: %d", depth)
	}

	if timeout < 1 || timeout > 300 {
		return fmt.Errorf("请求超时必须在1-300秒之间,当前值: %d", timeout)
	}

	if traversal != "" {
		if _, err := ParseTraversal(traversal); err != nil {
			return err
		}
	}

	return nil
}

// ParseTraversal 解析遍历顺序, 支持简写 dfs/bfs
func ParseTraversal(s string) (models.Traversal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dfs", string(models.TraversalDepthFirst):
		return models.TraversalDepthFirst, nil
	case "bfs", string(models.TraversalBreadthFirst):
		return models.TraversalBreadthFirst, nil
	}
	return "", fmt.Errorf("无效的遍历顺序: %s (有效值: dfs, bfs)", s)
}

// applyFlags 用显式指定的命令行参数覆盖配置文件生成的会话配置
func applyFlags(cmd *cobra.Command, cfg *models.SessionConfig) error {
	flags := cmd.Flags()

	if outputDir != "" {
		cfg.OutputDir = sessionOutputDir(outputDir, appConfig != nil && appConfig.Output.DomainSeparation, cfg.TargetHost())
	}
	if flags.Changed("max-files") {
		cfg.MaxFiles = maxFiles
	}
	if flags.Changed("delay") {
		cfg.DelaySeconds = delay
	}
	if flags.Changed("depth") {
		cfg.MaxDepth = depth
	}
	if flags.Changed("follow-links") {
		cfg.FollowLinks = followLinks
	}
	if flags.Changed("types") {
		mask, err := models.ParseCategories(types)
		if err != nil {
			return err
		}
		cfg.AssetTypes = mask
	}
	if noDedup {
		cfg.Deduplicate = false
	}
	if flags.Changed("timeout") {
		cfg.Timeout = time.Duration(timeout) * time.Second
	}
	if traversal != "" {
		t, err := ParseTraversal(traversal)
		if err != nil {
			return err
		}
		cfg.Policy.Traversal = t
	}
	if flags.Changed("min-size") {
		cfg.Policy.MinAssetBytes = minSize
	}
	if flags.Changed("deny") {
		cfg.Policy.DenyPattern = denyPattern
	}

	return cfg.Validate()
}

// sessionOutputDir 会话输出目录, 按域名分目录时为 <base>/<host>
func sessionOutputDir(base string, separate bool, host string) string {
	if separate && host != "" {
		return filepath.Join(base, host)
	}
	return base
}
