package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/RecoveryAshes/MediaScraper/internal/core"
	"github.com/RecoveryAshes/MediaScraper/internal/crawlers"
	"github.com/RecoveryAshes/MediaScraper/internal/utils"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "检查运行环境 (系统资源、浏览器、请求头配置)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ok := runDoctor(os.Stdout, appConfig, headersConfig, headers)
		if !ok {
			return fmt.Errorf("环境检查未通过")
		}
		return nil
	},
}

// runDoctor 输出环境检查结果, 全部通过时返回true
func runDoctor(out io.Writer, config *core.Config, headerFile string, cliHeaders []string) bool {
	passed := true
	check := func(name string, err error) {
		if err != nil {
			passed = false
			fmt.Fprintf(out, "[FAIL] %s: %v\n", name, err)
			return
		}
		fmt.Fprintf(out, "[ OK ] %s\n", name)
	}

	fmt.Fprintln(out, "==================================================")
	fmt.Fprintln(out, "MediaScraper 环境检查")
	fmt.Fprintln(out, "==================================================")

	// 1. 系统资源
	guard := config.ResourceGuard()
	if snap, err := guard.Snapshot(); err != nil {
		fmt.Fprintf(out, "[WARN] 无法获取系统资源: %v\n", err)
	} else {
		fmt.Fprintf(out, "       内存: 可用 %s / 总计 %s (使用率 %.1f%%)\n",
			utils.FormatSize(int64(snap.AvailableMemory)), utils.FormatSize(int64(snap.TotalMemory)), snap.UsedPercent)
		fmt.Fprintf(out, "       CPU: %d 核, 使用率 %.1f%%\n", snap.NumCPU, snap.CPUPercent)
	}
	check("系统资源满足无头浏览器启动条件", guard.Check())

	// 2. 浏览器
	check("浏览器可执行文件", findBrowser(out, config.BrowserOptions()))

	// 3. 请求头配置
	hm, err := core.NewHeaderManager(headerFile, cliHeaders)
	if err == nil {
		_, err = hm.GetHeaders()
	}
	check("请求头配置", err)
	if err == nil {
		safe := hm.GetSafeHeaders()
		names := make([]string, 0, len(safe))
		for name := range safe {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "       %s: %s\n", name, safe[name])
		}
	}

	fmt.Fprintln(out, "==================================================")
	return passed
}

// findBrowser 查找浏览器, 未安装时rod会在首次使用时自动下载
func findBrowser(out io.Writer, opts crawlers.BrowserOptions) error {
	if opts.Bin != "" {
		if _, err := os.Stat(opts.Bin); err != nil {
			return fmt.Errorf("配置的浏览器不存在: %w", err)
		}
		fmt.Fprintf(out, "       使用配置的浏览器: %s\n", opts.Bin)
		return nil
	}
	if path, has := launcher.LookPath(); has {
		fmt.Fprintf(out, "       发现本地浏览器: %s\n", path)
		return nil
	}
	fmt.Fprintln(out, "       未发现本地浏览器, 首次使用Cookie模式时将自动下载Chromium")
	return nil
}
