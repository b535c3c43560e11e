package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/RecoveryAshes/MediaScraper/internal/core"
	"github.com/RecoveryAshes/MediaScraper/internal/models"
	"github.com/RecoveryAshes/MediaScraper/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile    string
	headersConfig string
	verbose       bool
	logLevel      string

	// HTTP头部参数
	headers []string

	// 抓取参数
	targetURL   string
	urlFile     string
	outputDir   string
	maxFiles    int
	delay       float64
	depth       int
	followLinks bool
	types       []string
	noDedup     bool
	timeout     int
	traversal   string
	minSize     int64
	denyPattern string
	insecure    bool

	// Cookie参数
	cookieText string
	cookieFile string

	// 浏览器参数
	headless   bool
	browserBin string

	// 输出参数
	exportPath  string
	noProgress  bool
	noKeys      bool
	saveReport  bool
	batchDelay  int
	continueErr bool
)

// appConfig PersistentPreRunE 中加载的配置
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "mediascraper [url]",
	Short: "网页媒体资源抓取工具",
	Long: `MediaScraper - 网页图片/视频等媒体资源抓取工具

功能:
  • 静态HTML扫描, 可跟随同源链接
  • 携带Cookie时使用无头浏览器渲染页面并自动滚动
  • 按类型/大小/URL规则过滤, 按大小+文件名去重
  • 运行中输入 p 暂停/继续, 输入 s 停止
  • 批量URL处理和结果导出 (JSON/CSV)

示例:
  mediascraper https://example.com/gallery -o output --max-files 50
  mediascraper -u https://example.com --follow-links --depth 2 --types images,videos
  mediascraper -u https://social.example.com/user --cookie-file cookies.json
  mediascraper -f urls.txt --export results.csv

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:      Version,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		appConfig = config

		logConfig := config.LogConfig()
		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		}
		if verbose {
			logConfig.Level = "debug"
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		return nil
	},
	RunE: runScrape,
}

func runScrape(cmd *cobra.Command, args []string) error {
	if targetURL == "" && len(args) == 1 {
		targetURL = args[0]
	}
	if targetURL == "" && urlFile == "" {
		return cmd.Help()
	}

	if err := ValidateFlags(targetURL, maxFiles, delay, depth, timeout, traversal); err != nil {
		return err
	}

	headerManager, err := core.NewHeaderManager(headersConfig, headers)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}
	requestHeaders, err := headerManager.GetHeaders()
	if err != nil {
		return fmt.Errorf("HTTP头部配置无效: %w", err)
	}

	cookies, err := loadCookies(cookieText, cookieFile)
	if err != nil {
		return err
	}

	browser := appConfig.BrowserOptions()
	if cmd.Flags().Changed("headless") {
		browser.Headless = headless
	}
	if browserBin != "" {
		browser.Bin = browserBin
	}

	sink := utils.NewConsoleSink(os.Stdout, !noProgress)
	controller := core.NewController(core.ControllerOptions{
		Headers:            requestHeaders,
		Browser:            browser,
		Guard:              appConfig.ResourceGuard(),
		InsecureSkipVerify: insecure,
	}, sink)

	build := func(u string) (models.SessionConfig, error) {
		cfg, err := appConfig.SessionConfig(u)
		if err != nil {
			return cfg, err
		}
		if err := applyFlags(cmd, &cfg); err != nil {
			return cfg, err
		}
		if cookies != "" {
			cfg.UseCookies = true
			cfg.Cookies = cookies
		}
		return cfg, nil
	}

	var urls []string
	if urlFile != "" {
		if urls, err = utils.ReadURLsFromFile(urlFile); err != nil {
			return err
		}
	} else {
		urls = []string{targetURL}
	}

	pause := appConfig.Scrape.BatchDelay
	if cmd.Flags().Changed("batch-delay") {
		pause = batchDelay
	}
	runner := core.NewBatchRunner(controller, build, time.Duration(pause)*time.Second, continueErr)

	var exported []models.ResultRow
	runner.OnReport = func(report *models.SessionReport) {
		exported = append(exported, report.Results...)
		if saveReport || appConfig.Output.SaveReport {
			if path, err := utils.NewReporter(report.Config.OutputDir).SaveReport(report); err != nil {
				utils.Warnf("保存会话报告失败: %v", err)
			} else {
				utils.Infof("会话报告: %s", path)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchSignals(runner, cancel)
	if !noKeys {
		go watchKeys(os.Stdin, controller, runner)
	}

	summary, results := runner.Run(ctx, urls)
	if len(urls) == 1 && len(results) == 1 && results[0].Error != nil {
		return results[0].Error
	}

	if exportPath != "" {
		if err := utils.ExportResults(exportPath, exported); err != nil {
			return fmt.Errorf("导出结果失败: %w", err)
		}
	}

	if summary.FailedURLs > 0 && summary.SuccessfulURLs == 0 {
		return fmt.Errorf("全部 %d 个URL抓取失败", summary.FailedURLs)
	}
	return nil
}

// loadCookies 读取 --cookies 或 --cookie-file
func loadCookies(text, path string) (string, error) {
	if text != "" && path != "" {
		return "", fmt.Errorf("--cookies 和 --cookie-file 不能同时使用")
	}
	if path != "" {
		return utils.ReadCookieFile(path)
	}
	return strings.TrimSpace(text), nil
}

// watchSignals 第一次Ctrl+C停止会话, 第二次强制退出
func watchSignals(runner *core.BatchRunner, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		utils.Warnf("收到中断信号: %v, 正在停止...", sig)
		runner.Stop()

		<-sigChan
		cancel()
		utils.Warn("再次收到中断信号, 强制退出")
		os.Exit(130)
	}()
}

// watchKeys 读取控制台输入: p 暂停/继续, s 停止
func watchKeys(in io.Reader, controller *core.Controller, runner *core.BatchRunner) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "p", "pause":
			status := controller.TogglePause()
			fmt.Fprintf(os.Stdout, ">>> %s\n", status)
		case "s", "stop":
			runner.Stop()
			fmt.Fprintln(os.Stdout, ">>> stopping")
		}
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("MediaScraper %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&headersConfig, "headers-config", "", "请求头配置文件路径 (默认 configs/headers.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")

	// 抓取参数
	rootCmd.Flags().StringVarP(&targetURL, "url", "u", "", "目标URL (除非使用 --url-file)")
	rootCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "包含URL列表的文件路径")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "输出目录 (默认取配置 output.base_dir)")
	rootCmd.Flags().IntVarP(&maxFiles, "max-files", "n", 100, "成功下载的文件数量上限")
	rootCmd.Flags().Float64Var(&delay, "delay", 1.0, "下载间隔(秒)")
	rootCmd.Flags().IntVarP(&depth, "depth", "d", 1, "链接跟随深度")
	rootCmd.Flags().BoolVar(&followLinks, "follow-links", false, "跟随同源链接")
	rootCmd.Flags().StringSliceVarP(&types, "types", "t", []string{"images"}, "资源类别 (images,videos,docs,audio,html,cssjs,fonts,all)")
	rootCmd.Flags().BoolVar(&noDedup, "no-dedup", false, "关闭去重")
	rootCmd.Flags().IntVar(&timeout, "timeout", 10, "页面请求超时(秒)")
	rootCmd.Flags().StringVar(&traversal, "traversal", "", "链接遍历顺序 (dfs|bfs)")
	rootCmd.Flags().Int64Var(&minSize, "min-size", 0, "最小文件大小(字节), 更小的文件视为跟踪像素")
	rootCmd.Flags().StringVar(&denyPattern, "deny", "", "URL过滤正则 (覆盖默认规则)")
	rootCmd.Flags().BoolVar(&insecure, "insecure", false, "跳过TLS证书验证")

	// Cookie参数
	rootCmd.Flags().StringVar(&cookieText, "cookies", "", "Cookie文本 (JSON导出或 'a=1; b=2' 格式)")
	rootCmd.Flags().StringVar(&cookieFile, "cookie-file", "", "Cookie文件路径")

	// 浏览器参数
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().StringVar(&browserBin, "browser-bin", "", "浏览器可执行文件路径")

	// 输出参数
	rootCmd.Flags().StringVar(&exportPath, "export", "", "导出结果列表 (.json 或 .csv)")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "不显示进度条")
	rootCmd.Flags().BoolVar(&noKeys, "no-keys", false, "不读取控制台按键 (p 暂停, s 停止)")
	rootCmd.Flags().BoolVar(&saveReport, "report", false, "保存会话报告 (覆盖配置 output.save_report)")

	// 批量处理参数
	rootCmd.Flags().IntVar(&batchDelay, "batch-delay", 1, "批量处理URL间延迟(秒) (默认取配置 scrape.batch_delay)")
	rootCmd.Flags().BoolVar(&continueErr, "continue-on-error", true, "遇到错误继续处理")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
