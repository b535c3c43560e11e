package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/RecoveryAshes/MediaScraper/internal/cookies"
	"github.com/RecoveryAshes/MediaScraper/internal/crawlers"
	"github.com/RecoveryAshes/MediaScraper/internal/fetch"
	"github.com/RecoveryAshes/MediaScraper/internal/models"
	"github.com/RecoveryAshes/MediaScraper/internal/utils"
)

// ErrSessionActive 已有会话在运行
var ErrSessionActive = errors.New("已有抓取会话在运行")

// ControllerOptions 控制器选项
type ControllerOptions struct {
	// Headers 合并后的请求头(默认 < 配置文件 < 命令行)
	Headers http.Header

	Browser crawlers.BrowserOptions
	// Guard 启动浏览器前的资源检查, 为nil时跳过
	Guard *crawlers.ResourceGuard

	InsecureSkipVerify bool
}

// strategyFactory 根据会话配置创建发现策略
type strategyFactory func(cfg models.SessionConfig, cookieList []models.Cookie, handle *Handle, logf models.LogFunc) crawlers.Strategy

// Controller 抓取会话控制器
//
// 同一时间只运行一个会话。Run 在调用方goroutine上执行到终止状态,
// TogglePause/Stop/Results/Status 可并发调用
type Controller struct {
	opts ControllerOptions
	sink models.EventSink

	mu      sync.Mutex
	handle  *Handle
	results []models.ResultRow

	newStrategy strategyFactory
}

// NewController 创建控制器
func NewController(opts ControllerOptions, sink models.EventSink) *Controller {
	if sink == nil {
		sink = models.DiscardSink
	}
	if opts.Headers == nil {
		opts.Headers = http.Header{"User-Agent": {utils.DefaultUserAgent}}
	}
	c := &Controller{opts: opts, sink: sink}
	c.newStrategy = c.defaultStrategy
	return c
}

// Run 执行一个抓取会话, 返回会话报告
//
// 执行流程:
//  1. 验证配置, 解析Cookie, 选择发现策略(有Cookie时使用无头浏览器)
//  2. 从目标URL开始按工作队列扫描页面, 每个页面的资源交给下载流水线
//  3. 结束时发送进度100和唯一一次complete事件, 关闭浏览器
//
// 会话内的错误只记录日志, 不作为返回值; 返回的error仅表示会话无法启动
func (c *Controller) Run(ctx context.Context, cfg models.SessionConfig) (*models.SessionReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("会话配置无效: %w", err)
	}

	handle, err := c.begin(cfg.Policy.PausePoll)
	if err != nil {
		return nil, err
	}

	report := models.NewSessionReport(cfg)
	logf := c.logFunc()

	var cookieList []models.Cookie
	if cfg.UseCookies {
		cookieList = cookies.Parse(cfg.Cookies)
	}
	strategy := c.newStrategy(cfg, cookieList, handle, logf)
	report.Strategy = strategy.Name()

	sessionLog := utils.ForSession(report.SessionID, cfg.TargetURL)
	sessionLog.Info().Str("strategy", strategy.Name()).Str("output", cfg.OutputDir).Msg("开始抓取会话")

	logf(models.LevelStart, "MediaScraper starting...")
	logf(models.LevelInfo, "Target: %s", cfg.TargetURL)
	logf(models.LevelInfo, "Output: %s", cfg.OutputDir)
	if strategy.Name() == "rendered" {
		logf(models.LevelInfo, "Mode: Headless browser (JS rendering + cookies)")
	} else {
		logf(models.LevelInfo, "Mode: Standard HTTP fetch")
	}
	logf(models.LevelInfo, "Max files: %d | Delay: %gs | Depth: %d", cfg.MaxFiles, cfg.DelaySeconds, cfg.MaxDepth)

	var counters models.RunCounters
	runErr := c.execute(ctx, cfg, strategy, handle, logf, &counters)

	if err := strategy.Close(); err != nil {
		utils.Warnf("关闭发现策略失败: %v", err)
	}

	status := models.StatusCompleted
	if runErr != nil || handle.wasStopped() || ctx.Err() != nil {
		status = models.StatusStopped
	}

	if runErr != nil {
		report.ErrorMessage = runErr.Error()
		logf(models.LevelError, "Scrape failed: %v", runErr)
	} else {
		logf(models.LevelDone, "Complete. Downloaded: %d, Errors: %d, Total: %s",
			counters.Downloaded, counters.Errors, utils.FormatSize(counters.TotalBytes))
	}

	c.sink.Emit(models.ProgressEvent{Percent: 100, RunCounters: counters})
	handle.finish(status)
	c.sink.Emit(models.CompleteEvent{
		Downloaded: counters.Downloaded,
		Errors:     counters.Errors,
		TotalBytes: counters.TotalBytes,
		Status:     status,
	})

	report.Finish(status, counters, c.Results())
	sessionLog.Info().
		Str("status", status.String()).
		Int("downloaded", counters.Downloaded).
		Int("errors", counters.Errors).
		Int64("bytes", counters.TotalBytes).
		Msg("抓取会话结束")
	return report, nil
}

// begin 创建新的会话句柄并清空上一次的结果
func (c *Controller) begin(poll time.Duration) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil && !c.handle.Status().Terminal() {
		return nil, ErrSessionActive
	}
	c.handle = NewHandle(poll)
	c.results = nil
	return c.handle, nil
}

// execute 运行页面工作队列, 捕获引擎中的panic
func (c *Controller) execute(ctx context.Context, cfg models.SessionConfig, strategy crawlers.Strategy,
	handle *Handle, logf models.LogFunc, counters *models.RunCounters) (err error) {

	var p *pipeline
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("抓取引擎panic: %v", r)
			err = fmt.Errorf("引擎内部错误: %v", r)
		}
		if p != nil {
			*counters = p.counters
		}
	}()

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	p, err = newPipeline(cfg, handle, c.sink, logf, c.appendResult)
	if err != nil {
		return err
	}

	queue := crawlers.NewURLQueue(cfg.TargetHost(), cfg.MaxDepth, cfg.Policy.Traversal)
	if err := queue.Push(cfg.TargetURL, 0, ""); err != nil {
		return err
	}

	for item, ok := queue.Pop(); ok; item, ok = queue.Pop() {
		if !handle.Active() || ctx.Err() != nil {
			break
		}

		links := c.scanPage(ctx, strategy, p, item, logf)

		if !handle.Active() {
			break
		}
		if cfg.FollowLinks && item.Depth < cfg.MaxDepth && len(links) > 0 {
			n := queue.PushLinks(links, item.Depth+1, item.URL, cfg.Policy.MaxLinksPerPage)
			utils.Debugf("页面 %s 新增 %d 个待扫描链接", item.URL, n)
		}
	}
	utils.Debugf("页面队列结束: 已访问 %d, 未处理 %d", queue.VisitedCount(), queue.PendingCount())
	return nil
}

// scanPage 扫描一个页面并下载其资源, 返回页面上的同源链接
func (c *Controller) scanPage(ctx context.Context, strategy crawlers.Strategy, p *pipeline,
	item models.URLItem, logf models.LogFunc) []string {

	scan, err := strategy.Discover(ctx, item)
	if err != nil {
		c.reportDiscoverError(strategy, item, err, logf)
		return nil
	}
	defer scan.Close()

	p.process(ctx, scan)
	return scan.Links
}

// reportDiscoverError 页面级错误只记录日志, 不中止会话
func (c *Controller) reportDiscoverError(strategy crawlers.Strategy, item models.URLItem, err error, logf models.LogFunc) {
	var statusErr *fetch.HTTPStatusError
	switch {
	case errors.Is(err, context.Canceled):
		utils.Debugf("页面扫描已取消: %s", item.URL)
	case errors.Is(err, crawlers.ErrAuthExpired):
		logf(models.LevelWarn, "Redirected to login page — cookies may be expired. Copy fresh cookies from your browser.")
	case errors.As(err, &statusErr):
		logf(models.LevelWarn, "HTTP %d: %s", statusErr.Code, item.URL)
	case strategy.Name() == "rendered":
		logf(models.LevelError, "Browser error: %v", err)
	default:
		logf(models.LevelError, "Failed to fetch: %s — %v", item.URL, err)
	}
}

// defaultStrategy 有Cookie时使用无头浏览器, 否则使用静态HTTP扫描
func (c *Controller) defaultStrategy(cfg models.SessionConfig, cookieList []models.Cookie, handle *Handle, logf models.LogFunc) crawlers.Strategy {
	if cfg.UseCookies && len(cookieList) > 0 {
		return crawlers.NewRenderedScan(crawlers.RenderedScanOptions{
			Browser:   c.opts.Browser,
			Cookies:   cookieList,
			UserAgent: c.opts.Headers.Get("User-Agent"),
			MaxFiles:  cfg.MaxFiles,
			Policy:    cfg.Policy,
			Guard:     c.opts.Guard,
			Control:   handle,
			Log:       logf,
		})
	}

	cookieHeader := cookies.ToHeader(cookieList)
	downloader := fetch.NewDownloader(fetch.DownloaderOptions{
		Headers:            c.opts.Headers,
		CookieHeader:       cookieHeader,
		Timeout:            cfg.Policy.DownloadTimeout,
		MaxRedirects:       cfg.Policy.MaxRedirects,
		InsecureSkipVerify: c.opts.InsecureSkipVerify,
	})
	pages := fetch.NewPageFetcher(fetch.PageFetcherOptions{
		Headers:            c.opts.Headers,
		CookieHeader:       cookieHeader,
		Timeout:            cfg.Timeout,
		MaxRedirects:       cfg.Policy.MaxRedirects,
		InsecureSkipVerify: c.opts.InsecureSkipVerify,
	})
	return crawlers.NewStaticScan(pages, downloader, logf)
}

// logFunc 将会话日志作为LogEvent发送
func (c *Controller) logFunc() models.LogFunc {
	return func(level models.LogLevel, format string, args ...interface{}) {
		c.sink.Emit(models.LogEvent{
			Level:     level,
			Message:   fmt.Sprintf(format, args...),
			Timestamp: time.Now(),
		})
	}
}

func (c *Controller) appendResult(row models.ResultRow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, row)
}

// TogglePause 切换暂停状态, 没有运行中的会话时返回 StatusIdle
func (c *Controller) TogglePause() models.SessionStatus {
	if h := c.currentHandle(); h != nil {
		return h.TogglePause()
	}
	return models.StatusIdle
}

// Stop 停止当前会话
func (c *Controller) Stop() {
	if h := c.currentHandle(); h != nil {
		h.Stop()
	}
}

// Status 当前会话状态
func (c *Controller) Status() models.SessionStatus {
	if h := c.currentHandle(); h != nil {
		return h.Status()
	}
	return models.StatusIdle
}

// Results 本次会话成功下载的结果行快照
func (c *Controller) Results() []models.ResultRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ResultRow(nil), c.results...)
}

func (c *Controller) currentHandle() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}
