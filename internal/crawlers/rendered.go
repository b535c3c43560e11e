package crawlers

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/MediaScraper/internal/models"
	"github.com/RecoveryAshes/MediaScraper/internal/utils"
)

// scrollTopSettle 回到顶部后的等待时间
const scrollTopSettle = 500 * time.Millisecond

// loginMarkers 导航后URL包含这些片段时视为跳转到登录页
var loginMarkers = []string{"login", "checkpoint", "accounts/login"}

// browserDriver 无头浏览器实例
type browserDriver interface {
	OpenPage(ctx context.Context, setup pageSetup) (renderedPage, error)
	Close() error
}

// renderedPage 浏览器中打开的单个页面
type renderedPage interface {
	// Navigate 导航并等待网络空闲, 超时返回 ErrNavigationTimeout
	Navigate(ctx context.Context, rawURL string, timeout time.Duration) error
	// CurrentURL 导航(含重定向)后的地址
	CurrentURL(ctx context.Context) (string, error)
	// ScrollDown 向下滚动两个视口高度
	ScrollDown(ctx context.Context) error
	// ScrollTop 滚动回顶部
	ScrollTop(ctx context.Context) error
	// CollectAssetURLs 从渲染后的DOM收集资源URL
	CollectAssetURLs(ctx context.Context) ([]string, error)
	// FetchBytes 在页面上下文中携带Cookie获取资源
	FetchBytes(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error)
	Close() error
}

// pageSetup 新页面的初始化参数
type pageSetup struct {
	UserAgent string
	Cookies   []models.Cookie // 域名已填充
}

// RenderedScanOptions 渲染扫描选项
type RenderedScanOptions struct {
	Browser   BrowserOptions
	Cookies   []models.Cookie
	UserAgent string
	MaxFiles  int
	Policy    models.Policy

	// Guard 启动浏览器前的资源检查, 为nil时跳过
	Guard   *ResourceGuard
	Control RunControl
	Log     models.LogFunc
}

// RenderedScan 渲染DOM扫描策略
// 职责: 在无头浏览器中加载页面(注入Cookie), 滚动触发懒加载, 从DOM提取资源,
// 资源通过页面内fetch下载。浏览器在第一个页面时启动, Close时关闭
type RenderedScan struct {
	opts    RenderedScanOptions
	launch  func(BrowserOptions) (browserDriver, error)
	browser browserDriver
	now     func() time.Time
}

// NewRenderedScan 创建渲染扫描策略
func NewRenderedScan(opts RenderedScanOptions) *RenderedScan {
	if opts.Control == nil {
		opts.Control = noopControl{}
	}
	if opts.Log == nil {
		opts.Log = discardLog
	}
	if opts.UserAgent == "" {
		opts.UserAgent = utils.DefaultUserAgent
	}
	return &RenderedScan{
		opts:   opts,
		launch: launchRodBrowser,
		now:    time.Now,
	}
}

// Name 实现Strategy接口
func (s *RenderedScan) Name() string { return "rendered" }

// Discover 在浏览器中加载页面并收集资源
//
// 返回的PageScan持有打开的页面, 其Transport通过该页面下载资源
func (s *RenderedScan) Discover(ctx context.Context, item models.URLItem) (scan *PageScan, err error) {
	// 浏览器操作panic转换为ErrBrowserCrashed, 下一个页面重新启动浏览器
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("浏览器操作panic: %v", r)
			s.discardBrowser()
			scan, err = nil, fmt.Errorf("%w: %v", ErrBrowserCrashed, r)
		}
	}()

	if err := s.ensureBrowser(); err != nil {
		return nil, err
	}

	cookies := scopeCookies(s.opts.Cookies, item.URL)
	if len(cookies) > 0 {
		s.opts.Log(models.LevelInfo, "Injecting %d session cookies...", len(cookies))
	}

	page, err := s.browser.OpenPage(ctx, pageSetup{UserAgent: s.opts.UserAgent, Cookies: cookies})
	if err != nil {
		return nil, fmt.Errorf("打开页面失败: %w", err)
	}

	ok := false
	defer func() {
		if !ok {
			page.Close()
		}
	}()

	s.opts.Log(models.LevelScan, "Navigating to: %s", item.URL)
	if err := page.Navigate(ctx, item.URL, s.opts.Policy.NavigationTimeout); err != nil {
		return nil, err
	}

	current, err := page.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取页面地址失败: %w", err)
	}
	if isLoginURL(current) {
		return nil, ErrAuthExpired
	}

	s.opts.Log(models.LevelScan, "Page loaded. Scrolling to reveal lazy-loaded images...")
	if err := s.autoScroll(ctx, page); err != nil {
		return nil, err
	}

	s.opts.Log(models.LevelScan, "Extracting image URLs from rendered DOM...")
	assets, err := page.CollectAssetURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("提取DOM资源失败: %w", err)
	}
	s.opts.Log(models.LevelScan, "Found %d image URLs. Downloading via browser...", len(assets))

	ok = true
	return &PageScan{
		PageURL: item.URL,
		Assets:  assets,
		Transport: &browserTransport{
			page:    page,
			timeout: s.opts.Policy.DownloadTimeout,
			now:     s.now,
		},
		DelayFactor: s.opts.Policy.BrowserDelayFactor,
		release: func() {
			if err := page.Close(); err != nil {
				utils.Debugf("关闭页面失败: %v", err)
			}
		},
	}, nil
}

// autoScroll 分次滚动页面, 触发懒加载的图片
// 滚动次数为 min(ceil(maxFiles/5), MaxScrollPasses)
func (s *RenderedScan) autoScroll(ctx context.Context, page renderedPage) error {
	passes := scrollPasses(s.opts.MaxFiles, s.opts.Policy.MaxScrollPasses)

	for i := 0; i < passes; i++ {
		if !s.opts.Control.Active() || !s.opts.Control.WaitWhilePaused(ctx) {
			break
		}
		if err := page.ScrollDown(ctx); err != nil {
			return fmt.Errorf("页面滚动失败: %w", err)
		}
		if !sleepContext(ctx, s.opts.Policy.ScrollSettle) {
			return ctx.Err()
		}
		if i%5 == 0 && i > 0 {
			s.opts.Log(models.LevelScan, "Scrolling... (%d/%d)", i, passes)
		}
	}

	if err := page.ScrollTop(ctx); err != nil {
		return fmt.Errorf("页面滚动失败: %w", err)
	}
	if !sleepContext(ctx, scrollTopSettle) {
		return ctx.Err()
	}
	return nil
}

// ensureBrowser 按需启动浏览器
func (s *RenderedScan) ensureBrowser() error {
	if s.browser != nil {
		return nil
	}

	if s.opts.Guard != nil {
		if err := s.opts.Guard.Check(); err != nil {
			return err
		}
	}

	s.opts.Log(models.LevelInfo, "Launching headless browser...")
	browser, err := s.launch(s.opts.Browser)
	if err != nil {
		return err
	}
	s.browser = browser
	s.opts.Log(models.LevelInfo, "Headless browser ready.")
	return nil
}

// discardBrowser 丢弃崩溃的浏览器实例
func (s *RenderedScan) discardBrowser() {
	if s.browser == nil {
		return
	}
	func() {
		defer func() { _ = recover() }()
		_ = s.browser.Close()
	}()
	s.browser = nil
}

// Close 关闭浏览器, 可重复调用
func (s *RenderedScan) Close() error {
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	if err != nil {
		return fmt.Errorf("关闭浏览器失败: %w", err)
	}
	utils.Debugf("浏览器已关闭")
	return nil
}

// scrollPasses 滚动次数
func scrollPasses(maxFiles, limit int) int {
	passes := (maxFiles + 4) / 5
	if limit > 0 && passes > limit {
		passes = limit
	}
	if passes < 0 {
		passes = 0
	}
	return passes
}

// isLoginURL 判断URL是否为登录/验证页
func isLoginURL(rawURL string) bool {
	for _, marker := range loginMarkers {
		if strings.Contains(rawURL, marker) {
			return true
		}
	}
	return false
}

// scopeCookies 为没有域名的Cookie填充页面主机名
func scopeCookies(cookies []models.Cookie, pageURL string) []models.Cookie {
	if len(cookies) == 0 {
		return nil
	}
	host := ""
	if u, err := url.Parse(pageURL); err == nil {
		host = u.Hostname()
	}

	scoped := make([]models.Cookie, len(cookies))
	for i, c := range cookies {
		if c.Domain == "" {
			c.Domain = host
		}
		scoped[i] = c
	}
	return scoped
}

// browserTransport 通过浏览器页面下载资源
// 请求在页面上下文中发出, 自动携带Cookie和Referer
type browserTransport struct {
	page    renderedPage
	timeout time.Duration
	now     func() time.Time
}

// Download 实现Transport接口
func (t *browserTransport) Download(ctx context.Context, rawURL, dir, filename string) (*models.DownloadOutcome, error) {
	data, err := t.page.FetchBytes(ctx, rawURL, t.timeout)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}
	filePath := filepath.Join(dir, filename)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return nil, fmt.Errorf("写入文件失败: %w", err)
	}

	return &models.DownloadOutcome{
		FilePath:    filePath,
		SizeBytes:   int64(len(data)),
		CompletedOn: t.now().Format("2006-01-02"),
	}, nil
}
