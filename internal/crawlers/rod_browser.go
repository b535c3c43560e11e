package crawlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/RecoveryAshes/MediaScraper/internal/fetch"
	"github.com/RecoveryAshes/MediaScraper/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	viewportWidth  = 1280
	viewportHeight = 900

	// requestIdleWindow 无网络请求持续该时长视为页面加载完成
	requestIdleWindow = 500 * time.Millisecond
)

// BrowserOptions 无头浏览器启动选项
type BrowserOptions struct {
	Headless  bool
	Bin       string // 浏览器路径, 为空时由launcher查找或下载
	NoSandbox bool

	// IgnoreCertErrors 允许访问自签名、过期或主机名不匹配的HTTPS站点
	IgnoreCertErrors bool
}

// DefaultBrowserOptions 默认浏览器选项
func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{Headless: true, NoSandbox: true}
}

const maskWebdriverJS = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`

const scrollDownJS = `() => window.scrollBy(0, window.innerHeight * 2)`

const scrollTopJS = `() => window.scrollTo(0, 0)`

// collectAssetsJS 收集img及懒加载属性、计算后的背景图和内联脚本中的CDN图片地址
const collectAssetsJS = `() => {
	const urls = new Set();
	document.querySelectorAll('img').forEach(img => {
		[img.src, img.dataset.src, img.dataset.lazySrc, img.dataset.original,
		 img.getAttribute('data-src'), img.getAttribute('data-original')]
			.filter(s => s && s.startsWith('http') && !s.startsWith('data:'))
			.forEach(s => urls.add(s));
	});
	document.querySelectorAll('*').forEach(el => {
		try {
			const bg = window.getComputedStyle(el).backgroundImage;
			const m = bg && bg.match(/url\(["']?(https?[^"')]+)["']?\)/);
			if (m && m[1]) urls.add(m[1]);
		} catch (e) {}
	});
	document.querySelectorAll('script').forEach(s => {
		const text = s.textContent || '';
		const matches = text.matchAll(/"(https?:\\?\/\\?\/[^"\\]*(?:scontent|fbcdn|cdninstagram|twimg)[^"\\]*(?:\.jpg|\.jpeg|\.png|\.webp|\.gif)[^"\\]*)"/g);
		for (const m of matches) {
			const cleaned = m[1].replace(/\\u0026/g, '&').replace(/\\\//g, '/').replace(/\\/g, '');
			if (cleaned.startsWith('http')) urls.add(cleaned);
		}
	});
	return JSON.stringify([...urls]);
}`

// fetchBytesJS 在页面中携带Cookie请求资源, 以base64返回
const fetchBytesJS = `async (src) => {
	const resp = await fetch(src, { credentials: 'include' });
	if (!resp.ok) throw new Error('HTTP ' + resp.status);
	const buf = new Uint8Array(await resp.arrayBuffer());
	let bin = '';
	for (let i = 0; i < buf.length; i += 0x8000) {
		bin += String.fromCharCode.apply(null, buf.subarray(i, i + 0x8000));
	}
	return btoa(bin);
}`

var evalStatusPattern = regexp.MustCompile(`HTTP (\d{3})`)

// rodBrowser go-rod实现的browserDriver
type rodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// launchRodBrowser 启动并连接无头浏览器
func launchRodBrowser(opts BrowserOptions) (browserDriver, error) {
	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(opts.NoSandbox).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-infobars").
		Set("window-size", fmt.Sprintf("%d,%d", viewportWidth, viewportHeight)).
		Delete("enable-automation")

	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	if opts.IgnoreCertErrors {
		l = l.Set("ignore-certificate-errors")
		utils.Debugf("浏览器启动参数: --ignore-certificate-errors (跳过TLS证书验证)")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	return &rodBrowser{launcher: l, browser: browser}, nil
}

// OpenPage 打开新页面: 隐藏webdriver标记, 设置视口、UA和Cookie
func (b *rodBrowser) OpenPage(ctx context.Context, setup pageSetup) (renderedPage, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("创建标签页失败: %w", err)
	}

	if err := setupPage(page, setup); err != nil {
		_ = page.Close()
		return nil, err
	}
	return &rodPage{page: page}, nil
}

func setupPage(page *rod.Page, setup pageSetup) error {
	if _, err := page.EvalOnNewDocument(maskWebdriverJS); err != nil {
		return fmt.Errorf("注入初始化脚本失败: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            viewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("设置视口失败: %w", err)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: setup.UserAgent}); err != nil {
		return fmt.Errorf("设置User-Agent失败: %w", err)
	}

	if len(setup.Cookies) > 0 {
		params := make([]*proto.NetworkCookieParam, 0, len(setup.Cookies))
		for _, c := range setup.Cookies {
			params = append(params, &proto.NetworkCookieParam{
				Name:   c.Name,
				Value:  c.Value,
				Domain: c.Domain,
				Path:   "/",
				Secure: true,
			})
		}
		if err := page.SetCookies(params); err != nil {
			return fmt.Errorf("注入Cookie失败: %w", err)
		}
	}
	return nil
}

// Close 关闭浏览器并清理用户数据目录
func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}

// rodPage go-rod实现的renderedPage
type rodPage struct {
	page *rod.Page
}

// Navigate 导航并等待网络空闲
func (p *rodPage) Navigate(ctx context.Context, rawURL string, timeout time.Duration) error {
	page := p.page.Context(ctx)
	if timeout > 0 {
		page = page.Timeout(timeout)
		defer page.CancelTimeout()
	}

	wait := page.WaitRequestIdle(requestIdleWindow, nil, nil, nil)
	if err := page.Navigate(rawURL); err != nil {
		return p.navigationError(ctx, rawURL, err)
	}
	wait()

	// WaitRequestIdle 在context结束时直接返回, 需要检查是否超时
	if err := page.GetContext().Err(); err != nil {
		return p.navigationError(ctx, rawURL, err)
	}
	return nil
}

func (p *rodPage) navigationError(ctx context.Context, rawURL string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrNavigationTimeout, rawURL)
	}
	return fmt.Errorf("导航失败: %w", err)
}

// CurrentURL 当前页面地址
func (p *rodPage) CurrentURL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// ScrollDown 向下滚动两个视口高度
func (p *rodPage) ScrollDown(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(scrollDownJS)
	return err
}

// ScrollTop 滚动回顶部
func (p *rodPage) ScrollTop(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(scrollTopJS)
	return err
}

// CollectAssetURLs 从渲染后的DOM收集资源URL
func (p *rodPage) CollectAssetURLs(ctx context.Context) ([]string, error) {
	res, err := p.page.Context(ctx).Eval(collectAssetsJS)
	if err != nil {
		return nil, err
	}

	var urls []string
	if err := json.Unmarshal([]byte(res.Value.Str()), &urls); err != nil {
		return nil, fmt.Errorf("解析DOM资源列表失败: %w", err)
	}
	return urls, nil
}

// FetchBytes 在页面上下文中请求资源
// 页面内fetch失败的状态码转换为 *fetch.HTTPStatusError
func (p *rodPage) FetchBytes(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	page := p.page.Context(ctx)
	if timeout > 0 {
		page = page.Timeout(timeout)
		defer page.CancelTimeout()
	}

	res, err := page.Eval(fetchBytesJS, rawURL)
	if err != nil {
		return nil, fetchEvalError(ctx, page.GetContext(), rawURL, err)
	}

	data, err := base64.StdEncoding.DecodeString(res.Value.Str())
	if err != nil {
		return nil, fmt.Errorf("解码资源内容失败: %w", err)
	}
	return data, nil
}

// fetchEvalError 将页面内fetch的错误归类
func fetchEvalError(parent, evalCtx context.Context, rawURL string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if evalCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", fetch.ErrTimeout, err)
	}
	if m := evalStatusPattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return &fetch.HTTPStatusError{Code: code, URL: rawURL}
	}
	return fmt.Errorf("%w: %v", fetch.ErrNetwork, err)
}

// Close 关闭页面
func (p *rodPage) Close() error {
	return p.page.Close()
}
