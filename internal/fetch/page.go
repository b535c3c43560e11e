package fetch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/RecoveryAshes/MediaScraper/internal/utils"
	"github.com/gocolly/colly/v2"
)

// DefaultPageTimeout 页面请求默认超时
const DefaultPageTimeout = 10 * time.Second

// Page 页面请求结果
type Page struct {
	URL    string // 跟随重定向后的最终URL
	Status int
	HTML   string
	Header http.Header
}

// OK 状态码是否为200
func (p *Page) OK() bool {
	return p.Status == http.StatusOK
}

// PageFetcherOptions 页面请求器选项
type PageFetcherOptions struct {
	Headers            http.Header
	CookieHeader       string
	Timeout            time.Duration
	MaxRedirects       int
	InsecureSkipVerify bool
}

// PageFetcher 使用Colly获取页面HTML
//
// HTTP错误状态(如404)作为带状态码的Page返回, 只有传输层失败才返回error
type PageFetcher struct {
	collector    *colly.Collector
	headers      http.Header
	cookieHeader string
}

// NewPageFetcher 创建页面请求器
func NewPageFetcher(opts PageFetcherOptions) *PageFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPageTimeout
	}

	userAgent := opts.Headers.Get("User-Agent")

	// 同步模式: Visit在回调执行完毕后返回
	// 访问去重由上层工作队列负责, 这里允许重复访问
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.UserAgent(userAgent),
	)

	// 先设置客户端, 再设置重定向处理器和超时(二者都作用于当前客户端)
	c.SetClient(NewHTTPClient(ClientOptions{
		Timeout:            opts.Timeout,
		MaxRedirects:       opts.MaxRedirects,
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}))
	c.SetRedirectHandler(RedirectPolicy(opts.MaxRedirects))
	c.SetRequestTimeout(opts.Timeout)

	return &PageFetcher{
		collector:    c,
		headers:      opts.Headers.Clone(),
		cookieHeader: opts.CookieHeader,
	}
}

// Fetch 获取页面
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 每次请求使用独立的回调, Clone共享HTTP客户端
	c := f.collector.Clone()

	var page *Page
	var callbackErr error

	c.OnRequest(func(r *colly.Request) {
		for name, values := range f.headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
		if f.cookieHeader != "" {
			r.Headers.Set("Cookie", f.cookieHeader)
		}
		utils.Debugf("请求页面: %s", r.URL.String())
	})

	c.OnResponse(func(r *colly.Response) {
		header := http.Header{}
		if r.Headers != nil {
			header = r.Headers.Clone()
		}

		body := r.Body
		if encoding := header.Get("Content-Encoding"); encoding != "" {
			decompressed, err := decompressBody(encoding, r.Body)
			if err != nil {
				utils.Warnf("解压响应失败 [%s] (编码=%s): %v", r.Request.URL, encoding, err)
			} else {
				body = decompressed
			}
		}

		page = &Page{
			URL:    r.Request.URL.String(),
			Status: r.StatusCode,
			HTML:   string(toUTF8(body, header.Get("Content-Type"))),
			Header: header,
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		callbackErr = err
	})

	visitErr := c.Visit(rawURL)
	if page != nil {
		return page, nil
	}

	err := visitErr
	if err == nil {
		err = callbackErr
	}
	if err == nil {
		err = errors.New("未收到响应")
	}
	return nil, classifyError(err)
}
