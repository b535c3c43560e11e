// Package fetch 提供抓取使用的HTTP传输层
//
// 包含:
//   - Downloader: 将单个资源流式写入磁盘
//   - PageFetcher: 基于colly获取页面HTML
//
// 两者共享同一套重定向策略(跳数上限, 超出返回ErrRedirectLoop)和错误分类。
package fetch

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultMaxRedirects 默认最大重定向跳数
const DefaultMaxRedirects = 10

// ClientOptions HTTP客户端选项
type ClientOptions struct {
	Timeout            time.Duration // 整体请求超时,0表示不限制
	MaxRedirects       int           // 最大重定向跳数
	InsecureSkipVerify bool          // 跳过TLS证书验证
}

// NewHTTPClient 创建HTTP客户端
// 客户端带有会话级Cookie Jar, 重定向过程中服务端设置的Cookie会在后续请求中带上
func NewHTTPClient(opts ClientOptions) *http.Client {
	// publicsuffix保证Cookie不会被设置到公共后缀域名上
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}

	return &http.Client{
		Transport:     transport,
		Timeout:       opts.Timeout,
		Jar:           jar,
		CheckRedirect: RedirectPolicy(opts.MaxRedirects),
	}
}

// RedirectPolicy 重定向策略: 最多跟随 maxRedirects 跳, 超出返回 ErrRedirectLoop
// maxRedirects <= 0 时使用默认值
func RedirectPolicy(maxRedirects int) func(req *http.Request, via []*http.Request) error {
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	return func(req *http.Request, via []*http.Request) error {
		// via 包含已发出的请求, 第N次重定向时 len(via) == N
		if len(via) > maxRedirects {
			return ErrRedirectLoop
		}
		return nil
	}
}
