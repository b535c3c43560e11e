package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/MediaScraper/internal/models"
	"github.com/RecoveryAshes/MediaScraper/internal/utils"
)

// DefaultDownloadTimeout 单个资源默认下载超时
const DefaultDownloadTimeout = 20 * time.Second

// DownloaderOptions 下载器选项
type DownloaderOptions struct {
	Headers            http.Header   // 基础请求头(User-Agent等)
	CookieHeader       string        // Cookie请求头, 为空则不发送
	Timeout            time.Duration // 单个资源超时(含读取响应体)
	MaxRedirects       int
	InsecureSkipVerify bool
}

// Downloader 通过普通HTTP请求下载资源到磁盘
type Downloader struct {
	client       *http.Client
	headers      http.Header
	cookieHeader string
	timeout      time.Duration

	// now 便于测试固定完成日期
	now func() time.Time
}

// NewDownloader 创建下载器
func NewDownloader(opts DownloaderOptions) *Downloader {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultDownloadTimeout
	}
	return &Downloader{
		// 超时由每次请求的context控制, 覆盖响应体读取阶段
		client: NewHTTPClient(ClientOptions{
			MaxRedirects:       opts.MaxRedirects,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}),
		headers:      opts.Headers.Clone(),
		cookieHeader: opts.CookieHeader,
		timeout:      opts.Timeout,
		now:          time.Now,
	}
}

// Download 下载 rawURL 到 dir/filename
//
// 处理流程:
//  1. 创建目标目录(含中间目录)
//  2. 发起请求, 跟随重定向(超过上限返回 ErrRedirectLoop)
//  3. 非2xx状态返回 *HTTPStatusError, 不创建文件
//  4. 流式写入磁盘, 失败时删除不完整的文件
//
// 返回文件路径、磁盘上的大小和完成日期(YYYY-MM-DD)
func (d *Downloader) Download(ctx context.Context, rawURL, dir, filename string) (*models.DownloadOutcome, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	for name, values := range d.headers {
		if len(values) > 0 {
			req.Header.Set(name, values[0])
		}
	}
	if d.cookieHeader != "" {
		req.Header.Set("Cookie", d.cookieHeader)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{Code: resp.StatusCode, URL: rawURL}
	}

	body := io.Reader(resp.Body)
	if !resp.Uncompressed {
		if body, err = decodeReader(resp.Header.Get("Content-Encoding"), resp.Body); err != nil {
			return nil, err
		}
	}

	filePath := filepath.Join(dir, filename)
	size, err := writeFile(filePath, body)
	if err != nil {
		return nil, classifyError(err)
	}

	utils.Debugf("下载完成: %s (%d bytes) <- %s", filePath, size, rawURL)
	return &models.DownloadOutcome{
		FilePath:    filePath,
		SizeBytes:   size,
		CompletedOn: d.now().Format("2006-01-02"),
	}, nil
}

// writeFile 将r写入path, 任何失败都会删除已写入的部分
func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("创建文件失败: %w", err)
	}

	written, err := io.Copy(f, r)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return written, nil
}
