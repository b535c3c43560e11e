package crawlers

import (
	"context"
	"errors"
	"time"

	"github.com/RecoveryAshes/MediaScraper/internal/models"
)

var (
	// ErrAuthExpired 导航后跳转到登录页, 通常是Cookie已过期
	ErrAuthExpired = errors.New("已跳转到登录页, Cookie可能已过期")
	// ErrBrowserCrashed 浏览器操作panic或连接断开
	ErrBrowserCrashed = errors.New("浏览器崩溃")
	// ErrNavigationTimeout 页面在导航超时内未进入网络空闲
	ErrNavigationTimeout = errors.New("页面导航超时")
)

// Transport 资源传输方式
//
// 实现: fetch.Downloader(普通HTTP) 和 browserTransport(浏览器上下文内fetch)
type Transport interface {
	Download(ctx context.Context, rawURL, dir, filename string) (*models.DownloadOutcome, error)
}

// RunControl 会话运行控制, 供长时间操作在循环中检查
type RunControl interface {
	// Active 会话是否仍在运行(未停止)
	Active() bool
	// WaitWhilePaused 暂停时阻塞, 返回false表示等待期间会话被停止
	WaitWhilePaused(ctx context.Context) bool
}

// PageScan 单个页面的发现结果
//
// 浏览器策略的页面在资源下载完成前保持打开, 调用方必须在处理完后调用Close
type PageScan struct {
	PageURL string
	Assets  []string // 按发现顺序排列的候选资源URL
	Links   []string // 同源链接, 仅静态策略填充

	// Transport 下载这些资源所用的传输方式
	Transport Transport
	// DelayFactor 下载间隔系数, 浏览器下载为0.5
	DelayFactor float64

	release func()
}

// Close 释放页面资源, 可重复调用
func (s *PageScan) Close() {
	if s == nil || s.release == nil {
		return
	}
	release := s.release
	s.release = nil
	release()
}

// Strategy 页面发现策略
type Strategy interface {
	// Name 策略名称, 写入会话报告
	Name() string
	// Discover 扫描一个页面, 返回候选资源和链接
	Discover(ctx context.Context, item models.URLItem) (*PageScan, error)
	// Close 释放策略持有的资源(浏览器等)
	Close() error
}

// noopControl 未提供RunControl时使用
type noopControl struct{}

func (noopControl) Active() bool                             { return true }
func (noopControl) WaitWhilePaused(ctx context.Context) bool { return ctx.Err() == nil }

// sleepContext 等待d, context取消时提前返回false
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func discardLog(models.LogLevel, string, ...interface{}) {}
