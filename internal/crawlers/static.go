package crawlers

import (
	"context"

	"github.com/RecoveryAshes/MediaScraper/internal/fetch"
	"github.com/RecoveryAshes/MediaScraper/internal/models"
)

// PageSource 获取页面HTML, fetch.PageFetcher 实现此接口
type PageSource interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// StaticScan 静态HTML扫描策略
// 职责: 普通HTTP获取页面, 用正则提取资源和同源链接, 资源由普通HTTP下载
type StaticScan struct {
	pages     PageSource
	transport Transport
	logf      models.LogFunc
}

// NewStaticScan 创建静态扫描策略
func NewStaticScan(pages PageSource, transport Transport, logf models.LogFunc) *StaticScan {
	if logf == nil {
		logf = discardLog
	}
	return &StaticScan{
		pages:     pages,
		transport: transport,
		logf:      logf,
	}
}

// Name 实现Strategy接口
func (s *StaticScan) Name() string { return "static" }

// Discover 获取页面并提取资源和链接
// 非200状态返回 *fetch.HTTPStatusError
func (s *StaticScan) Discover(ctx context.Context, item models.URLItem) (*PageScan, error) {
	s.logf(models.LevelScan, "Fetching: %s", item.URL)

	page, err := s.pages.Fetch(ctx, item.URL)
	if err != nil {
		return nil, err
	}
	if !page.OK() {
		return nil, &fetch.HTTPStatusError{Code: page.Status, URL: item.URL}
	}

	assets := ExtractAssetURLs(page.HTML, item.URL)
	s.logf(models.LevelScan, "Found %d asset URLs on page", len(assets))

	return &PageScan{
		PageURL:     item.URL,
		Assets:      assets,
		Links:       ExtractLinks(page.HTML, item.URL),
		Transport:   s.transport,
		DelayFactor: 1,
	}, nil
}

// Close 实现Strategy接口
func (s *StaticScan) Close() error { return nil }
