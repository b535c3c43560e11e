package models

import (
	"fmt"
	"regexp"
	"time"
)

// Traversal 链接跟随的遍历顺序
type Traversal string

const (
	TraversalDepthFirst   Traversal = "depth-first"   // 深度优先(先序)
	TraversalBreadthFirst Traversal = "breadth-first" // 广度优先
)

// DefaultDenyPattern 跟踪像素/图标过滤规则(不区分大小写)
const DefaultDenyPattern = `emoji|1x1|pixel|blank\.|spacer\.|icon.*\.(png|gif)$`

// Policy 抓取策略参数
type Policy struct {
	MinAssetBytes      int64         `json:"min_asset_bytes" mapstructure:"min_asset_bytes"`           // 小于此大小的文件视为跟踪像素
	DenyPattern        string        `json:"deny_pattern" mapstructure:"deny_pattern"`                 // URL过滤正则
	MaxLinksPerPage    int           `json:"max_links_per_page" mapstructure:"max_links_per_page"`     // 每页最多跟随的链接数
	Traversal          Traversal     `json:"traversal" mapstructure:"traversal"`                       // 遍历顺序
	MaxRedirects       int           `json:"max_redirects" mapstructure:"max_redirects"`               // 最大重定向跳数
	DownloadTimeout    time.Duration `json:"download_timeout" mapstructure:"download_timeout"`         // 单个资源下载超时
	NavigationTimeout  time.Duration `json:"navigation_timeout" mapstructure:"navigation_timeout"`     // 浏览器导航超时
	ScrollSettle       time.Duration `json:"scroll_settle" mapstructure:"scroll_settle"`               // 每次滚动后等待时间
	MaxScrollPasses    int           `json:"max_scroll_passes" mapstructure:"max_scroll_passes"`       // 滚动次数上限
	PausePoll          time.Duration `json:"pause_poll" mapstructure:"pause_poll"`                     // 暂停状态轮询间隔
	BrowserDelayFactor float64       `json:"browser_delay_factor" mapstructure:"browser_delay_factor"` // 浏览器下载的间隔系数
}

// DefaultPolicy 默认策略
func DefaultPolicy() Policy {
	return Policy{
		MinAssetBytes:      3000,
		DenyPattern:        DefaultDenyPattern,
		MaxLinksPerPage:    20,
		Traversal:          TraversalDepthFirst,
		MaxRedirects:       10,
		DownloadTimeout:    20 * time.Second,
		NavigationTimeout:  30 * time.Second,
		ScrollSettle:       700 * time.Millisecond,
		MaxScrollPasses:    30,
		PausePoll:          500 * time.Millisecond,
		BrowserDelayFactor: 0.5,
	}
}

// Validate 验证策略参数
func (p Policy) Validate() error {
	if p.MinAssetBytes < 0 {
		return fmt.Errorf("最小文件大小不能为负数")
	}
	if p.MaxLinksPerPage < 0 {
		return fmt.Errorf("每页链接数不能为负数")
	}
	if p.MaxRedirects < 0 {
		return fmt.Errorf("重定向次数不能为负数")
	}
	switch p.Traversal {
	case TraversalDepthFirst, TraversalBreadthFirst:
	default:
		return fmt.Errorf("未知的遍历顺序: %q", p.Traversal)
	}
	if _, err := p.DenyRegexp(); err != nil {
		return err
	}
	return nil
}

// DenyRegexp 编译过滤正则,空规则返回nil
func (p Policy) DenyRegexp() (*regexp.Regexp, error) {
	if p.DenyPattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?i)" + p.DenyPattern)
	if err != nil {
		return nil, fmt.Errorf("过滤规则无效: %w", err)
	}
	return re, nil
}
