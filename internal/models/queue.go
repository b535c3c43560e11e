package models

// URLItem 待扫描页面
// Depth 为0表示入口页面, 从深度d的页面发现的链接深度为d+1
type URLItem struct {
	URL       string
	Depth     int
	SourceURL string // 发现该链接的页面, 入口页面为空
}
