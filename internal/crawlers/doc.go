// Package crawlers 提供页面发现策略
//
// # 概述
//
// crawlers包负责"在页面上找到哪些资源",下载流程由core包的下载流水线统一处理。
// 两种策略实现同一个Strategy接口:
//
// ## StaticScan
//
// 普通HTTP获取页面(fetch.PageFetcher, 基于Colly),用正则从原始HTML中提取图片URL和同源链接。
// 资源通过fetch.Downloader下载。适合普通站点,支持按深度跟随链接。
//
//	scan := NewStaticScan(pageFetcher, downloader, logf)
//	result, err := scan.Discover(ctx, models.URLItem{URL: "https://example.com"})
//
// ## RenderedScan
//
// 基于go-rod的无头浏览器扫描,用于需要登录Cookie或JavaScript渲染的站点:
//   - 第一个页面时启动浏览器,启动前由ResourceGuard检查可用内存
//   - 注入Cookie,导航并等待网络空闲
//   - 跳转到登录页时返回ErrAuthExpired
//   - 分次滚动触发懒加载,再从DOM收集资源
//   - 资源在页面内fetch下载,携带Cookie和Referer
//
// 返回的PageScan持有打开的页面,处理完资源后必须调用Close。
//
// ## URLQueue
//
// 带深度标记的工作队列和已访问集合,取代递归跟随链接。
// 深度优先(默认)与递归先序遍历的访问顺序一致,也可配置为广度优先。
//
//	queue := NewURLQueue("example.com", cfg.MaxDepth, cfg.Policy.Traversal)
//	queue.Push(cfg.TargetURL, 0, "")
//	for item, ok := queue.Pop(); ok; item, ok = queue.Pop() {
//	    // 扫描页面, 下载资源
//	    queue.PushLinks(scan.Links, item.Depth+1, item.URL, cfg.Policy.MaxLinksPerPage)
//	}
package crawlers
