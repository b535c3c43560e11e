package crawlers

import (
	"fmt"
	"net/url"

	"github.com/RecoveryAshes/MediaScraper/internal/models"
)

// URLQueue 带深度标记的页面工作队列
// 职责: 管理待扫描和已访问的页面URL, 按配置的遍历顺序出队
//
// 深度优先时作为栈使用, 链接逆序压入, 出队顺序与递归先序遍历一致;
// 广度优先时作为FIFO队列使用。
// 队列只由引擎goroutine访问, 不加锁
type URLQueue struct {
	// 待处理URL
	pending []models.URLItem

	// 已访问URL标记集合
	visited map[string]bool

	// 目标主机名(用于跨域过滤)
	targetHost string

	// 最大爬取深度
	maxDepth int

	traversal models.Traversal
}

// NewURLQueue 创建URL队列实例
func NewURLQueue(targetHost string, maxDepth int, traversal models.Traversal) *URLQueue {
	if traversal == "" {
		traversal = models.TraversalDepthFirst
	}
	return &URLQueue{
		visited:    make(map[string]bool),
		targetHost: targetHost,
		maxDepth:   maxDepth,
		traversal:  traversal,
	}
}

// Push 添加URL到待扫描队列
// 检查URL有效性、深度限制、跨域过滤、已访问检查
func (q *URLQueue) Push(urlStr string, depth int, source string) error {
	if err := q.check(urlStr, depth); err != nil {
		return err
	}
	q.pending = append(q.pending, models.URLItem{URL: urlStr, Depth: depth, SourceURL: source})
	return nil
}

// PushLinks 添加一个页面的链接, 最多limit个(<=0表示不限制)
// 返回实际入队的数量
func (q *URLQueue) PushLinks(links []string, depth int, source string, limit int) int {
	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}

	accepted := make([]models.URLItem, 0, len(links))
	for _, link := range links {
		if err := q.check(link, depth); err != nil {
			continue
		}
		accepted = append(accepted, models.URLItem{URL: link, Depth: depth, SourceURL: source})
	}

	if q.traversal == models.TraversalDepthFirst {
		// 逆序压栈, 第一个链接最先出栈
		for i := len(accepted) - 1; i >= 0; i-- {
			q.pending = append(q.pending, accepted[i])
		}
	} else {
		q.pending = append(q.pending, accepted...)
	}
	return len(accepted)
}

// Pop 取出下一个未访问的URL并标记为已访问
// 队列为空时返回false
func (q *URLQueue) Pop() (models.URLItem, bool) {
	for len(q.pending) > 0 {
		var item models.URLItem
		if q.traversal == models.TraversalDepthFirst {
			last := len(q.pending) - 1
			item = q.pending[last]
			q.pending = q.pending[:last]
		} else {
			item = q.pending[0]
			q.pending = q.pending[1:]
		}

		// 同一URL可能在被访问前多次入队
		if q.IsVisited(item.URL) {
			continue
		}
		q.visited[item.URL] = true
		return item, true
	}
	return models.URLItem{}, false
}

// check 验证URL能否入队
func (q *URLQueue) check(urlStr string, depth int) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("URL格式无效: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("不支持的协议: %s", parsedURL.Scheme)
	}

	if depth > q.maxDepth {
		return fmt.Errorf("深度超过限制: %d > %d", depth, q.maxDepth)
	}

	if q.targetHost != "" && parsedURL.Hostname() != q.targetHost {
		return fmt.Errorf("跨域链接已过滤: %s (目标域名: %s)", parsedURL.Hostname(), q.targetHost)
	}

	if q.IsVisited(urlStr) {
		return fmt.Errorf("URL已访问: %s", urlStr)
	}
	return nil
}

// IsVisited 检查URL是否已访问
func (q *URLQueue) IsVisited(urlStr string) bool {
	return q.visited[urlStr]
}

// PendingCount 返回当前待处理URL数量
func (q *URLQueue) PendingCount() int {
	return len(q.pending)
}

// VisitedCount 返回已访问URL数量
func (q *URLQueue) VisitedCount() int {
	return len(q.visited)
}
