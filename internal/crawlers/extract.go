package crawlers

import (
	"net/url"
	"regexp"
	"strings"
)

// assetPatterns 静态HTML中的资源URL规则, 按顺序匹配
//
//  1. src/data-src/data-lazy-src/data-original 属性中的图片
//  2. CSS url(...) 中的图片
//  3. 内嵌JSON中 "url"/"src"/"image"/"photo"/"thumbnail"/"uri" 字段的绝对图片URL
var assetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:src|data-src|data-lazy-src|data-original)=["']([^"']+\.(?:jpg|jpeg|png|webp|gif|svg|avif|bmp))(?:\?[^"']*)?["']`),
	regexp.MustCompile(`(?i)url\(["']?([^"')]+\.(?:jpg|jpeg|png|webp|gif|svg|avif))["']?\)`),
	regexp.MustCompile(`(?i)"(?:url|src|image|photo|thumbnail|uri)":\s*"(https?://[^"]+\.(?:jpg|jpeg|png|webp|gif|svg|avif))"`),
}

var hrefPattern = regexp.MustCompile(`(?i)href=["']([^"'#]+)["']`)

// ExtractAssetURLs 从原始HTML文本中提取资源URL
//
// 三条规则的结果按规则顺序合并, 保留首次出现的顺序, 以去掉查询串后的URL去重。
// 相对URL基于pageURL解析, data: URL和无法解析的值被丢弃
func ExtractAssetURLs(html, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var assets []string

	for _, pattern := range assetPatterns {
		for _, m := range pattern.FindAllStringSubmatch(html, -1) {
			candidate := m[1]
			if candidate == "" || strings.HasPrefix(candidate, "data:") {
				continue
			}
			if !strings.HasPrefix(candidate, "http") {
				ref, err := url.Parse(candidate)
				if err != nil {
					continue
				}
				candidate = base.ResolveReference(ref).String()
			}

			key, _, _ := strings.Cut(candidate, "?")
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			assets = append(assets, candidate)
		}
	}

	return assets
}

// ExtractLinks 提取与pageURL主机名相同的链接
// 只含片段的href被忽略, 结果按出现顺序去重
func ExtractLinks(html, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	host := base.Hostname()

	seen := make(map[string]struct{})
	var links []string

	for _, m := range hrefPattern.FindAllStringSubmatch(html, -1) {
		ref, err := url.Parse(strings.TrimSpace(m[1]))
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Hostname() != host {
			continue
		}

		link := abs.String()
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}

	return links
}
