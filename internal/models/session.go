package models

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// SessionStatus 抓取会话状态
//
// 状态转换:
//
//	Idle -> Running -> {Paused <-> Running} -> {Completed | Stopped}
type SessionStatus int32

const (
	StatusIdle      SessionStatus = iota // 空闲
	StatusRunning                        // 运行中
	StatusPaused                         // 已暂停
	StatusCompleted                      // 正常完成
	StatusStopped                        // 被停止(用户停止或达到文件上限)
)

// String 返回状态名
func (s SessionStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	case StatusStopped:
		return "stopped"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Terminal 是否为终止状态
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped
}

// MarshalText 以状态名序列化
func (s SessionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 从状态名解析
func (s *SessionStatus) UnmarshalText(text []byte) error {
	for st := StatusIdle; st <= StatusStopped; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("未知的会话状态: %s", text)
}

// AssetCategory 资源类别位掩码
type AssetCategory uint16

const (
	CategoryImages    AssetCategory = 1 << iota // 图片
	CategoryVideos                              // 视频
	CategoryDocuments                           // 文档
	CategoryAudio                               // 音频
	CategoryHTML                                // 网页
	CategoryStyles                              // CSS/JS
	CategoryFonts                               // 字体

	// CategoryAll 不做扩展名过滤
	CategoryAll AssetCategory = 1 << 15
)

var categoryExtensions = map[AssetCategory][]string{
	CategoryImages:    {"jpg", "jpeg", "png", "webp", "gif", "svg", "avif", "bmp"},
	CategoryVideos:    {"mp4", "mov", "webm", "avi", "mkv"},
	CategoryDocuments: {"pdf", "docx", "doc", "xlsx", "pptx"},
	CategoryAudio:     {"mp3", "wav", "ogg", "flac", "aac"},
	CategoryHTML:      {"html", "htm"},
	CategoryStyles:    {"css", "js"},
	CategoryFonts:     {"woff", "woff2", "ttf", "otf", "eot"},
}

var categoryNames = map[string]AssetCategory{
	"images": CategoryImages,
	"videos": CategoryVideos,
	"docs":   CategoryDocuments,
	"audio":  CategoryAudio,
	"html":   CategoryHTML,
	"cssjs":  CategoryStyles,
	"fonts":  CategoryFonts,
	"all":    CategoryAll,
}

// ParseCategories 将类别名列表解析为位掩码
// 可用名称: images, videos, docs, audio, html, cssjs, fonts, all
func ParseCategories(names []string) (AssetCategory, error) {
	var mask AssetCategory
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		c, ok := categoryNames[name]
		if !ok {
			return 0, fmt.Errorf("未知的资源类别: %s", raw)
		}
		mask |= c
	}
	return mask, nil
}

// Allows 判断扩展名是否在允许的类别中
// 未选择任何类别或选择了all时不过滤
func (c AssetCategory) Allows(ext string) bool {
	if c == 0 || c&CategoryAll != 0 {
		return true
	}
	ext = strings.ToLower(ext)
	for cat, exts := range categoryExtensions {
		if c&cat == 0 {
			continue
		}
		for _, e := range exts {
			if e == ext {
				return true
			}
		}
	}
	return false
}

// String 返回逗号分隔的类别名
func (c AssetCategory) String() string {
	if c == 0 || c&CategoryAll != 0 {
		return "all"
	}
	names := make([]string, 0, len(categoryNames))
	for name, cat := range categoryNames {
		if cat != CategoryAll && c&cat != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// MarshalText 以类别名序列化
func (c AssetCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText 从逗号分隔的类别名解析
func (c *AssetCategory) UnmarshalText(text []byte) error {
	mask, err := ParseCategories(strings.Split(string(text), ","))
	if err != nil {
		return err
	}
	*c = mask
	return nil
}

// SessionConfig 单次抓取会话的配置,会话期间不可变
type SessionConfig struct {
	TargetURL    string        `json:"target_url"`
	OutputDir    string        `json:"output_dir"`
	MaxFiles     int           `json:"max_files"`     // 成功下载数量上限
	DelaySeconds float64       `json:"delay_seconds"` // 下载间隔(秒)
	MaxDepth     int           `json:"max_depth"`     // 链接跟随最大深度
	FollowLinks  bool          `json:"follow_links"`  // 是否跟随同源链接
	AssetTypes   AssetCategory `json:"asset_types"`
	Deduplicate  bool          `json:"deduplicate"`
	UseCookies   bool          `json:"use_cookies"`
	Cookies      string        `json:"-"` // 原始Cookie文本,不参与序列化
	Timeout      time.Duration `json:"timeout"` // 页面请求超时
	Policy       Policy        `json:"policy"`
}

// DefaultSessionConfig 默认会话配置
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		OutputDir:    "output",
		MaxFiles:     100,
		DelaySeconds: 1,
		MaxDepth:     1,
		AssetTypes:   CategoryImages,
		Deduplicate:  true,
		Timeout:      10 * time.Second,
		Policy:       DefaultPolicy(),
	}
}

// Validate 验证配置
func (c *SessionConfig) Validate() error {
	if err := ValidateURL(c.TargetURL); err != nil {
		return err
	}
	if c.OutputDir == "" {
		return fmt.Errorf("输出目录不能为空")
	}
	if c.MaxFiles < 1 {
		return fmt.Errorf("文件数量上限必须大于0")
	}
	if c.DelaySeconds < 0 {
		return fmt.Errorf("下载间隔不能为负数")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("深度不能为负数")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("超时时间不能为负数")
	}
	return c.Policy.Validate()
}

// Delay 下载间隔
func (c SessionConfig) Delay() time.Duration {
	return time.Duration(c.DelaySeconds * float64(time.Second))
}

// TargetHost 目标URL的主机名(不含端口)
func (c SessionConfig) TargetHost() string {
	u, err := url.Parse(c.TargetURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
