package utils

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// MaxFilenameLength 文件名最大长度
const MaxFilenameLength = 200

// DefaultExtension 无法识别扩展名时使用
const DefaultExtension = "jpg"

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// fileTypeLabels 扩展名到显示类型的映射
var fileTypeLabels = map[string]string{
	"jpg": "JPEG", "jpeg": "JPEG", "png": "PNG", "webp": "WEBP", "gif": "GIF",
	"svg": "SVG", "avif": "AVIF", "bmp": "BMP", "tiff": "TIFF",
	"mp4": "MP4", "mov": "MOV", "webm": "WEBM", "avi": "AVI",
	"pdf": "PDF", "docx": "DOCX", "xlsx": "XLSX",
	"mp3": "MP3", "wav": "WAV", "ogg": "OGG",
	"html": "HTML", "css": "CSS", "js": "JS",
	"woff": "WOFF", "woff2": "WOFF2", "ttf": "TTF", "otf": "OTF",
}

// stripQueryAndFragment 去掉URL中 '?' 之后的部分和 '#' 之后的部分
func stripQueryAndFragment(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		rawURL = rawURL[:i]
	}
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		rawURL = rawURL[:i]
	}
	return rawURL
}

// FileExtension 从URL路径提取小写扩展名(不含点),无扩展名时返回 "jpg"
func FileExtension(rawURL string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(stripQueryAndFragment(rawURL)), "."))
	if ext == "" {
		return DefaultExtension
	}
	return ext
}

// GuessFileType 扩展名对应的显示类型
func GuessFileType(ext string) string {
	if label, ok := fileTypeLabels[ext]; ok {
		return label
	}
	if ext == "" {
		return "FILE"
	}
	return strings.ToUpper(ext)
}

// FormatSize 格式化字节数: B / KB / MB, 保留一位小数
func FormatSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}

// SanitizeFilename 替换文件系统不允许的字符,截断到200字符,空结果返回 "file"
func SanitizeFilename(name string) string {
	cleaned := unsafeFilenameChars.ReplaceAllString(name, "_")
	if runes := []rune(cleaned); len(runes) > MaxFilenameLength {
		cleaned = string(runes[:MaxFilenameLength])
	}
	if cleaned == "" {
		return "file"
	}
	return cleaned
}

// DeriveFilename 根据资源URL生成本地文件名
// 取URL路径(去掉查询串)的最后一段,为空时使用 file_<index>.<ext>,
// 不含点时追加扩展名
func DeriveFilename(rawURL, ext string, index int) string {
	withoutQuery := rawURL
	if i := strings.IndexByte(withoutQuery, '?'); i >= 0 {
		withoutQuery = withoutQuery[:i]
	}

	base := ""
	if !strings.HasSuffix(withoutQuery, "/") {
		base = path.Base(withoutQuery)
		if base == "." || base == "/" {
			base = ""
		}
	}
	if base == "" {
		base = fmt.Sprintf("file_%d.%s", index, ext)
	}
	if !strings.Contains(base, ".") {
		base = base + "." + ext
	}
	return SanitizeFilename(base)
}
