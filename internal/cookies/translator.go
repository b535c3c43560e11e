// Package cookies 将用户提供的Cookie文本转换为Cookie记录和请求头
//
// 支持两种输入格式:
//   - 浏览器扩展导出的JSON数组: [{"name":"a","value":"1","domain":".x.com"}]
//   - 原始请求头格式: a=1; b=2
//
// 解析从不失败,无法识别的内容被丢弃。
package cookies

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/RecoveryAshes/MediaScraper/internal/models"
)

// jsonCookie 导出格式中的一项,各字段可能是任意JSON值
type jsonCookie struct {
	Name   interface{} `json:"name"`
	Value  interface{} `json:"value"`
	Domain interface{} `json:"domain"`
}

// Parse 解析Cookie文本
// 以 '[' 开头时按JSON数组解析,解析失败则回退到分号分隔格式
func Parse(raw string) []models.Cookie {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if strings.HasPrefix(trimmed, "[") {
		if cookies, ok := parseJSON(trimmed); ok {
			return cookies
		}
	}

	return parseDelimited(trimmed)
}

// parseJSON 解析JSON数组格式
func parseJSON(text string) ([]models.Cookie, bool) {
	var entries []jsonCookie
	if err := json.Unmarshal([]byte(text), &entries); err != nil {
		return nil, false
	}

	cookies := make([]models.Cookie, 0, len(entries))
	for _, e := range entries {
		// 非字符串的domain按空处理, 即使用目标主机
		domain, _ := e.Domain.(string)
		cookies = append(cookies, models.Cookie{
			Name:   scalarText(e.Name),
			Value:  scalarText(e.Value),
			Domain: domain,
		})
	}
	return cookies, true
}

// parseDelimited 解析 "name=value; name2=value2" 格式
// 名称或值为空的片段被丢弃,重复名称保留
func parseDelimited(text string) []models.Cookie {
	var cookies []models.Cookie
	for _, part := range strings.Split(text, ";") {
		name, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		cookies = append(cookies, models.Cookie{Name: name, Value: value})
	}
	return cookies
}

// scalarText 将JSON标量转换为文本
func scalarText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// ToHeader 生成Cookie请求头的值
func ToHeader(cookies []models.Cookie) string {
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}
