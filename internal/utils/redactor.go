package utils

import (
	"net/http"
	"sort"
	"strings"
)

// SensitiveKeywords 头部名称包含这些关键字时值会被脱敏
var SensitiveKeywords = []string{
	"authorization",
	"token",
	"key",
	"secret",
	"password",
	"credential",
	"cookie",
	"session",
}

// HeaderRedactor 日志输出前的头部脱敏
type HeaderRedactor struct {
	keywords []string
}

// NewHeaderRedactor 创建脱敏器
func NewHeaderRedactor() *HeaderRedactor {
	return &HeaderRedactor{keywords: SensitiveKeywords}
}

// IsSensitiveHeader 头部名称是否包含敏感关键字
func (hr *HeaderRedactor) IsSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range hr.keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// RedactHeaderValue 脱敏单个头部值, 非敏感头部原样返回
//
//	Bearer xxx      -> Bearer ***
//	a=1; b=2 (Cookie) -> a=***; b=***
//	长度 > 8        -> 前4位***后4位
//	其他            -> ***
func (hr *HeaderRedactor) RedactHeaderValue(name, value string) string {
	if !hr.IsSensitiveHeader(name) {
		return value
	}

	switch {
	case strings.HasPrefix(value, "Bearer "):
		return "Bearer ***"
	case strings.Contains(strings.ToLower(name), "cookie"):
		return redactCookiePairs(value)
	case len(value) > 8:
		return value[:4] + "***" + value[len(value)-4:]
	default:
		return "***"
	}
}

// redactCookiePairs 保留Cookie名称, 隐藏值
func redactCookiePairs(value string) string {
	pairs := strings.Split(value, ";")
	for i, pair := range pairs {
		if name, _, ok := strings.Cut(pair, "="); ok {
			pairs[i] = strings.TrimSpace(name) + "=***"
		} else {
			pairs[i] = "***"
		}
	}
	return strings.Join(pairs, "; ")
}

// Redact 返回脱敏后的头部, 每个头部只取第一个值
func (hr *HeaderRedactor) Redact(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) > 0 {
			result[name] = hr.RedactHeaderValue(name, values[0])
		}
	}
	return result
}

// RedactToString 脱敏后按名称排序, 格式 "Name: value, Name2: value2"
func (hr *HeaderRedactor) RedactToString(headers http.Header) string {
	redacted := hr.Redact(headers)
	names := make([]string, 0, len(redacted))
	for name := range redacted {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + redacted[name]
	}
	return strings.Join(parts, ", ")
}
