package utils

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/RecoveryAshes/MediaScraper/internal/models"
)

// MaxHeaderValueLength HTTP头部值最大长度 (8KB)
const MaxHeaderValueLength = 8192

// ForbiddenHeaders 不允许通过配置文件或 -H 设置的头部
// Cookie 由会话的Cookie文本生成, 其余由HTTP客户端管理
var ForbiddenHeaders = []string{
	"Host",
	"Content-Length",
	"Transfer-Encoding",
	"Connection",
	"Cookie",
}

var (
	headerNamePattern  = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	headerValuePattern = regexp.MustCompile(`^[\x20-\x7E\t]*$`)
)

// headerRule 单条头部检查规则, 通过时返回nil
type headerRule func(hv *HeaderValidator, name, value string) *models.ValidationError

// HeaderValidator 请求头检查器
//
// 规则按顺序执行: 禁止头部 → 名称字符集 → 值长度 → 值字符集,
// 返回第一条不通过的规则
type HeaderValidator struct {
	maxValueLength int
	forbidden      map[string]struct{}
	rules          []headerRule
}

// NewHeaderValidator 创建检查器
func NewHeaderValidator() *HeaderValidator {
	forbidden := make(map[string]struct{}, len(ForbiddenHeaders))
	for _, h := range ForbiddenHeaders {
		forbidden[strings.ToLower(h)] = struct{}{}
	}
	return &HeaderValidator{
		maxValueLength: MaxHeaderValueLength,
		forbidden:      forbidden,
		rules:          []headerRule{ruleForbidden, ruleName, ruleValueLength, ruleValueCharset},
	}
}

func ruleForbidden(hv *HeaderValidator, name, _ string) *models.ValidationError {
	if !hv.IsForbidden(name) {
		return nil
	}
	suggestion := fmt.Sprintf("移除 '%s' 头部配置", name)
	if strings.EqualFold(name, "Cookie") {
		suggestion = "通过 --cookies 或 --cookie-file 提供Cookie"
	}
	return &models.ValidationError{
		Field:      "name",
		HeaderName: name,
		Reason:     "此头部由抓取器自动管理,不允许自定义",
		Suggestion: suggestion,
	}
}

func ruleName(_ *HeaderValidator, name, _ string) *models.ValidationError {
	switch {
	case name == "":
		return &models.ValidationError{Field: "name", Reason: "头部名称不能为空"}
	case !headerNamePattern.MatchString(name):
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "头部名称包含非法字符 (仅允许字母、数字和连字符)",
			Suggestion: "例如 'Referer', 'X-Requested-With'",
		}
	}
	return nil
}

func ruleValueLength(hv *HeaderValidator, name, value string) *models.ValidationError {
	if len(value) <= hv.maxValueLength {
		return nil
	}
	return &models.ValidationError{
		Field:      "value",
		HeaderName: name,
		Reason:     fmt.Sprintf("头部值过长: %d 字节 (最大 %d)", len(value), hv.maxValueLength),
	}
}

func ruleValueCharset(_ *HeaderValidator, name, value string) *models.ValidationError {
	if headerValuePattern.MatchString(value) {
		return nil
	}
	return &models.ValidationError{
		Field:      "value",
		HeaderName: name,
		Reason:     "头部值包含非法字符 (仅允许可打印ASCII字符)",
		Suggestion: "移除换行、控制字符和非ASCII字符",
	}
}

// IsForbidden 头部是否禁止自定义 (不区分大小写)
func (hv *HeaderValidator) IsForbidden(name string) bool {
	_, ok := hv.forbidden[strings.ToLower(name)]
	return ok
}

// ValidateName 只检查头部名称
func (hv *HeaderValidator) ValidateName(name string) error {
	if vErr := ruleName(hv, name, ""); vErr != nil {
		return vErr
	}
	return nil
}

// ValidateValue 只检查头部值
func (hv *HeaderValidator) ValidateValue(name, value string) error {
	for _, rule := range []headerRule{ruleValueLength, ruleValueCharset} {
		if vErr := rule(hv, name, value); vErr != nil {
			return vErr
		}
	}
	return nil
}

// ValidateHeader 按全部规则检查一个头部
func (hv *HeaderValidator) ValidateHeader(name, value string) error {
	for _, rule := range hv.rules {
		if vErr := rule(hv, name, value); vErr != nil {
			return vErr
		}
	}
	return nil
}

// Validate 检查全部头部, 按名称排序后返回第一个错误
func (hv *HeaderValidator) Validate(headers http.Header) error {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, value := range headers[name] {
			if err := hv.ValidateHeader(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}
