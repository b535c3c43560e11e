package utils

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/RecoveryAshes/MediaScraper/internal/models"
)

func TestHeaderValidator_ValidateName(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerName  string
		expectError bool
	}{
		{"合法名称-字母", "User-Agent", false},
		{"合法名称-数字", "X-Request-ID-123", false},
		{"非法名称-空格", "User Agent", true},
		{"非法名称-下划线", "User_Agent", true},
		{"非法名称-空字符串", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateName(tt.headerName)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestHeaderValidator_ValidateHeader(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerName  string
		headerValue string
		expectError bool
	}{
		{"合法头部", "Referer", "https://example.com/", false},
		{"禁止头部-Host", "Host", "example.com", true},
		{"禁止头部-Cookie", "cookie", "a=1", true},
		{"非法值-超长", "X-Long", strings.Repeat("a", MaxHeaderValueLength+1), true},
		{"非法值-控制字符", "X-Bad", "v\x00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateHeader(tt.headerName, tt.headerValue)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestHeaderValidator_CookieSuggestion(t *testing.T) {
	err := NewHeaderValidator().Validate(http.Header{"Cookie": {"a=1"}})

	var vErr *models.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("期望ValidationError, 得到 %v", err)
	}
	if !strings.Contains(vErr.Suggestion, "--cookies") {
		t.Errorf("建议应指向--cookies参数: %s", vErr.Suggestion)
	}
}

func TestHeaderRedactor_Redact(t *testing.T) {
	redactor := NewHeaderRedactor()

	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"普通头部不脱敏", "User-Agent", "Mozilla/5.0", "Mozilla/5.0"},
		{"Bearer令牌", "Authorization", "Bearer abc.def", "Bearer ***"},
		{"长密钥保留首尾", "X-Api-Key", "1234567890abcdef", "1234***cdef"},
		{"短密钥完全隐藏", "X-Token", "abc", "***"},
		{"Cookie仅保留名称", "Cookie", "sessionid=s3cr3t; csrftoken=xyz", "sessionid=***; csrftoken=***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redactor.Redact(http.Header{tt.header: {tt.value}})
			if got[tt.header] != tt.want {
				t.Errorf("Redact() = %q, want %q", got[tt.header], tt.want)
			}
		})
	}
}

func TestHeaderRedactor_RedactToString(t *testing.T) {
	got := NewHeaderRedactor().RedactToString(http.Header{
		"User-Agent":    {"UA"},
		"Authorization": {"Bearer x"},
	})
	want := "Authorization: Bearer ***, User-Agent: UA"
	if got != want {
		t.Errorf("RedactToString() = %q, want %q", got, want)
	}
}

func TestHeaderValidator_ValidateValue(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		value       string
		expectError bool
	}{
		{"包含引号", `value "with" quotes`, false},
		{"空值", "", false},
		{"最大长度", strings.Repeat("a", MaxHeaderValueLength), false},
		{"超过最大长度", strings.Repeat("a", MaxHeaderValueLength+1), true},
		{"中文字符", "测试中文", true},
		{"换行符", "a\r\nInjected: 1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateValue("X-Test", tt.value)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}
