package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidateURL 目标URL必须是带主机名的 http/https 地址
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) != raw || raw == "" {
		return fmt.Errorf("无效的URL: %q", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议: %s", raw)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("URL缺少主机名: %s", raw)
	}
	return nil
}

// newSessionID 会话ID (UUIDv4)
func newSessionID() string {
	return uuid.NewString()
}
