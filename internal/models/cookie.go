package models

// Cookie 浏览器Cookie记录
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"` // 为空时使用目标页面主机名
}
