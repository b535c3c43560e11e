package core

import (
	"net/http"

	"github.com/RecoveryAshes/MediaScraper/internal/config"
	"github.com/RecoveryAshes/MediaScraper/internal/models"
	"github.com/RecoveryAshes/MediaScraper/internal/utils"
)

// HeaderManager 管理抓取请求头
//
// 三层来源按优先级合并: 内置默认 < headers.yaml < 命令行 -H。
// Cookie 不通过这里配置, 由会话的Cookie文本单独提供
type HeaderManager struct {
	defaults http.Header
	config   http.Header
	cli      http.Header

	validator    *utils.HeaderValidator
	redactor     *utils.HeaderRedactor
	configLoader *config.HeaderConfigLoader

	// resolved 首次GetHeaders成功后缓存的合并结果
	resolved http.Header
}

// NewHeaderManager 创建头部管理器
// configFile为空时使用 configs/headers.yaml; cliHeaders 为 "Name: Value" 格式
func NewHeaderManager(configFile string, cliHeaders []string) (*HeaderManager, error) {
	cli, err := models.CliHeaders(cliHeaders).Parse()
	if err != nil {
		return nil, err
	}

	return &HeaderManager{
		defaults:     getDefaultHeaders(),
		config:       make(http.Header),
		cli:          cli,
		validator:    utils.NewHeaderValidator(),
		redactor:     utils.NewHeaderRedactor(),
		configLoader: config.NewHeaderConfigLoader(configFile),
	}, nil
}

// getDefaultHeaders 返回内置默认头部
// 模拟桌面Chrome, 部分图床会拒绝非浏览器的请求
func getDefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{utils.DefaultUserAgent},
		"Accept":          []string{"text/html,application/xhtml+xml,image/avif,image/webp,image/*,*/*;q=0.8"},
		"Accept-Language": []string{"en-US,en;q=0.9"},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

// GetHeaders 返回 默认 < 配置文件 < 命令行 合并后的头部
// 加载配置文件、逐层验证后返回合并结果的副本
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if hm.resolved != nil {
		return hm.resolved.Clone(), nil
	}

	headerConfig, err := hm.configLoader.LoadConfig()
	if err != nil {
		utils.Errorf("加载HTTP头部配置失败: %v", err)
		return nil, err
	}
	for name, value := range headerConfig.Headers {
		hm.config.Set(name, value)
	}

	layers := []struct {
		name    string
		headers http.Header
	}{
		{"默认", hm.defaults},
		{"配置文件", hm.config},
		{"命令行", hm.cli},
	}
	for _, layer := range layers {
		if err := hm.validator.Validate(layer.headers); err != nil {
			utils.Errorf("%s头部验证失败: %v", layer.name, err)
			return nil, err
		}
	}

	hm.resolved = hm.merge()
	utils.Debugf("请求头: %s", hm.redactor.RedactToString(hm.resolved))
	return hm.resolved.Clone(), nil
}

// merge 按优先级合并 (default < config < cli)
func (hm *HeaderManager) merge() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = values
		}
	}
	return result
}

// UserAgent 合并后的User-Agent, 无头浏览器使用同一个值
func (hm *HeaderManager) UserAgent() string {
	if ua := hm.merge().Get("User-Agent"); ua != "" {
		return ua
	}
	return utils.DefaultUserAgent
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志)
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.merge())
}
