// Package config 读取 headers.yaml 中的自定义请求头
//
// 文件不存在时从内置模板生成, 模板中的示例全部注释掉, 生成后的配置等价于空配置。
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/RecoveryAshes/MediaScraper/internal/models"
	"github.com/RecoveryAshes/MediaScraper/internal/utils"
	"github.com/spf13/viper"
)

// DefaultConfigFile 默认请求头配置文件
const DefaultConfigFile = "configs/headers.yaml"

// MaxConfigFileSize 请求头配置文件大小上限 (1MB)
const MaxConfigFileSize = 1 << 20

//go:embed headers_template.yaml
var headerTemplate []byte

// HeaderConfigLoader 请求头配置文件加载器
type HeaderConfigLoader struct {
	path string
}

// NewHeaderConfigLoader 创建加载器, path为空时使用 DefaultConfigFile
func NewHeaderConfigLoader(path string) *HeaderConfigLoader {
	if path == "" {
		path = DefaultConfigFile
	}
	return &HeaderConfigLoader{path: path}
}

// Path 配置文件路径
func (l *HeaderConfigLoader) Path() string {
	return l.path
}

// LoadConfig 读取并解析配置文件
//
// 文件不存在时先写入模板; 超过 MaxConfigFileSize 或YAML无效时返回 *models.ConfigError;
// 文件被其他进程锁定时返回空配置
func (l *HeaderConfigLoader) LoadConfig() (*models.HeaderConfig, error) {
	if err := l.statOrCreate(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(l.path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			utils.Warnf("请求头配置文件被锁定 [%s], 只使用默认头部", l.path)
			return &models.HeaderConfig{Headers: map[string]string{}}, nil
		}
		return nil, &models.ConfigError{FilePath: l.path, Cause: err}
	}

	cfg := &models.HeaderConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &models.ConfigError{FilePath: l.path, Cause: fmt.Errorf("配置绑定失败: %w", err)}
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return cfg, nil
}

// statOrCreate 检查文件大小, 文件不存在时从模板生成
func (l *HeaderConfigLoader) statOrCreate() error {
	info, err := os.Stat(l.path)
	switch {
	case os.IsNotExist(err):
		return l.writeTemplate()
	case err != nil:
		return fmt.Errorf("无法读取配置文件信息 [%s]: %w", l.path, err)
	case info.Size() > MaxConfigFileSize:
		return &models.ConfigError{
			FilePath: l.path,
			Cause:    fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)", info.Size(), MaxConfigFileSize),
		}
	}
	return nil
}

func (l *HeaderConfigLoader) writeTemplate() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("无法创建配置目录: %w", err)
	}
	if err := os.WriteFile(l.path, headerTemplate, 0644); err != nil {
		return fmt.Errorf("无法生成配置文件 [%s]: %w", l.path, err)
	}
	utils.Infof("已生成请求头配置模板: %s", l.path)
	return nil
}
