package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/MediaScraper/internal/crawlers"
	"github.com/RecoveryAshes/MediaScraper/internal/models"
	"github.com/RecoveryAshes/MediaScraper/internal/utils"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Policy  models.Policy `mapstructure:"policy"`
	Browser BrowserConfig `mapstructure:"browser"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
}

// ScrapeConfig 抓取参数默认值
type ScrapeConfig struct {
	MaxFiles    int      `mapstructure:"max_files"`
	Delay       float64  `mapstructure:"delay"` // 秒
	Depth       int      `mapstructure:"depth"`
	FollowLinks bool     `mapstructure:"follow_links"`
	Types       []string `mapstructure:"types"`
	Deduplicate bool     `mapstructure:"deduplicate"`
	Timeout     int      `mapstructure:"timeout"` // 页面请求超时(秒)
	BatchDelay  int      `mapstructure:"batch_delay"`
}

// BrowserConfig 无头浏览器配置
type BrowserConfig struct {
	Headless         bool    `mapstructure:"headless"`
	Bin              string  `mapstructure:"bin"`
	NoSandbox        bool    `mapstructure:"no_sandbox"`
	IgnoreCertErrors bool    `mapstructure:"ignore_cert_errors"`
	MinFreeMemoryMB  int     `mapstructure:"min_free_memory_mb"`
	MaxCPUPercent    float64 `mapstructure:"max_cpu_percent"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir          string `mapstructure:"base_dir"`
	DomainSeparation bool   `mapstructure:"domain_separation"`
	SaveReport       bool   `mapstructure:"save_report"`
}

// LoadConfig 加载配置文件
// configPath为空时依次搜索 ./configs, ., ~/.mediascraper 下的 config.yaml,
// 找不到配置文件时使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".mediascraper"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("配置项 policy 无效: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 抓取参数默认值
	v.SetDefault("scrape.max_files", 100)
	v.SetDefault("scrape.delay", 1.0)
	v.SetDefault("scrape.depth", 1)
	v.SetDefault("scrape.follow_links", false)
	v.SetDefault("scrape.types", []string{"images"})
	v.SetDefault("scrape.deduplicate", true)
	v.SetDefault("scrape.timeout", 10)
	v.SetDefault("scrape.batch_delay", 0)

	// 策略默认值
	policy := models.DefaultPolicy()
	v.SetDefault("policy.min_asset_bytes", policy.MinAssetBytes)
	v.SetDefault("policy.deny_pattern", policy.DenyPattern)
	v.SetDefault("policy.max_links_per_page", policy.MaxLinksPerPage)
	v.SetDefault("policy.traversal", string(policy.Traversal))
	v.SetDefault("policy.max_redirects", policy.MaxRedirects)
	v.SetDefault("policy.download_timeout", policy.DownloadTimeout)
	v.SetDefault("policy.navigation_timeout", policy.NavigationTimeout)
	v.SetDefault("policy.scroll_settle", policy.ScrollSettle)
	v.SetDefault("policy.max_scroll_passes", policy.MaxScrollPasses)
	v.SetDefault("policy.pause_poll", policy.PausePoll)
	v.SetDefault("policy.browser_delay_factor", policy.BrowserDelayFactor)

	// 浏览器默认值
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.ignore_cert_errors", false)
	v.SetDefault("browser.min_free_memory_mb", 300)
	v.SetDefault("browser.max_cpu_percent", 0)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "output")
	v.SetDefault("output.domain_separation", true)
	v.SetDefault("output.save_report", true)
}

// SessionConfig 根据配置文件生成目标URL的会话配置
// 命令行参数在返回值上覆盖
func (c *Config) SessionConfig(targetURL string) (models.SessionConfig, error) {
	types, err := models.ParseCategories(c.Scrape.Types)
	if err != nil {
		return models.SessionConfig{}, err
	}

	cfg := models.SessionConfig{
		TargetURL:    targetURL,
		OutputDir:    c.Output.BaseDir,
		MaxFiles:     c.Scrape.MaxFiles,
		DelaySeconds: c.Scrape.Delay,
		MaxDepth:     c.Scrape.Depth,
		FollowLinks:  c.Scrape.FollowLinks,
		AssetTypes:   types,
		Deduplicate:  c.Scrape.Deduplicate,
		Timeout:      time.Duration(c.Scrape.Timeout) * time.Second,
		Policy:       c.Policy,
	}
	if c.Output.DomainSeparation {
		if host := cfg.TargetHost(); host != "" {
			cfg.OutputDir = filepath.Join(c.Output.BaseDir, host)
		}
	}
	return cfg, nil
}

// BrowserOptions 无头浏览器启动选项
func (c *Config) BrowserOptions() crawlers.BrowserOptions {
	return crawlers.BrowserOptions{
		Headless:         c.Browser.Headless,
		Bin:              c.Browser.Bin,
		NoSandbox:        c.Browser.NoSandbox,
		IgnoreCertErrors: c.Browser.IgnoreCertErrors,
	}
}

// ResourceGuard 浏览器启动前的资源检查器
func (c *Config) ResourceGuard() *crawlers.ResourceGuard {
	return crawlers.NewResourceGuard(uint64(c.Browser.MinFreeMemoryMB)*1024*1024, c.Browser.MaxCPUPercent)
}

// LogConfig 日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}
