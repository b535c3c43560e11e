package utils

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志器
var Logger = zerolog.Nop()

// LogConfig 日志配置
type LogConfig struct {
	Level      string // 日志级别: trace, debug, info, warn, error, fatal, panic
	LogDir     string // 日志目录
	MaxSize    int    // 单个日志文件最大大小(MB)
	MaxBackups int    // 保留的旧日志文件数量
	MaxAge     int    // 保留天数
	Compress   bool   // 是否压缩旧日志
	Console    bool   // 是否输出到控制台(stderr)
}

const (
	// MainLogFile 主日志文件名
	MainLogFile = "mediascraper.log"
	// ErrorLogFile 错误日志文件名
	ErrorLogFile = "mediascraper_error.log"
)

// DefaultLogConfig 默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		LogDir:     "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
		Console:    false,
	}
}

// InitLogger 初始化日志系统
//
// 所有级别写入 mediascraper.log, error及以上另写一份到 mediascraper_error.log,
// Console为true时同时输出到stderr (stdout留给会话日志和进度条)
func InitLogger(config LogConfig) error {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	writers := []io.Writer{
		rotatingFile(config, MainLogFile),
		errorsOnly{rotatingFile(config, ErrorLogFile)},
	}
	if config.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Logger()
	log.Logger = Logger

	Logger.Debug().
		Str("level", level.String()).
		Str("log_dir", config.LogDir).
		Msg("日志系统初始化完成")
	return nil
}

// rotatingFile 按LogConfig轮转的日志文件
func rotatingFile(config LogConfig, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, name),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
}

// errorsOnly 只接收error及以上级别的写入器
type errorsOnly struct {
	io.Writer
}

// WriteLevel 实现zerolog.LevelWriter接口
func (w errorsOnly) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.ErrorLevel {
		return len(p), nil
	}
	return w.Write(p)
}

// ForSession 带会话ID和目标URL字段的子日志器
func ForSession(sessionID, target string) zerolog.Logger {
	return Logger.With().
		Str("session", sessionID).
		Str("target", target).
		Logger()
}

// 包级快捷方法, 写入全局 Logger

func Info(msg string)  { Logger.Info().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }

func Infof(format string, args ...any)  { Logger.Info().Msgf(format, args...) }
func Warnf(format string, args ...any)  { Logger.Warn().Msgf(format, args...) }
func Errorf(format string, args ...any) { Logger.Error().Msgf(format, args...) }
func Debugf(format string, args ...any) { Logger.Debug().Msgf(format, args...) }
