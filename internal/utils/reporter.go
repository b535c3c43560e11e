package utils

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/RecoveryAshes/MediaScraper/internal/models"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器,报告写入 <outputDir>/reports
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// SaveReport 保存会话报告,返回报告文件路径
func (r *Reporter) SaveReport(report *models.SessionReport) (string, error) {
	reportsDir := filepath.Join(r.outputDir, "reports")
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	data, err := report.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化JSON失败: %w", err)
	}

	path := filepath.Join(reportsDir, "session_"+report.SessionID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return path, nil
}

// ExportResults 导出结果列表,按扩展名选择格式(.json 或 .csv)
func ExportResults(path string, rows []models.ResultRow) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建导出目录失败: %w", err)
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if rows == nil {
			rows = []models.ResultRow{}
		}
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("序列化JSON失败: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("写入导出文件失败: %w", err)
		}
	case ".csv":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("创建导出文件失败: %w", err)
		}
		defer f.Close()
		if err := writeCSV(f, rows); err != nil {
			return err
		}
	default:
		return fmt.Errorf("不支持的导出格式: %s (仅支持 .json / .csv)", path)
	}

	Infof("已导出 %d 条结果: %s", len(rows), path)
	return nil
}

// writeCSV 写入CSV,列顺序: Filename, Type, Size, Date, URL
func writeCSV(w io.Writer, rows []models.ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Filename", "Type", "Size", "Date", "URL"}); err != nil {
		return fmt.Errorf("写入CSV失败: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.Filename, row.Type, row.Size, row.Date, row.URL}); err != nil {
			return fmt.Errorf("写入CSV失败: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("写入CSV失败: %w", err)
	}
	return nil
}

// NewProgressBar 创建百分比进度条
func NewProgressBar(out io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// ConsoleSink 控制台事件输出
// 打印会话日志行,驱动进度条,并同步写入诊断日志
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewConsoleSink 创建控制台输出, showBar 为false时不显示进度条
func NewConsoleSink(out io.Writer, showBar bool) *ConsoleSink {
	s := &ConsoleSink{out: out}
	if showBar {
		s.bar = NewProgressBar(out, "抓取中")
	}
	return s
}

// Emit 实现 models.EventSink 接口
func (s *ConsoleSink) Emit(e models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev := e.(type) {
	case models.LogEvent:
		Logger.WithLevel(diagnosticLevel(ev.Level)).
			Str("event", string(ev.Level)).
			Msg(ev.Message)
		if s.bar != nil {
			_ = s.bar.Clear()
		}
		fmt.Fprintf(s.out, "%s [%-5s] %s\n", ev.Timestamp.Format("15:04:05"), ev.Level, ev.Message)

	case models.ResultEvent:
		Logger.Debug().
			Str("status", string(ev.Row.Status)).
			Str("file", ev.Row.Filename).
			Str("url", ev.Row.URL).
			Msg("结果")

	case models.ProgressEvent:
		if s.bar != nil {
			s.bar.Describe(fmt.Sprintf("发现 %d 成功 %d 失败 %d", ev.Found, ev.Downloaded, ev.Errors))
			_ = s.bar.Set(int(ev.Percent))
		}

	case models.CompleteEvent:
		if s.bar != nil {
			_ = s.bar.Finish()
			fmt.Fprintln(s.out)
		}
		Logger.Info().
			Int("downloaded", ev.Downloaded).
			Int("errors", ev.Errors).
			Int64("bytes", ev.TotalBytes).
			Str("status", ev.Status.String()).
			Msg("会话结束")
	}
}

// diagnosticLevel 会话日志级别到诊断日志级别的映射
func diagnosticLevel(level models.LogLevel) zerolog.Level {
	switch level {
	case models.LevelError:
		return zerolog.ErrorLevel
	case models.LevelWarn:
		return zerolog.WarnLevel
	case models.LevelSkip, models.LevelScan:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
