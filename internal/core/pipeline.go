package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/RecoveryAshes/MediaScraper/internal/crawlers"
	"github.com/RecoveryAshes/MediaScraper/internal/models"
	"github.com/RecoveryAshes/MediaScraper/internal/utils"
	"golang.org/x/time/rate"
)

var (
	// ErrTooSmall 文件小于最小大小, 视为跟踪像素
	ErrTooSmall = errors.New("文件过小")
	// ErrDuplicate 与已下载文件的签名相同
	ErrDuplicate = errors.New("重复文件")
)

// pipeline 下载流水线
// 职责: 按顺序过滤、下载、校验候选资源, 维护计数器和去重签名
//
// 只在引擎goroutine上运行, 计数器不加锁
type pipeline struct {
	cfg    models.SessionConfig
	handle *Handle
	sink   models.EventSink
	logf   models.LogFunc
	record func(models.ResultRow)

	deny    *regexp.Regexp
	limiter *rate.Limiter

	counters   models.RunCounters
	signatures map[string]struct{}
	// taken 本会话已保存的文件名, 同名资源不覆盖已接受的文件
	taken map[string]struct{}
}

func newPipeline(cfg models.SessionConfig, handle *Handle, sink models.EventSink, logf models.LogFunc, record func(models.ResultRow)) (*pipeline, error) {
	deny, err := cfg.Policy.DenyRegexp()
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		cfg:        cfg,
		handle:     handle,
		sink:       sink,
		logf:       logf,
		record:     record,
		deny:       deny,
		signatures: make(map[string]struct{}),
		taken:      make(map[string]struct{}),
	}
	if delay := cfg.Delay(); delay > 0 {
		p.limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return p, nil
}

// setPace 按传输方式调整下载间隔
func (p *pipeline) setPace(factor float64) {
	if p.limiter == nil {
		return
	}
	if factor <= 0 {
		factor = 1
	}
	interval := time.Duration(float64(p.cfg.Delay()) * factor)
	p.limiter.SetLimit(rate.Every(interval))
}

// process 处理一个页面的全部候选资源
// 会话停止(包括达到文件上限)时提前返回
func (p *pipeline) process(ctx context.Context, scan *crawlers.PageScan) {
	p.setPace(scan.DelayFactor)

	for _, rawURL := range scan.Assets {
		if !p.handle.Active() || ctx.Err() != nil {
			return
		}
		if !p.handle.WaitWhilePaused(ctx) {
			return
		}
		p.handleAsset(ctx, scan.Transport, rawURL)
	}
}

// handleAsset 处理单个候选资源
func (p *pipeline) handleAsset(ctx context.Context, transport crawlers.Transport, rawURL string) {
	ext := utils.FileExtension(rawURL)
	if !p.cfg.AssetTypes.Allows(ext) {
		return
	}
	if p.deny != nil && p.deny.MatchString(rawURL) {
		return
	}

	// 间隔等待期间收到的暂停和停止在传输开始前生效
	if err := p.wait(ctx); err != nil {
		return
	}
	if !p.handle.WaitWhilePaused(ctx) {
		return
	}

	p.counters.Found++
	p.counters.FileIndex++
	asset := models.DiscoveredAsset{
		URL:               rawURL,
		Extension:         ext,
		SuggestedFilename: utils.DeriveFilename(rawURL, ext, p.counters.FileIndex),
	}
	fileType := utils.GuessFileType(ext)

	p.emitRow(models.ResultRow{
		Filename: asset.SuggestedFilename,
		Type:     fileType,
		Size:     models.Placeholder,
		Date:     models.Placeholder,
		URL:      rawURL,
		Status:   models.ResultDownloading,
	})
	p.emitProgress()

	filename := p.freeName(asset.SuggestedFilename)
	outcome, err := transport.Download(ctx, rawURL, p.cfg.OutputDir, filename)
	if err != nil {
		p.counters.Errors++
		p.counters.Found--
		p.emitRow(models.ResultRow{
			Filename: asset.SuggestedFilename,
			Type:     fileType,
			Size:     models.Placeholder,
			Date:     models.Placeholder,
			URL:      rawURL,
			Status:   models.ResultError,
		})
		p.logf(models.LevelError, "Failed: %s — %v", asset.SuggestedFilename, err)
		return
	}

	if err := p.admit(asset, outcome); err != nil {
		removeFile(outcome.FilePath)
		p.counters.Found--
		switch {
		case errors.Is(err, ErrTooSmall):
			p.logf(models.LevelSkip, "Too small (tracking pixel): %s", asset.SuggestedFilename)
		case errors.Is(err, ErrDuplicate):
			p.logf(models.LevelSkip, "Duplicate: %s", asset.SuggestedFilename)
		}
		return
	}

	p.taken[filename] = struct{}{}
	p.counters.Downloaded++
	p.counters.TotalBytes += outcome.SizeBytes

	row := models.ResultRow{
		Filename: filename,
		Type:     fileType,
		Size:     utils.FormatSize(outcome.SizeBytes),
		Date:     outcome.CompletedOn,
		URL:      rawURL,
		Status:   models.ResultOK,
	}
	p.record(row)
	p.emitRow(row)
	p.logf(models.LevelOK, "Downloaded: %s (%s)", filename, row.Size)
	p.emitProgress()

	if p.counters.Downloaded >= p.cfg.MaxFiles {
		p.logf(models.LevelInfo, "Max files limit (%d) reached", p.cfg.MaxFiles)
		p.handle.Stop()
	}
}

// admit 检查最小大小和去重签名 "<size>_<filename>"
func (p *pipeline) admit(asset models.DiscoveredAsset, outcome *models.DownloadOutcome) error {
	if outcome.SizeBytes < p.cfg.Policy.MinAssetBytes {
		return fmt.Errorf("%w: %d 字节", ErrTooSmall, outcome.SizeBytes)
	}
	if !p.cfg.Deduplicate {
		return nil
	}

	signature := fmt.Sprintf("%d_%s", outcome.SizeBytes, asset.SuggestedFilename)
	if _, ok := p.signatures[signature]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, signature)
	}
	p.signatures[signature] = struct{}{}
	return nil
}

// wait 等待下载间隔
func (p *pipeline) wait(ctx context.Context) error {
	if p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

// freeName 返回本会话未使用的文件名, 冲突时追加 _2, _3 ...
func (p *pipeline) freeName(name string) string {
	if _, ok := p.taken[name]; !ok {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, ok := p.taken[candidate]; !ok {
			return candidate
		}
	}
}

func (p *pipeline) emitRow(row models.ResultRow) {
	p.sink.Emit(models.ResultEvent{Row: row})
}

func (p *pipeline) emitProgress() {
	p.sink.Emit(models.ProgressEvent{
		Percent:     p.counters.Percent(p.cfg.MaxFiles),
		RunCounters: p.counters,
	})
}

// removeFile 删除被拒绝的文件, 失败只记录日志
func removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		utils.Warnf("删除文件失败 [%s]: %v", path, err)
	}
}
