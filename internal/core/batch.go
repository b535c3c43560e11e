package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/MediaScraper/internal/models"
	"github.com/RecoveryAshes/MediaScraper/internal/utils"
)

// SessionBuilder 为单个目标URL生成会话配置
type SessionBuilder func(targetURL string) (models.SessionConfig, error)

// BatchResult 单个URL的会话结果
type BatchResult struct {
	URL    string
	Report *models.SessionReport
	Error  error
}

// Success 会话是否正常结束
// 用户停止或达到文件上限也算成功, 只有无法启动或引擎错误算失败
func (r BatchResult) Success() bool {
	return r.Error == nil && r.Report != nil && r.Report.ErrorMessage == ""
}

// BatchRunner 批量抓取器
// 按顺序为每个URL运行一个会话, 同一时间只有一个会话
type BatchRunner struct {
	controller    *Controller
	build         SessionBuilder
	batchDelay    time.Duration
	continueOnErr bool

	// OnReport 每个会话结束后调用(如保存报告), 可为nil
	OnReport func(*models.SessionReport)

	stopped atomic.Bool
}

// NewBatchRunner 创建批量抓取器
func NewBatchRunner(controller *Controller, build SessionBuilder, batchDelay time.Duration, continueOnErr bool) *BatchRunner {
	return &BatchRunner{
		controller:    controller,
		build:         build,
		batchDelay:    batchDelay,
		continueOnErr: continueOnErr,
	}
}

// Stop 停止当前会话并跳过剩余URL
func (br *BatchRunner) Stop() {
	br.stopped.Store(true)
	br.controller.Stop()
}

// Run 批量抓取URL列表
func (br *BatchRunner) Run(ctx context.Context, urls []string) (models.BatchSummary, []BatchResult) {
	utils.Infof("开始批量抓取: %d个URL", len(urls))

	summary := models.BatchSummary{TotalURLs: len(urls)}
	results := make([]BatchResult, 0, len(urls))
	startTime := time.Now()

	for i, targetURL := range urls {
		if br.stopped.Load() || ctx.Err() != nil {
			utils.Warnf("批量抓取已停止, 跳过剩余 %d 个URL", len(urls)-i)
			break
		}

		utils.Infof("==================== [%d/%d] ====================", i+1, len(urls))
		utils.Infof("目标URL: %s", targetURL)

		result := br.runOne(ctx, targetURL)
		results = append(results, result)

		if result.Success() {
			summary.SuccessfulURLs++
			summary.TotalFiles += result.Report.Counters.Downloaded
			summary.TotalBytes += result.Report.Counters.TotalBytes
		} else {
			summary.FailedURLs++
			utils.Errorf("抓取失败 [%s]: %v", targetURL, result.failure())

			if !br.continueOnErr {
				utils.Warn("批量抓取中止 (--continue-on-error=false)")
				break
			}
		}

		if i < len(urls)-1 && br.batchDelay > 0 && !br.stopped.Load() {
			utils.Debugf("等待 %.0f 秒后处理下一个URL...", br.batchDelay.Seconds())
			select {
			case <-ctx.Done():
			case <-time.After(br.batchDelay):
			}
		}
	}

	summary.Duration = time.Since(startTime)
	printSummary(summary, results)
	return summary, results
}

// runOne 运行单个URL的会话
func (br *BatchRunner) runOne(ctx context.Context, targetURL string) BatchResult {
	result := BatchResult{URL: targetURL}

	cfg, err := br.build(targetURL)
	if err != nil {
		result.Error = fmt.Errorf("生成会话配置失败: %w", err)
		return result
	}

	report, err := br.controller.Run(ctx, cfg)
	if err != nil {
		result.Error = err
		return result
	}
	result.Report = report

	if br.OnReport != nil {
		br.OnReport(report)
	}
	return result
}

func (r BatchResult) failure() error {
	if r.Error != nil {
		return r.Error
	}
	if r.Report != nil && r.Report.ErrorMessage != "" {
		return errors.New(r.Report.ErrorMessage)
	}
	return nil
}

// printSummary 打印批量抓取摘要
func printSummary(summary models.BatchSummary, results []BatchResult) {
	utils.Info("==================================================")
	utils.Info("批量抓取摘要")
	utils.Info("==================================================")
	utils.Infof("总URL数: %d", summary.TotalURLs)
	utils.Infof("成功: %d", summary.SuccessfulURLs)
	utils.Infof("失败: %d", summary.FailedURLs)
	utils.Infof("总文件数: %d", summary.TotalFiles)
	utils.Infof("总大小: %s", utils.FormatSize(summary.TotalBytes))
	utils.Infof("总耗时: %.2f秒", summary.Duration.Seconds())
	utils.Info("==================================================")

	if summary.FailedURLs > 0 {
		utils.Warn("失败的URL:")
		for _, result := range results {
			if !result.Success() {
				utils.Warnf("  - %s: %v", result.URL, result.failure())
			}
		}
	}
}
