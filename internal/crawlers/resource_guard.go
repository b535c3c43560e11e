package crawlers

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/RecoveryAshes/MediaScraper/internal/utils"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ErrInsufficientResources 系统资源不足, 拒绝启动浏览器
var ErrInsufficientResources = errors.New("系统资源不足")

// DefaultMinFreeMemory 启动浏览器所需的最小可用内存
const DefaultMinFreeMemory = 300 * 1024 * 1024

// cpuSampleInterval CPU使用率采样时长
const cpuSampleInterval = 200 * time.Millisecond

// ResourceSnapshot 系统资源快照
type ResourceSnapshot struct {
	TotalMemory     uint64  // 系统总内存(字节)
	AvailableMemory uint64  // 可用内存(字节)
	UsedPercent     float64 // 内存使用率(%)
	CPUPercent      float64 // CPU使用率(%)
	NumCPU          int
}

// ResourceGuard 浏览器启动前的资源检查
// 职责: 采样可用内存和CPU负载, 低于阈值时拒绝启动无头浏览器
type ResourceGuard struct {
	// 最小可用内存(字节), 0表示不检查
	MinFreeMemory uint64

	// CPU负载阈值(%), 0表示不检查
	MaxCPUPercent float64

	sample func() (ResourceSnapshot, error)
}

// NewResourceGuard 创建资源检查器
func NewResourceGuard(minFreeMemory uint64, maxCPUPercent float64) *ResourceGuard {
	return &ResourceGuard{
		MinFreeMemory: minFreeMemory,
		MaxCPUPercent: maxCPUPercent,
		sample:        sampleSystem,
	}
}

// Snapshot 采样当前系统资源
func (g *ResourceGuard) Snapshot() (ResourceSnapshot, error) {
	if g.sample == nil {
		return sampleSystem()
	}
	return g.sample()
}

// Check 检查资源是否足够启动浏览器
// 采样失败时只记录警告, 不阻止启动
func (g *ResourceGuard) Check() error {
	snap, err := g.Snapshot()
	if err != nil {
		utils.Warnf("获取系统资源失败,跳过资源检查: %v", err)
		return nil
	}

	utils.Debugf("可用内存: %s / %s, CPU: %.1f%%",
		utils.FormatSize(int64(snap.AvailableMemory)), utils.FormatSize(int64(snap.TotalMemory)), snap.CPUPercent)

	if g.MinFreeMemory > 0 && snap.AvailableMemory < g.MinFreeMemory {
		return fmt.Errorf("%w: 可用内存 %s 低于 %s", ErrInsufficientResources,
			utils.FormatSize(int64(snap.AvailableMemory)), utils.FormatSize(int64(g.MinFreeMemory)))
	}
	if g.MaxCPUPercent > 0 && snap.CPUPercent > g.MaxCPUPercent {
		return fmt.Errorf("%w: CPU使用率 %.1f%% 超过 %.1f%%", ErrInsufficientResources,
			snap.CPUPercent, g.MaxCPUPercent)
	}
	return nil
}

// sampleSystem 使用gopsutil获取真实系统资源
func sampleSystem() (ResourceSnapshot, error) {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return ResourceSnapshot{}, fmt.Errorf("获取系统内存失败: %w", err)
	}

	snap := ResourceSnapshot{
		TotalMemory:     vmStat.Total,
		AvailableMemory: vmStat.Available,
		UsedPercent:     vmStat.UsedPercent,
		NumCPU:          runtime.NumCPU(),
	}

	percents, err := cpu.Percent(cpuSampleInterval, false)
	if err != nil {
		utils.Warnf("获取CPU使用率失败: %v", err)
	} else if len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}

	return snap, nil
}
