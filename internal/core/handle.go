package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/MediaScraper/internal/models"
)

// defaultPausePoll 暂停状态轮询间隔
const defaultPausePoll = 500 * time.Millisecond

// Handle 单个抓取会话的运行控制句柄
//
// 状态以原子变量保存, TogglePause/Stop 可以在任意goroutine调用,
// 引擎在循环顶部和每个资源处理前检查。
// Stop 不中断正在进行的传输, 传输自行完成或超时
type Handle struct {
	status  atomic.Int32
	stopped atomic.Bool
	poll    time.Duration
}

// NewHandle 创建运行中的会话句柄
func NewHandle(poll time.Duration) *Handle {
	if poll <= 0 {
		poll = defaultPausePoll
	}
	h := &Handle{poll: poll}
	h.status.Store(int32(models.StatusRunning))
	return h
}

// Status 当前状态
func (h *Handle) Status() models.SessionStatus {
	return models.SessionStatus(h.status.Load())
}

// Active 会话是否仍应继续
func (h *Handle) Active() bool {
	return !h.stopped.Load() && !h.Status().Terminal()
}

// TogglePause 在 Running 和 Paused 之间切换, 其他状态下无效果
// 返回切换后的状态
func (h *Handle) TogglePause() models.SessionStatus {
	for {
		current := h.Status()
		var next models.SessionStatus
		switch current {
		case models.StatusRunning:
			next = models.StatusPaused
		case models.StatusPaused:
			next = models.StatusRunning
		default:
			return current
		}
		if h.stopped.Load() {
			return current
		}
		if h.status.CompareAndSwap(int32(current), int32(next)) {
			return next
		}
	}
}

// Stop 请求停止会话, 同时解除暂停
func (h *Handle) Stop() {
	h.stopped.Store(true)
	h.status.CompareAndSwap(int32(models.StatusPaused), int32(models.StatusRunning))
}

// WaitWhilePaused 暂停时按轮询间隔阻塞
// 返回false表示会话已停止或ctx已取消
func (h *Handle) WaitWhilePaused(ctx context.Context) bool {
	for h.Status() == models.StatusPaused {
		if !h.Active() {
			return false
		}
		timer := time.NewTimer(h.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
	return h.Active() && ctx.Err() == nil
}

// finish 设置终止状态
func (h *Handle) finish(status models.SessionStatus) {
	h.status.Store(int32(status))
}

// wasStopped 是否收到过停止请求(用户停止或达到文件上限)
func (h *Handle) wasStopped() bool {
	return h.stopped.Load()
}
