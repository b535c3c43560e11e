package models

import (
	"encoding/json"
	"time"
)

// SessionReport 会话报告,用于导出和批量汇总
type SessionReport struct {
	SessionID string `json:"session_id"`
	TargetURL string `json:"target_url"`
	Domain    string `json:"domain"`
	Strategy  string `json:"strategy"` // static / rendered

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	Status   SessionStatus `json:"status"`
	Counters RunCounters   `json:"counters"`

	// 仅包含成功下载的结果行
	Results []ResultRow `json:"results"`

	// 致命错误(如有)
	ErrorMessage string `json:"error_message,omitempty"`

	Config SessionConfig `json:"config"`
}

// NewSessionReport 创建报告
func NewSessionReport(cfg SessionConfig) *SessionReport {
	return &SessionReport{
		SessionID: newSessionID(),
		TargetURL: cfg.TargetURL,
		Domain:    cfg.TargetHost(),
		StartTime: time.Now(),
		Status:    StatusRunning,
		Results:   []ResultRow{},
		Config:    cfg,
	}
}

// Finish 记录结束时间和最终状态
func (r *SessionReport) Finish(status SessionStatus, counters RunCounters, results []ResultRow) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime).Seconds()
	r.Status = status
	r.Counters = counters
	r.Results = append([]ResultRow(nil), results...)
}

// ToJSON 序列化为JSON
func (r *SessionReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *SessionReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}

// BatchSummary 批量会话汇总
type BatchSummary struct {
	TotalURLs      int           `json:"total_urls"`
	SuccessfulURLs int           `json:"successful_urls"`
	FailedURLs     int           `json:"failed_urls"`
	TotalFiles     int           `json:"total_files"`
	TotalBytes     int64         `json:"total_bytes"`
	Duration       time.Duration `json:"duration"`
}
