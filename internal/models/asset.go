package models

// DiscoveredAsset 发现的候选资源
type DiscoveredAsset struct {
	URL               string `json:"url"`
	Extension         string `json:"extension"`          // 小写扩展名,不含点
	SuggestedFilename string `json:"suggested_filename"` // 已清洗的文件名
}

// DownloadOutcome 一次成功传输的结果
type DownloadOutcome struct {
	FilePath    string `json:"file_path"`
	SizeBytes   int64  `json:"size_bytes"`
	CompletedOn string `json:"completed_on"` // YYYY-MM-DD
}

// ResultStatus 结果行状态
type ResultStatus string

const (
	ResultDownloading ResultStatus = "downloading"
	ResultOK          ResultStatus = "ok"
	ResultError       ResultStatus = "error"
)

// Placeholder 未知大小/日期的占位符
const Placeholder = "—"

// ResultRow 结果行
type ResultRow struct {
	Filename string       `json:"filename"`
	Type     string       `json:"type"`
	Size     string       `json:"size"`
	Date     string       `json:"date"`
	URL      string       `json:"url"`
	Status   ResultStatus `json:"status"`
}

// RunCounters 会话计数器
//
// Found 为已接受或正在下载的候选数,被拒绝或失败时回退
type RunCounters struct {
	Found      int   `json:"found"`
	Downloaded int   `json:"downloaded"`
	Errors     int   `json:"errors"`
	TotalBytes int64 `json:"total_bytes"`
	FileIndex  int   `json:"file_index"`
}

// Percent 下载进度百分比,运行中最多99
func (c RunCounters) Percent(maxFiles int) float64 {
	if maxFiles <= 0 {
		return 0
	}
	pct := float64(c.Downloaded) / float64(maxFiles) * 100
	if pct > 99 {
		pct = 99
	}
	return pct
}
