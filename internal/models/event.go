package models

import "time"

// LogLevel 会话日志级别
type LogLevel string

const (
	LevelStart LogLevel = "START"
	LevelInfo  LogLevel = "INFO"
	LevelScan  LogLevel = "SCAN"
	LevelOK    LogLevel = "OK"
	LevelSkip  LogLevel = "SKIP"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERR"
	LevelDone  LogLevel = "DONE"
)

// Event 会话事件
// 具体类型: LogEvent, ResultEvent, ProgressEvent, CompleteEvent
type Event interface {
	Kind() string
}

// LogEvent 日志事件
type LogEvent struct {
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Kind 实现Event接口
func (LogEvent) Kind() string { return "log" }

// ResultEvent 结果行事件
type ResultEvent struct {
	Row ResultRow `json:"row"`
}

// Kind 实现Event接口
func (ResultEvent) Kind() string { return "result" }

// ProgressEvent 进度事件
type ProgressEvent struct {
	Percent float64 `json:"percent"`
	RunCounters
}

// Kind 实现Event接口
func (ProgressEvent) Kind() string { return "progress" }

// CompleteEvent 会话结束事件,每个会话恰好一次
type CompleteEvent struct {
	Downloaded int           `json:"downloaded"`
	Errors     int           `json:"errors"`
	TotalBytes int64         `json:"total_bytes"`
	Status     SessionStatus `json:"status"`
}

// Kind 实现Event接口
func (CompleteEvent) Kind() string { return "complete" }

// EventSink 事件接收者
// Emit 在引擎所在的goroutine上同步调用,实现不应长时间阻塞
type EventSink interface {
	Emit(Event)
}

// SinkFunc 函数适配器
type SinkFunc func(Event)

// Emit 实现EventSink接口
func (f SinkFunc) Emit(e Event) { f(e) }

// LogFunc 会话日志回调
type LogFunc func(level LogLevel, format string, args ...interface{})

// DiscardSink 丢弃所有事件
var DiscardSink EventSink = SinkFunc(func(Event) {})
