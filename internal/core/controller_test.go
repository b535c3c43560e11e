package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/MediaScraper/internal/crawlers"
	"github.com/RecoveryAshes/MediaScraper/internal/models"
)

// testSite 静态测试站点
// 图片路径返回4096字节, 含 "tiny" 的返回100字节, 含 "nope" 的返回404
var testSite = map[string]string{
	"/gallery/": `<img src="a.jpg"><img src="b.png"><img data-src="c.webp">`,
	"/dup":      `<img src="/x/photo.jpg"><img src="/y/photo.jpg">`,
	"/tiny":     `<img src="/tiny.jpg"><img src="/big.jpg">`,
	"/many":     `<img src="/1.jpg"><img src="/2.jpg"><img src="/3.jpg"><img src="/4.jpg"><img src="/5.jpg">`,
	"/broken":   `<img src="/nope.jpg"><img src="/ok.jpg">`,
	"/filters":  `<img src="/emoji_smile.png"><img src="/clip.jpg"><div style="background:url(/spacer.gif)"></div>`,
	"/links":    `<img src="/l0.jpg"><a href="/child1">1</a><a href="/child2">2</a><a href="https://other.test/x">x</a>`,
	"/child1":   `<img src="/c1.jpg"><a href="/links">back</a><a href="/deep">deep</a>`,
	"/child2":   `<img src="/c2.jpg">`,
	"/deep":     `<img src="/d.jpg">`,
}

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.Contains(path, "nope"):
			http.NotFound(w, r)
		case strings.HasSuffix(path, ".jpg") || strings.HasSuffix(path, ".png") ||
			strings.HasSuffix(path, ".webp") || strings.HasSuffix(path, ".gif"):
			size := 4096
			if strings.Contains(path, "tiny") {
				size = 100
			}
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(bytes.Repeat([]byte{0xab}, size))
		default:
			body, ok := testSite[path]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprintf(w, "<html><body>%s</body></html>", body)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// eventRecorder 记录会话事件
type eventRecorder struct {
	mu     sync.Mutex
	events []models.Event
	onEmit func(models.Event)
}

func (r *eventRecorder) Emit(e models.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	hook := r.onEmit
	r.mu.Unlock()
	if hook != nil {
		hook(e)
	}
}

func (r *eventRecorder) logs(level models.LogLevel) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if l, ok := e.(models.LogEvent); ok && l.Level == level {
			out = append(out, l.Message)
		}
	}
	return out
}

func (r *eventRecorder) rows(status models.ResultStatus) []models.ResultRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ResultRow
	for _, e := range r.events {
		if re, ok := e.(models.ResultEvent); ok && re.Row.Status == status {
			out = append(out, re.Row)
		}
	}
	return out
}

func (r *eventRecorder) completes() []models.CompleteEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CompleteEvent
	for _, e := range r.events {
		if c, ok := e.(models.CompleteEvent); ok {
			out = append(out, c)
		}
	}
	return out
}

func (r *eventRecorder) last(n int) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) < n {
		return nil
	}
	return append([]models.Event(nil), r.events[len(r.events)-n:]...)
}

func testSessionConfig(t *testing.T, target string) models.SessionConfig {
	t.Helper()
	cfg := models.DefaultSessionConfig()
	cfg.TargetURL = target
	cfg.OutputDir = t.TempDir()
	cfg.MaxFiles = 10
	cfg.DelaySeconds = 0
	cfg.AssetTypes = models.CategoryAll
	cfg.Policy.PausePoll = 10 * time.Millisecond
	return cfg
}

// assertSingleComplete 结束时先发送进度100, 再发送唯一一次complete
func assertSingleComplete(t *testing.T, rec *eventRecorder) models.CompleteEvent {
	t.Helper()
	completes := rec.completes()
	if len(completes) != 1 {
		t.Fatalf("complete事件数 = %d, want 1", len(completes))
	}
	tail := rec.last(2)
	progress, ok := tail[0].(models.ProgressEvent)
	if !ok || progress.Percent != 100 {
		t.Errorf("complete之前应为进度100, got %#v", tail[0])
	}
	if _, ok := tail[1].(models.CompleteEvent); !ok {
		t.Errorf("最后一个事件应为complete, got %#v", tail[1])
	}
	return completes[0]
}

func TestController_StaticScenarios(t *testing.T) {
	srv := newTestSite(t)

	t.Run("三张图片全部下载", func(t *testing.T) {
		rec := &eventRecorder{}
		ctrl := NewController(ControllerOptions{}, rec)
		cfg := testSessionConfig(t, srv.URL+"/gallery/")

		report, err := ctrl.Run(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if report.Status != models.StatusCompleted || ctrl.Status() != models.StatusCompleted {
			t.Errorf("status = %v / %v", report.Status, ctrl.Status())
		}
		if report.Counters.Found != 3 || report.Counters.Downloaded != 3 {
			t.Errorf("counters = %+v", report.Counters)
		}
		if report.Strategy != "static" {
			t.Errorf("Strategy = %s", report.Strategy)
		}
		if got := len(ctrl.Results()); got != 3 {
			t.Errorf("Results() = %d 行", got)
		}
		for _, name := range []string{"a.jpg", "b.png", "c.webp"} {
			if _, err := os.Stat(filepath.Join(cfg.OutputDir, name)); err != nil {
				t.Errorf("文件 %s 未写入: %v", name, err)
			}
		}
		if len(rec.rows(models.ResultDownloading)) != 3 {
			t.Error("每个候选资源应先发送downloading行")
		}

		done := assertSingleComplete(t, rec)
		if done.Downloaded != 3 || done.TotalBytes != 3*4096 {
			t.Errorf("complete = %+v", done)
		}
	})

	t.Run("页面返回404", func(t *testing.T) {
		rec := &eventRecorder{}
		ctrl := NewController(ControllerOptions{}, rec)

		report, err := ctrl.Run(context.Background(), testSessionConfig(t, srv.URL+"/absent"))
		if err != nil {
			t.Fatal(err)
		}

		warns := rec.logs(models.LevelWarn)
		if len(warns) != 1 || !strings.HasPrefix(warns[0], "HTTP 404: ") {
			t.Errorf("WARN日志 = %v", warns)
		}
		if len(ctrl.Results()) != 0 || len(rec.rows(models.ResultOK)) != 0 {
			t.Error("不应有结果行")
		}
		done := assertSingleComplete(t, rec)
		if done.Downloaded != 0 || done.Errors != 0 || report.Status != models.StatusCompleted {
			t.Errorf("complete = %+v, status = %v", done, report.Status)
		}
	})

	t.Run("同名同大小去重", func(t *testing.T) {
		rec := &eventRecorder{}
		ctrl := NewController(ControllerOptions{}, rec)
		cfg := testSessionConfig(t, srv.URL+"/dup")

		report, err := ctrl.Run(context.Background(), cfg)
		if err != nil {
			t.Fatal(err)
		}

		if len(rec.rows(models.ResultOK)) != 1 || report.Counters.Found != 1 {
			t.Errorf("ok行 = %d, found = %d", len(rec.rows(models.ResultOK)), report.Counters.Found)
		}
		skips := rec.logs(models.LevelSkip)
		if len(skips) != 1 || skips[0] != "Duplicate: photo.jpg" {
			t.Errorf("SKIP日志 = %v", skips)
		}
		// 重复文件不能覆盖已接受的文件
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, "photo.jpg")); err != nil {
			t.Errorf("photo.jpg 应保留: %v", err)
		}
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, "photo_2.jpg")); !os.IsNotExist(err) {
			t.Error("重复文件应被删除")
		}
	})

	t.Run("关闭去重时保留两个文件", func(t *testing.T) {
		rec := &eventRecorder{}
		ctrl := NewController(ControllerOptions{}, rec)
		cfg := testSessionConfig(t, srv.URL+"/dup")
		cfg.Deduplicate = false

		report, err := ctrl.Run(context.Background(), cfg)
		if err != nil {
			t.Fatal(err)
		}
		if report.Counters.Downloaded != 2 {
			t.Errorf("downloaded = %d, want 2", report.Counters.Downloaded)
		}
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, "photo_2.jpg")); err != nil {
			t.Errorf("同名文件应另存: %v", err)
		}
	})

	t.Run("过小文件被删除", func(t *testing.T) {
		rec := &eventRecorder{}
		ctrl := NewController(ControllerOptions{}, rec)
		cfg := testSessionConfig(t, srv.URL+"/tiny")

		report, err := ctrl.Run(context.Background(), cfg)
		if err != nil {
			t.Fatal(err)
		}

		if report.Counters.Found != 1 || report.Counters.Downloaded != 1 {
			t.Errorf("counters = %+v", report.Counters)
		}
		skips := rec.logs(models.LevelSkip)
		if len(skips) != 1 || skips[0] != "Too small (tracking pixel): tiny.jpg" {
			t.Errorf("SKIP日志 = %v", skips)
		}
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, "tiny.jpg")); !os.IsNotExist(err) {
			t.Error("过小文件应被删除")
		}
	})

	t.Run("达到文件上限后停止", func(t *testing.T) {
		rec := &eventRecorder{}
		ctrl := NewController(ControllerOptions{}, rec)
		cfg := testSessionConfig(t, srv.URL+"/many")
		cfg.MaxFiles = 2

		report, err := ctrl.Run(context.Background(), cfg)
		if err != nil {
			t.Fatal(err)
		}

		if report.Status != models.StatusStopped || report.Counters.Downloaded != 2 {
			t.Errorf("status = %v, downloaded = %d", report.Status, report.Counters.Downloaded)
		}
		infos := strings.Join(rec.logs(models.LevelInfo), "\n")
		if !strings.Contains(infos, "Max files limit (2) reached") {
			t.Errorf("INFO日志缺少上限提示: %s", infos)
		}
		if assertSingleComplete(t, rec).Status != models.StatusStopped {
			t.Error("complete状态应为stopped")
		}
	})

	t.Run("最后一个资源达到上限", func(t *testing.T) {
		rec := &eventRecorder{}
		ctrl := NewController(ControllerOptions{}, rec)
		cfg := testSessionConfig(t, srv.URL+"/gallery/")
		cfg.MaxFiles = 3

		report, err := ctrl.Run(context.Background(), cfg)
		if err != nil {
			t.Fatal(err)
		}

		if report.Status != models.StatusStopped || report.Counters.Downloaded != 3 {
			t.Errorf("status = %v, downloaded = %d", report.Status, report.Counters.Downloaded)
		}
		infos := strings.Join(rec.logs(models.LevelInfo), "\n")
		if strings.Count(infos, "Max files limit (3) reached") != 1 {
			t.Errorf("上限提示应出现一次: %s", infos)
		}
	})

	t.Run("达到上限后不再获取页面", func(t *testing.T) {
		rec := &eventRecorder{}
		ctrl := NewController(ControllerOptions{}, rec)
		cfg := testSessionConfig(t, srv.URL+"/links")
		cfg.MaxFiles = 1
		cfg.FollowLinks = true
		cfg.MaxDepth = 2

		report, err := ctrl.Run(context.Background(), cfg)
		if err != nil {
			t.Fatal(err)
		}

		if report.Status != models.StatusStopped || report.Counters.Downloaded != 1 {
			t.Errorf("status = %v, downloaded = %d", report.Status, report.Counters.Downloaded)
		}
		for _, msg := range rec.logs(models.LevelScan) {
			if strings.HasPrefix(msg, "Fetching: ") && !strings.HasPrefix(msg, "Fetching: "+srv.URL+"/links") {
				t.Errorf("达到上限后仍获取页面: %s", msg)
			}
		}
	})

	t.Run("下载失败记录错误行", func(t *testing.T) {
		rec := &eventRecorder{}
		ctrl := NewController(ControllerOptions{}, rec)

		report, err := ctrl.Run(context.Background(), testSessionConfig(t, srv.URL+"/broken"))
		if err != nil {
			t.Fatal(err)
		}

		if report.Counters.Errors != 1 || report.Counters.Found != 1 || report.Counters.Downloaded != 1 {
			t.Errorf("counters = %+v", report.Counters)
		}
		errRows := rec.rows(models.ResultError)
		if len(errRows) != 1 || errRows[0].Filename != "nope.jpg" || errRows[0].Size != models.Placeholder {
			t.Errorf("错误行 = %+v", errRows)
		}
		errs := rec.logs(models.LevelError)
		if len(errs) != 1 || !strings.HasPrefix(errs[0], "Failed: nope.jpg — HTTP 404") {
			t.Errorf("ERR日志 = %v", errs)
		}
		// 错误行不进入结果列表
		if len(ctrl.Results()) != 1 {
			t.Errorf("Results() = %d", len(ctrl.Results()))
		}
	})

	t.Run("扩展名和跟踪像素过滤", func(t *testing.T) {
		rec := &eventRecorder{}
		ctrl := NewController(ControllerOptions{}, rec)
		cfg := testSessionConfig(t, srv.URL+"/filters")

		report, err := ctrl.Run(context.Background(), cfg)
		if err != nil {
			t.Fatal(err)
		}
		if report.Counters.Found != 1 || report.Results[0].Filename != "clip.jpg" {
			t.Errorf("counters = %+v, results = %+v", report.Counters, report.Results)
		}

		cfg.AssetTypes = models.CategoryVideos
		report, err = ctrl.Run(context.Background(), cfg)
		if err != nil {
			t.Fatal(err)
		}
		if report.Counters.Found != 0 {
			t.Errorf("只选视频时不应接受图片, found = %d", report.Counters.Found)
		}
	})
}

func TestController_FollowLinks(t *testing.T) {
	srv := newTestSite(t)

	tests := []struct {
		name      string
		follow    bool
		depth     int
		traversal models.Traversal
		want      []string
	}{
		{"不跟随链接", false, 1, models.TraversalDepthFirst, []string{"l0.jpg"}},
		{"深度1", true, 1, models.TraversalDepthFirst, []string{"l0.jpg", "c1.jpg", "c2.jpg"}},
		{"深度2深度优先", true, 2, models.TraversalDepthFirst, []string{"l0.jpg", "c1.jpg", "d.jpg", "c2.jpg"}},
		{"深度2广度优先", true, 2, models.TraversalBreadthFirst, []string{"l0.jpg", "c1.jpg", "c2.jpg", "d.jpg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &eventRecorder{}
			ctrl := NewController(ControllerOptions{}, rec)
			cfg := testSessionConfig(t, srv.URL+"/links")
			cfg.FollowLinks = tt.follow
			cfg.MaxDepth = tt.depth
			cfg.Policy.Traversal = tt.traversal

			if _, err := ctrl.Run(context.Background(), cfg); err != nil {
				t.Fatal(err)
			}

			var got []string
			for _, row := range ctrl.Results() {
				got = append(got, row.Filename)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("下载顺序 = %v, want %v", got, tt.want)
			}

			// 每个页面只获取一次
			fetches := 0
			for _, msg := range rec.logs(models.LevelScan) {
				if strings.HasPrefix(msg, "Fetching: "+srv.URL+"/links") {
					fetches++
				}
			}
			if fetches != 1 {
				t.Errorf("/links 获取次数 = %d", fetches)
			}
		})
	}
}

func TestController_PauseAndStop(t *testing.T) {
	srv := newTestSite(t)

	t.Run("暂停后恢复", func(t *testing.T) {
		rec := &eventRecorder{}
		ctrl := NewController(ControllerOptions{}, rec)

		var once sync.Once
		observed := make(chan models.SessionStatus, 1)
		rec.onEmit = func(e models.Event) {
			re, ok := e.(models.ResultEvent)
			if !ok || re.Row.Status != models.ResultOK {
				return
			}
			once.Do(func() {
				if ctrl.TogglePause() != models.StatusPaused {
					t.Error("TogglePause() 应返回 paused")
				}
				go func() {
					time.Sleep(50 * time.Millisecond)
					observed <- ctrl.Status()
					ctrl.TogglePause()
				}()
			})
		}

		report, err := ctrl.Run(context.Background(), testSessionConfig(t, srv.URL+"/gallery/"))
		if err != nil {
			t.Fatal(err)
		}

		if st := <-observed; st != models.StatusPaused {
			t.Errorf("暂停期间状态 = %v", st)
		}
		if report.Status != models.StatusCompleted || report.Counters.Downloaded != 3 {
			t.Errorf("status = %v, downloaded = %d", report.Status, report.Counters.Downloaded)
		}
	})

	t.Run("停止后不再下载", func(t *testing.T) {
		rec := &eventRecorder{}
		ctrl := NewController(ControllerOptions{}, rec)
		cfg := testSessionConfig(t, srv.URL+"/many")

		var once sync.Once
		var secondRunErr error
		rec.onEmit = func(e models.Event) {
			re, ok := e.(models.ResultEvent)
			if !ok || re.Row.Status != models.ResultOK {
				return
			}
			once.Do(func() {
				_, secondRunErr = ctrl.Run(context.Background(), cfg)
				ctrl.Stop()
			})
		}

		report, err := ctrl.Run(context.Background(), cfg)
		if err != nil {
			t.Fatal(err)
		}

		if !errors.Is(secondRunErr, ErrSessionActive) {
			t.Errorf("运行中再次Run应返回ErrSessionActive, got %v", secondRunErr)
		}
		if report.Status != models.StatusStopped || report.Counters.Downloaded != 1 {
			t.Errorf("status = %v, downloaded = %d", report.Status, report.Counters.Downloaded)
		}
		assertSingleComplete(t, rec)

		// 终止后暂停无效
		if ctrl.TogglePause() != models.StatusStopped {
			t.Error("终止状态下TogglePause不应改变状态")
		}
	})

	// 下载间隔等待期间发出的控制命令, 必须在下一次传输开始前生效
	intervalTests := []struct {
		name       string
		act        func(ctrl *Controller, cancel context.CancelFunc)
		resume     bool
		wantStatus models.SessionStatus
		wantTotal  int
	}{
		{"间隔中暂停", func(ctrl *Controller, _ context.CancelFunc) { ctrl.TogglePause() }, true, models.StatusCompleted, 5},
		{"间隔中停止", func(ctrl *Controller, _ context.CancelFunc) { ctrl.Stop() }, false, models.StatusStopped, 1},
		{"间隔中取消ctx", func(_ *Controller, cancel context.CancelFunc) { cancel() }, false, models.StatusStopped, 1},
	}

	for _, tt := range intervalTests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &eventRecorder{}
			ctrl := NewController(ControllerOptions{}, rec)
			cfg := testSessionConfig(t, srv.URL+"/many")
			cfg.DelaySeconds = 0.4

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			type snapshot struct{ ok, downloading int }
			take := func() snapshot {
				return snapshot{len(rec.rows(models.ResultOK)), len(rec.rows(models.ResultDownloading))}
			}

			var once sync.Once
			held := make(chan [2]snapshot, 1)
			rec.onEmit = func(e models.Event) {
				re, ok := e.(models.ResultEvent)
				if !ok || re.Row.Status != models.ResultOK {
					return
				}
				once.Do(func() {
					go func() {
						time.Sleep(100 * time.Millisecond)
						tt.act(ctrl, cancel)
						before := take()
						// 超过剩余的下载间隔
						time.Sleep(600 * time.Millisecond)
						after := take()
						if tt.resume {
							ctrl.TogglePause()
						}
						held <- [2]snapshot{before, after}
					}()
				})
			}

			report, err := ctrl.Run(ctx, cfg)
			if err != nil {
				t.Fatal(err)
			}

			snaps := <-held
			if snaps[0] != (snapshot{1, 1}) || snaps[1] != snaps[0] {
				t.Errorf("控制命令后仍开始下载: before = %+v, after = %+v", snaps[0], snaps[1])
			}
			if report.Status != tt.wantStatus || report.Counters.Downloaded != tt.wantTotal {
				t.Errorf("status = %v, downloaded = %d", report.Status, report.Counters.Downloaded)
			}
			// 每个downloading行都有对应的ok或error行
			if d, ok, bad := len(rec.rows(models.ResultDownloading)), len(rec.rows(models.ResultOK)), len(rec.rows(models.ResultError)); d != ok+bad {
				t.Errorf("downloading = %d, ok = %d, error = %d", d, ok, bad)
			}
			assertSingleComplete(t, rec)
		})
	}

	t.Run("无效配置", func(t *testing.T) {
		ctrl := NewController(ControllerOptions{}, nil)
		cfg := testSessionConfig(t, "ftp://example.com")
		if _, err := ctrl.Run(context.Background(), cfg); err == nil {
			t.Error("无效URL应返回错误")
		}
		if ctrl.Status() != models.StatusIdle {
			t.Errorf("Status() = %v, want idle", ctrl.Status())
		}
	})
}

// fakeStrategy 可编程的发现策略
type fakeStrategy struct {
	name     string
	discover func(ctx context.Context, item models.URLItem) (*crawlers.PageScan, error)
	closed   int
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) Discover(ctx context.Context, item models.URLItem) (*crawlers.PageScan, error) {
	return s.discover(ctx, item)
}

func (s *fakeStrategy) Close() error { s.closed++; return nil }

// funcTransport 函数实现的Transport
type funcTransport func(ctx context.Context, rawURL, dir, filename string) (*models.DownloadOutcome, error)

func (f funcTransport) Download(ctx context.Context, rawURL, dir, filename string) (*models.DownloadOutcome, error) {
	return f(ctx, rawURL, dir, filename)
}

func withStrategy(ctrl *Controller, s crawlers.Strategy) {
	ctrl.newStrategy = func(models.SessionConfig, []models.Cookie, *Handle, models.LogFunc) crawlers.Strategy {
		return s
	}
}

func TestController_RenderedScenarios(t *testing.T) {
	t.Run("跳转登录页", func(t *testing.T) {
		rec := &eventRecorder{}
		ctrl := NewController(ControllerOptions{}, rec)
		strategy := &fakeStrategy{
			name: "rendered",
			discover: func(ctx context.Context, item models.URLItem) (*crawlers.PageScan, error) {
				return nil, crawlers.ErrAuthExpired
			},
		}
		withStrategy(ctrl, strategy)

		cfg := testSessionConfig(t, "https://social.example.com/feed")
		cfg.UseCookies = true
		cfg.Cookies = "sessionid=abc"

		report, err := ctrl.Run(context.Background(), cfg)
		if err != nil {
			t.Fatal(err)
		}

		warns := rec.logs(models.LevelWarn)
		if len(warns) != 1 || !strings.HasPrefix(warns[0], "Redirected to login page") {
			t.Errorf("WARN日志 = %v", warns)
		}
		if report.Status != models.StatusCompleted || report.Counters.Found != 0 {
			t.Errorf("status = %v, counters = %+v", report.Status, report.Counters)
		}
		if strategy.closed != 1 {
			t.Errorf("策略应在会话结束时关闭, closed = %d", strategy.closed)
		}
	})

	t.Run("引擎panic", func(t *testing.T) {
		rec := &eventRecorder{}
		ctrl := NewController(ControllerOptions{}, rec)
		strategy := &fakeStrategy{
			name: "rendered",
			discover: func(ctx context.Context, item models.URLItem) (*crawlers.PageScan, error) {
				return &crawlers.PageScan{
					PageURL: item.URL,
					Assets:  []string{"https://cdn.example.com/a.jpg"},
					Transport: funcTransport(func(context.Context, string, string, string) (*models.DownloadOutcome, error) {
						panic("boom")
					}),
				}, nil
			},
		}
		withStrategy(ctrl, strategy)

		report, err := ctrl.Run(context.Background(), testSessionConfig(t, "https://example.com/"))
		if err != nil {
			t.Fatal(err)
		}

		if report.Status != models.StatusStopped || report.ErrorMessage == "" {
			t.Errorf("status = %v, error = %q", report.Status, report.ErrorMessage)
		}
		errs := rec.logs(models.LevelError)
		if len(errs) != 1 || !strings.HasPrefix(errs[0], "Scrape failed:") {
			t.Errorf("ERR日志 = %v", errs)
		}
		if strategy.closed != 1 {
			t.Error("panic后仍应关闭策略")
		}
		assertSingleComplete(t, rec)
	})

	t.Run("下载间隔", func(t *testing.T) {
		rec := &eventRecorder{}
		ctrl := NewController(ControllerOptions{}, rec)

		var times []time.Time
		transport := funcTransport(func(ctx context.Context, rawURL, dir, filename string) (*models.DownloadOutcome, error) {
			times = append(times, time.Now())
			return &models.DownloadOutcome{FilePath: filepath.Join(dir, filename), SizeBytes: 5000, CompletedOn: "2024-01-01"}, nil
		})
		withStrategy(ctrl, &fakeStrategy{
			name: "rendered",
			discover: func(ctx context.Context, item models.URLItem) (*crawlers.PageScan, error) {
				return &crawlers.PageScan{
					PageURL:     item.URL,
					Assets:      []string{"https://cdn.example.com/1.jpg", "https://cdn.example.com/2.jpg", "https://cdn.example.com/3.jpg"},
					Transport:   transport,
					DelayFactor: 0.5,
				}, nil
			},
		})

		cfg := testSessionConfig(t, "https://example.com/")
		cfg.DelaySeconds = 0.2

		if _, err := ctrl.Run(context.Background(), cfg); err != nil {
			t.Fatal(err)
		}
		if len(times) != 3 {
			t.Fatalf("下载次数 = %d", len(times))
		}
		// 间隔 0.2s * 0.5
		for i := 1; i < len(times); i++ {
			if gap := times[i].Sub(times[i-1]); gap < 80*time.Millisecond {
				t.Errorf("第%d次下载间隔 = %v, 期望约100ms", i, gap)
			}
		}
	})
}

func TestHandle(t *testing.T) {
	h := NewHandle(5 * time.Millisecond)
	if h.Status() != models.StatusRunning || !h.Active() {
		t.Fatal("新句柄应为运行状态")
	}

	if h.TogglePause() != models.StatusPaused {
		t.Fatal("应切换为暂停")
	}

	done := make(chan bool)
	go func() { done <- h.WaitWhilePaused(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	h.Stop()

	select {
	case ok := <-done:
		if ok {
			t.Error("停止后WaitWhilePaused应返回false")
		}
	case <-time.After(time.Second):
		t.Fatal("停止后WaitWhilePaused未返回")
	}

	if h.Status() != models.StatusRunning {
		t.Errorf("停止应解除暂停, status = %v", h.Status())
	}
	if h.Active() {
		t.Error("停止后Active应为false")
	}
	if h.TogglePause() != models.StatusRunning {
		t.Error("停止后不能再暂停")
	}

	h.finish(models.StatusStopped)
	if h.Status() != models.StatusStopped {
		t.Errorf("finish后 status = %v", h.Status())
	}
}

func TestHandle_WaitCancelled(t *testing.T) {
	h := NewHandle(5 * time.Millisecond)
	h.TogglePause()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if h.WaitWhilePaused(ctx) {
		t.Error("ctx取消后应返回false")
	}
}
