package prefetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/toolbatch/tool"
)

// gatedExecutor blocks every call until release is closed.
type gatedExecutor struct {
	release chan struct{}
	calls   atomic.Int64
	fail    map[string]error
	panics  map[string]bool
}

func newGatedExecutor() *gatedExecutor {
	return &gatedExecutor{release: make(chan struct{})}
}

func (g *gatedExecutor) Execute(ctx context.Context, name string, args tool.Args, tc *tool.Context) (tool.Result, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
	case <-ctx.Done():
		return tool.Result{}, ctx.Err()
	}
	if g.panics[name] {
		panic("boom")
	}
	if err := g.fail[name]; err != nil {
		return tool.Result{}, err
	}
	return tool.Result{Success: true, Output: name}, nil
}

func (g *gatedExecutor) open() { close(g.release) }

type setCache struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (c *setCache) Has(name string, args tool.Args) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, _ := args["file_path"].(string)
	return c.keys[name+":"+p]
}

func newPrefetcher(t *testing.T, exec tool.Executor, mutate func(*Config)) *Prefetcher {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, Deps{Executor: exec})
}

func TestPredict_ReadRules(t *testing.T) {
	exec := newGatedExecutor()
	p := newPrefetcher(t, exec, nil)
	defer exec.open()

	p.Predict(context.Background(), "read", tool.Args{"file_path": "/a/b.ts"}, nil)

	if !p.Has("file_info", tool.Args{"file_path": "/a/b.ts"}) {
		t.Error("expected pending file_info")
	}
	if !p.Has("list_dir", tool.Args{"dir_path": "/a"}) {
		t.Error("expected pending list_dir")
	}
	if p.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", p.Pending())
	}
}

func TestPredict_GitStatus(t *testing.T) {
	exec := newGatedExecutor()
	p := newPrefetcher(t, exec, nil)
	defer exec.open()

	p.Predict(context.Background(), "git_status", tool.Args{}, nil)
	if !p.Has("git_diff", tool.Args{}) {
		t.Error("expected pending git_diff")
	}
	if !p.Has("git_log", nil) {
		t.Error("expected pending git_log")
	}
}

func TestPredict_ScopedPorcelainSkipsLog(t *testing.T) {
	exec := newGatedExecutor()
	p := newPrefetcher(t, exec, nil)
	defer exec.open()

	p.Predict(context.Background(), "git_status", tool.Args{"porcelain": true, "path": "src"}, nil)
	if p.Has("git_log", nil) {
		t.Error("scoped porcelain status should not prefetch git_log")
	}
	if !p.Has("git_diff", nil) {
		t.Error("expected pending git_diff")
	}
}

func TestPredict_PendingNeverExceedsMax(t *testing.T) {
	exec := newGatedExecutor()
	p := newPrefetcher(t, exec, nil)
	defer exec.open()

	for i := range 20 {
		p.Predict(context.Background(), "read_file", tool.Args{"file_path": "/dir" + string(rune('a'+i)) + "/f.go"}, nil)
		if got := p.Pending(); got > 10 {
			t.Fatalf("Pending() = %d after %d predictions", got, i+1)
		}
	}
	if p.Pending() != 10 {
		t.Errorf("Pending() = %d, want 10", p.Pending())
	}
}

func TestPredict_SkipsCachedAndDuplicate(t *testing.T) {
	exec := newGatedExecutor()
	c := &setCache{keys: map[string]bool{
		"file_info:/a/b.ts": true,
		"read_file:/a/b.ts": true,
	}}
	p := New(DefaultConfig(), Deps{Executor: exec, Cache: c})
	defer exec.open()

	p.Predict(context.Background(), "read_file", tool.Args{"file_path": "/a/b.ts"}, nil)
	p.Predict(context.Background(), "read_file", tool.Args{"file_path": "/a/b.ts"}, nil)

	if p.Has("file_info", tool.Args{"file_path": "/a/b.ts"}) {
		t.Error("cached target should not be prefetched")
	}
	if p.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1 (list_dir once)", p.Pending())
	}
	if st := p.Stats(); st.Skipped < 1 || st.Launched != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestPredict_NonPrefetchableTarget(t *testing.T) {
	exec := newGatedExecutor()
	p := newPrefetcher(t, exec, func(c *Config) {
		c.Prefetchable = tool.NewSet("file_info")
	})
	defer exec.open()

	p.Predict(context.Background(), "read_file", tool.Args{"file_path": "/a/b.ts"}, nil)
	if p.Pending() != 1 || !p.Has("file_info", tool.Args{"file_path": "/a/b.ts"}) {
		t.Errorf("only file_info should be pending, got %d", p.Pending())
	}
}

func TestPredict_Disabled(t *testing.T) {
	exec := newGatedExecutor()
	p := newPrefetcher(t, exec, func(c *Config) { c.Enabled = false })
	defer exec.open()

	p.Predict(context.Background(), "read_file", tool.Args{"file_path": "/a/b.ts"}, nil)
	if p.Pending() != 0 {
		t.Errorf("disabled prefetcher launched %d tasks", p.Pending())
	}
	if p.Stats().History != 1 {
		t.Error("history should still be recorded")
	}
}

func TestSetEnabledFalseDropsPending(t *testing.T) {
	exec := newGatedExecutor()
	p := newPrefetcher(t, exec, nil)
	defer exec.open()

	p.Predict(context.Background(), "git_status", nil, nil)
	p.SetEnabled(false)
	if p.Pending() != 0 || p.Enabled() {
		t.Errorf("Pending() = %d, Enabled() = %v", p.Pending(), p.Enabled())
	}
}

func TestClaim(t *testing.T) {
	exec := newGatedExecutor()
	p := newPrefetcher(t, exec, nil)

	p.Predict(context.Background(), "git_diff", nil, nil)
	task := p.Claim("git_status", tool.Args{})
	if task == nil {
		t.Fatal("Claim() = nil")
	}
	if p.Claim("git_status", nil) != nil {
		t.Error("second Claim() should return nil")
	}

	exec.open()
	res := task.Wait(context.Background())
	if res == nil || !res.Success || res.Output != "git_status" {
		t.Fatalf("Wait() = %+v", res)
	}
	if st := p.Stats(); st.Claimed != 1 {
		t.Errorf("Claimed = %d, want 1", st.Claimed)
	}
}

// mtimes is a FileStater over a fixed path table.
type mtimes struct {
	mu    sync.Mutex
	files map[string]time.Time
}

func (m *mtimes) FileMtime(name string, args tool.Args) (time.Time, bool, error) {
	p, ok := args["file_path"].(string)
	if !ok {
		return time.Time{}, false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mt, ok := m.files[p]
	if !ok {
		return time.Time{}, true, errors.New("no such file")
	}
	return mt, true, nil
}

func (m *mtimes) touch(path string, mt time.Time) {
	m.mu.Lock()
	m.files[path] = mt
	m.mu.Unlock()
}

func TestClaim_FileChangedSinceLaunch(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	files := &mtimes{files: map[string]time.Time{"/a/b.ts": base}}
	exec := newGatedExecutor()
	p := New(DefaultConfig(), Deps{Executor: exec, Files: files})
	defer exec.open()

	args := tool.Args{"file_path": "/a/b.ts"}
	p.Predict(context.Background(), "read_file", args, nil)
	if !p.Has("file_info", args) {
		t.Fatal("expected pending file_info")
	}

	files.touch("/a/b.ts", base.Add(time.Second))
	if task := p.Claim("file_info", args); task != nil {
		t.Error("Claim() should drop a task whose file changed")
	}
	if p.Has("file_info", args) {
		t.Error("stale task should be removed")
	}
	st := p.Stats()
	if st.Stale != 1 || st.Claimed != 0 {
		t.Errorf("Stale = %d, Claimed = %d, want 1, 0", st.Stale, st.Claimed)
	}

	p.Predict(context.Background(), "read_file", args, nil)
	task := p.Claim("file_info", args)
	if task == nil {
		t.Fatal("unchanged file should be claimable")
	}
	if !task.Mtime.Equal(base.Add(time.Second)) {
		t.Errorf("task.Mtime = %v, want the mtime seen at launch", task.Mtime)
	}
}

func TestPredict_SkipsUnstatableFile(t *testing.T) {
	files := &mtimes{files: map[string]time.Time{}}
	exec := newGatedExecutor()
	p := New(DefaultConfig(), Deps{Executor: exec, Files: files})
	defer exec.open()

	p.Predict(context.Background(), "read_file", tool.Args{"file_path": "/gone.ts"}, nil)
	if p.Has("file_info", tool.Args{"file_path": "/gone.ts"}) {
		t.Error("file_info of a missing file should not launch")
	}
}

func TestNew_ZeroConfigIsDisabled(t *testing.T) {
	p := New(Config{}, Deps{Executor: newGatedExecutor()})
	if p.Enabled() {
		t.Error("zero Config should leave prefetching off")
	}
	p.Predict(context.Background(), "git_status", nil, nil)
	if p.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", p.Pending())
	}
}

func TestTask_WaitHonorsContext(t *testing.T) {
	exec := newGatedExecutor()
	p := newPrefetcher(t, exec, nil)
	defer exec.open()

	p.Predict(context.Background(), "git_diff", nil, nil)
	task := p.Claim("git_status", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if res := task.Wait(ctx); res != nil {
		t.Errorf("Wait() = %+v, want nil on ctx done", res)
	}
}

func TestTask_FailuresCollapseToNil(t *testing.T) {
	exec := newGatedExecutor()
	exec.fail = map[string]error{"git_status": errors.New("not a repo")}
	exec.panics = map[string]bool{"file_info": true}
	p := newPrefetcher(t, exec, nil)

	p.Predict(context.Background(), "git_diff", nil, nil)
	p.Predict(context.Background(), "read_file", tool.Args{"file_path": "/a/b.ts"}, nil)
	status := p.Claim("git_status", nil)
	info := p.Claim("file_info", tool.Args{"file_path": "/a/b.ts"})
	exec.open()

	if res := status.Wait(context.Background()); res != nil {
		t.Errorf("error should resolve to nil, got %+v", res)
	}
	if res := info.Wait(context.Background()); res != nil {
		t.Errorf("panic should resolve to nil, got %+v", res)
	}
	if st := p.Stats(); st.Failed != 2 {
		t.Errorf("Failed = %d, want 2", st.Failed)
	}
}

func TestPredict_CircuitOpensForFailingTarget(t *testing.T) {
	exec := newGatedExecutor()
	exec.fail = map[string]error{"git_status": errors.New("not a repo")}
	exec.open()
	p := newPrefetcher(t, exec, func(c *Config) { c.FailureThreshold = 2 })

	for range 2 {
		p.Predict(context.Background(), "git_diff", nil, nil)
		if task := p.Claim("git_status", nil); task != nil {
			task.Wait(context.Background())
		}
	}

	p.Predict(context.Background(), "git_diff", nil, nil)
	if p.Has("git_status", nil) {
		t.Error("open circuit should stop prefetching git_status")
	}
	if open := p.Stats().OpenCircuits; len(open) != 1 || open[0] != "git_status" {
		t.Errorf("OpenCircuits = %v", open)
	}

	p.Clear()
	if len(p.Stats().OpenCircuits) != 0 {
		t.Error("Clear() should reset circuits")
	}
}

func TestPredict_History(t *testing.T) {
	exec := newGatedExecutor()
	p := newPrefetcher(t, exec, nil)
	defer exec.open()

	grep := tool.Args{"pattern": "TODO"}
	p.Predict(context.Background(), "grep", grep, nil)
	if p.Has("grep", grep) {
		t.Fatal("a single observation should not be predicted")
	}
	p.Predict(context.Background(), "grep", grep, nil)
	if !p.Has("grep", grep) {
		t.Error("a call seen twice should be prefetched")
	}
}

func TestPredict_HistoryWindow(t *testing.T) {
	exec := newGatedExecutor()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	p := newPrefetcher(t, exec, func(c *Config) { c.Now = clock })
	defer exec.open()

	grep := tool.Args{"pattern": "TODO"}
	p.Predict(context.Background(), "grep", grep, nil)
	mu.Lock()
	now = now.Add(6 * time.Minute)
	mu.Unlock()
	p.Predict(context.Background(), "grep", grep, nil)

	if p.Has("grep", grep) {
		t.Error("observations outside the window should not count")
	}
}

func TestRegister(t *testing.T) {
	exec := newGatedExecutor()
	p := newPrefetcher(t, exec, func(c *Config) {
		c.Prefetchable = DefaultPrefetchable.Union(tool.NewSet("go_test"))
	})
	defer exec.open()

	p.Register(Rule{
		Trigger:  "edit_file",
		Target:   "go_test",
		Priority: 5,
		Map: func(args tool.Args) (tool.Args, bool) {
			return tool.Args{"pkg": "./..."}, true
		},
	})
	if rules := p.Rules(); rules[0].Target != "go_test" {
		t.Errorf("highest priority rule should be first, got %s", rules[0].Target)
	}

	p.Predict(context.Background(), "edit_file", tool.Args{"file_path": "/a.go"}, nil)
	if !p.Has("go_test", tool.Args{"pkg": "./..."}) {
		t.Error("registered rule should fire")
	}
	if !p.Has("read_file", tool.Args{"file_path": "/a.go"}) {
		t.Error("default rule should still fire")
	}
}

func TestDiscard(t *testing.T) {
	exec := newGatedExecutor()
	p := newPrefetcher(t, exec, nil)
	defer exec.open()

	p.Predict(context.Background(), "git_status", nil, nil)
	if n := p.Discard(); n != 2 {
		t.Errorf("Discard() = %d, want 2", n)
	}
	if p.Pending() != 0 {
		t.Error("pending should be empty")
	}
}

func TestPredict_DetachedFromCancellation(t *testing.T) {
	exec := newGatedExecutor()
	p := newPrefetcher(t, exec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	p.Predict(ctx, "git_diff", nil, nil)
	cancel()
	exec.open()

	task := p.Claim("git_status", nil)
	if res := task.Wait(context.Background()); res == nil {
		t.Error("background execution should survive caller cancellation")
	}
}
