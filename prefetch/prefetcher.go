package prefetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/toolbatch/cache"
	"github.com/jonwraymond/toolbatch/observe"
	"github.com/jonwraymond/toolbatch/resilience"
	"github.com/jonwraymond/toolbatch/tool"
)

// CacheChecker reports whether a call is already answerable from cache.
type CacheChecker interface {
	Has(toolName string, args tool.Args) bool
}

// FileStater reports the modification time of the file a call reads. tracked
// is false for calls that read no file.
type FileStater interface {
	FileMtime(toolName string, args tool.Args) (mtime time.Time, tracked bool, err error)
}

// Deps holds the collaborators of a Prefetcher.
type Deps struct {
	Executor tool.Executor
	Cache    CacheChecker

	// Files, when set, stamps file reads with the mtime seen before the
	// background execution starts. Claim drops tasks whose file has moved on.
	Files FileStater

	Logger  observe.Logger
	Metrics observe.Metrics
}

// Stats is a point-in-time view of prefetcher activity.
type Stats struct {
	Enabled      bool     `json:"enabled"`
	Pending      int      `json:"pending"`
	MaxPending   int      `json:"max_pending"`
	History      int      `json:"history"`
	Rules        int      `json:"rules"`
	Launched     int64    `json:"launched"`
	Claimed      int64    `json:"claimed"`
	Failed       int64    `json:"failed"`
	Skipped      int64    `json:"skipped"`
	Stale        int64    `json:"stale"`
	OpenCircuits []string `json:"open_circuits,omitempty"`
}

// Prefetcher launches background executions of predicted calls.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: background executions detach from the Predict context's
//     cancellation but keep its values.
//   - Errors: execution failures are never surfaced; the task resolves to nil.
//   - Capacity: the number of pending tasks never exceeds MaxPending.
type Prefetcher struct {
	cfg      Config
	exec     tool.Executor
	cache    CacheChecker
	files    FileStater
	logger   observe.Logger
	metrics  observe.Metrics
	bulkhead *resilience.Bulkhead
	breakers *resilience.BreakerSet

	mu       sync.Mutex
	enabled  bool
	rules    []Rule
	history  *ring
	pending  map[string]*Task
	launched int64
	claimed  int64
	failed   int64
	skipped  int64
	stale    int64
}

// New creates a Prefetcher with DefaultRules registered.
func New(cfg Config, deps Deps) *Prefetcher {
	cfg = cfg.withDefaults()
	if deps.Logger == nil {
		deps.Logger = observe.NopLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.NopMetrics()
	}

	rules := DefaultRules()
	sortRules(rules)

	return &Prefetcher{
		cfg:     cfg,
		exec:    deps.Executor,
		cache:   deps.Cache,
		files:   deps.Files,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       cfg.Timeout,
		}),
		breakers: resilience.NewBreakerSet(resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.FailureThreshold,
			ResetTimeout: cfg.ResetTimeout,
			Now:          cfg.Now,
			IsFailure: func(err error) bool {
				return err != nil && !errors.Is(err, resilience.ErrBulkheadFull)
			},
		}),
		enabled: cfg.Enabled,
		rules:   rules,
		history: newRing(cfg.HistorySize),
		pending: make(map[string]*Task),
	}
}

// Register adds a rule. Rules are kept ordered by descending priority.
func (p *Prefetcher) Register(r Rule) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules = append(p.rules, r)
	sortRules(p.rules)
}

// Rules returns a copy of the registered rules in evaluation order.
func (p *Prefetcher) Rules() []Rule {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Rule(nil), p.rules...)
}

// Predict records a completed call and launches predicted follow-ups.
func (p *Prefetcher) Predict(ctx context.Context, toolName string, args tool.Args, tc *tool.Context) {
	key, err := cache.Key(toolName, args)
	if err != nil {
		return
	}

	p.mu.Lock()
	p.history.add(observation{key: key, tool: toolName, args: cloneArgs(args), at: p.cfg.Now()})
	if !p.enabled || len(p.pending) >= p.cfg.MaxPending {
		p.mu.Unlock()
		return
	}
	var matched []Rule
	for _, r := range p.rules {
		if r.Trigger == toolName {
			matched = append(matched, r)
		}
	}
	p.mu.Unlock()

	for _, r := range matched {
		target, ok := r.apply(args)
		if !ok {
			continue
		}
		p.launch(ctx, r.Target, target, tc, "rule")
	}

	if p.cfg.MaxHistoryPredictions == 0 {
		return
	}
	p.mu.Lock()
	cutoff := p.cfg.Now().Add(-p.cfg.HistoryWindow)
	candidates := p.history.frequent(cutoff, p.cfg.MinOccurrences, p.cfg.MaxHistoryPredictions)
	p.mu.Unlock()

	for _, c := range candidates {
		p.launch(ctx, c.tool, c.args, tc, "history")
	}
}

// launch starts a background execution unless a guard rejects it. Guards are
// re-checked under the lock immediately before the task is inserted.
func (p *Prefetcher) launch(ctx context.Context, toolName string, args tool.Args, tc *tool.Context, origin string) bool {
	if p.exec == nil || !p.cfg.Prefetchable.Has(toolName) {
		return false
	}
	key, err := cache.Key(toolName, args)
	if err != nil {
		return false
	}
	if p.cache != nil && p.cache.Has(toolName, args) {
		p.skip()
		return false
	}
	if p.breakers.For(toolName).State() == resilience.StateOpen {
		p.skip()
		return false
	}
	var mtime time.Time
	if p.files != nil {
		m, tracked, err := p.files.FileMtime(toolName, args)
		if tracked && err != nil {
			p.skip()
			return false
		}
		mtime = m
	}

	p.mu.Lock()
	if !p.enabled || len(p.pending) >= p.cfg.MaxPending {
		p.mu.Unlock()
		return false
	}
	if _, exists := p.pending[key]; exists {
		p.mu.Unlock()
		return false
	}
	task := newTask(toolName, args, key, origin, p.cfg.Now())
	task.Mtime = mtime
	p.pending[key] = task
	p.launched++
	p.mu.Unlock()

	p.metrics.RecordPrefetch(ctx, toolName, observe.PrefetchLaunched)
	p.logger.Debug(ctx, "prefetch launched",
		observe.F("tool", toolName), observe.F("origin", origin))

	go p.run(context.WithoutCancel(ctx), task, tc)
	return true
}

func (p *Prefetcher) run(ctx context.Context, task *Task, tc *tool.Context) {
	ex := resilience.NewExecutor(
		resilience.WithCircuitBreaker(p.breakers.For(task.Tool)),
		resilience.WithBulkhead(p.bulkhead),
		resilience.WithTimeout(p.cfg.Timeout),
	)

	var res tool.Result
	err := ex.Execute(ctx, func(ctx context.Context) error {
		r, err := p.execute(ctx, task, tc)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		p.mu.Lock()
		p.failed++
		p.mu.Unlock()
		p.metrics.RecordPrefetch(ctx, task.Tool, observe.PrefetchFailed)
		p.logger.Debug(ctx, "prefetch failed",
			observe.F("tool", task.Tool), observe.F("error", err.Error()))
		task.finish(nil)
		return
	}
	task.finish(&res)
}

func (p *Prefetcher) execute(ctx context.Context, task *Task, tc *tool.Context) (res tool.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("prefetch: %s panicked: %v", task.Tool, r)
		}
	}()
	return p.exec.Execute(ctx, task.Tool, task.Args, tc)
}

func (p *Prefetcher) skip() {
	p.mu.Lock()
	p.skipped++
	p.mu.Unlock()
}

// Claim removes and returns the pending task for (toolName, args), or nil.
// A file read whose file changed since the task started is dropped and nil
// is returned.
func (p *Prefetcher) Claim(toolName string, args tool.Args) *Task {
	key, err := cache.Key(toolName, args)
	if err != nil {
		return nil
	}

	p.mu.Lock()
	task, ok := p.pending[key]
	if ok {
		delete(p.pending, key)
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}

	if p.changedSince(task) {
		p.mu.Lock()
		p.stale++
		p.mu.Unlock()
		p.logger.Debug(context.Background(), "prefetch dropped, file changed",
			observe.F("tool", toolName))
		return nil
	}

	p.mu.Lock()
	p.claimed++
	p.mu.Unlock()
	p.metrics.RecordPrefetch(context.Background(), toolName, observe.PrefetchClaimed)
	return task
}

func (p *Prefetcher) changedSince(task *Task) bool {
	if p.files == nil || task.Mtime.IsZero() {
		return false
	}
	live, _, err := p.files.FileMtime(task.Tool, task.Args)
	if err != nil {
		return true
	}
	return live.UnixMilli() > task.Mtime.UnixMilli()
}

// Has reports whether a task is pending for (toolName, args).
func (p *Prefetcher) Has(toolName string, args tool.Args) bool {
	key, err := cache.Key(toolName, args)
	if err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[key]
	return ok
}

// Pending returns the number of unclaimed tasks.
func (p *Prefetcher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Discard drops every pending task. In-flight executions are abandoned, not
// cancelled. Writes call this so a result computed before the write is never
// claimed after it.
func (p *Prefetcher) Discard() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.pending)
	clear(p.pending)
	return n
}

// SetEnabled turns prediction on or off. Disabling drops pending tasks.
func (p *Prefetcher) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
	if !enabled {
		clear(p.pending)
	}
}

// Enabled reports whether prediction is on.
func (p *Prefetcher) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Clear drops pending tasks, history, counters and circuit state.
func (p *Prefetcher) Clear() {
	p.mu.Lock()
	clear(p.pending)
	p.history.reset()
	p.launched, p.claimed, p.failed, p.skipped, p.stale = 0, 0, 0, 0, 0
	p.mu.Unlock()
	p.breakers.Reset()
}

// Stats returns current statistics.
func (p *Prefetcher) Stats() Stats {
	open := p.breakers.Open()

	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Enabled:      p.enabled,
		Pending:      len(p.pending),
		MaxPending:   p.cfg.MaxPending,
		History:      p.history.len(),
		Rules:        len(p.rules),
		Launched:     p.launched,
		Claimed:      p.claimed,
		Failed:       p.failed,
		Skipped:      p.skipped,
		Stale:        p.stale,
		OpenCircuits: open,
	}
}
