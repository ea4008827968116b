package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/toolbatch/cache"
	"github.com/jonwraymond/toolbatch/observe"
	"github.com/jonwraymond/toolbatch/prefetch"
	"github.com/jonwraymond/toolbatch/resilience"
	"github.com/jonwraymond/toolbatch/tool"
	"github.com/jonwraymond/toolbatch/toolcache"
)

// DefaultMaxConcurrency bounds the parallel worker pool.
const DefaultMaxConcurrency = 5

// Deps holds the collaborators of a Runner. Only Executor is required.
type Deps struct {
	Executor    tool.Executor
	Cache       *toolcache.Cache
	Invalidator *toolcache.Invalidator
	Prefetcher  *prefetch.Prefetcher

	// Middleware wraps Executor with tracing, metrics and logging.
	Middleware *observe.Middleware

	// Classifier defaults to DefaultClassifier().
	Classifier *Classifier

	// Logger and Metrics default to the middleware's, else no-ops. Metrics
	// here record cache and prefetch answers; executor calls are recorded by
	// the middleware.
	Logger  observe.Logger
	Metrics observe.Metrics
}

// Options configures one Run.
type Options struct {
	// ToolContext is forwarded to every execution.
	ToolContext *tool.Context

	// AddToolResult is called exactly once per call, never concurrently.
	AddToolResult func(CallResult)

	// OnToolCall is called before a parsed call is dispatched.
	OnToolCall func(Call, tool.Args)

	// OnToolResult is called after a parsed call completes.
	OnToolResult func(CallResult)

	// MaxConcurrency bounds in-flight parallel calls.
	// Default: 5
	MaxConcurrency int

	// CallTimeout bounds each executor call. Zero means no timeout.
	CallTimeout time.Duration
}

// Runner executes batches of tool calls.
//
// Contract:
//   - Concurrency: safe for concurrent use; batches share cache and prefetcher.
//   - Ordering: results match input order; sequential and interactive calls
//     run strictly in input order after all parallel calls finish.
//   - Errors: Run never fails; each failure becomes one failed CallResult.
type Runner struct {
	exec        tool.Executor
	cache       *toolcache.Cache
	invalidator *toolcache.Invalidator
	prefetcher  *prefetch.Prefetcher
	classifier  Classifier
	logger      observe.Logger
	metrics     observe.Metrics
}

// NewRunner creates a Runner.
func NewRunner(deps Deps) *Runner {
	r := &Runner{
		exec:        deps.Executor,
		cache:       deps.Cache,
		invalidator: deps.Invalidator,
		prefetcher:  deps.Prefetcher,
		classifier:  DefaultClassifier(),
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}
	if deps.Classifier != nil {
		r.classifier = *deps.Classifier
	}
	if r.exec != nil {
		r.exec = recoverPanics(r.exec)
	}
	if deps.Middleware != nil && r.exec != nil {
		r.exec = deps.Middleware.Wrap(r.exec)
		if r.logger == nil {
			r.logger = deps.Middleware.Logger()
		}
		if r.metrics == nil {
			r.metrics = deps.Middleware.Metrics()
		}
	}
	if r.logger == nil {
		r.logger = observe.NopLogger()
	}
	if r.metrics == nil {
		r.metrics = observe.NopMetrics()
	}
	if r.invalidator == nil && r.cache != nil {
		r.invalidator = toolcache.NewInvalidator(r.cache, r.logger)
	}
	return r
}

// Classifier returns the classifier in use.
func (r *Runner) Classifier() Classifier {
	return r.classifier
}

// Run executes calls and returns their results in input order.
func (r *Runner) Run(ctx context.Context, calls []Call, opts Options) []CallResult {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	calls = ensureIDs(calls)
	results := make([]CallResult, len(calls))
	d := &dispatch{runner: r, opts: opts}

	args := make([]tool.Args, len(calls))
	valid := make([]bool, len(calls))
	for i, call := range calls {
		parsed, err := ParseArguments(call.Arguments)
		if err != nil {
			results[i] = CallResult{
				Call:   call,
				Result: tool.Failure("invalid arguments for %s: %v", call.Name, err),
				Source: SourceParseError,
			}
			d.deliver(results[i], false)
			continue
		}
		args[i] = parsed
		valid[i] = true
	}

	cls := r.classifier.Classify(calls)

	var g errgroup.Group
	g.SetLimit(opts.MaxConcurrency)
	for _, i := range cls.Parallel {
		if !valid[i] {
			continue
		}
		g.Go(func() error {
			results[i] = d.run(ctx, calls[i], args[i], ClassParallel)
			return nil
		})
	}
	_ = g.Wait()

	for _, i := range cls.Sequential {
		if valid[i] {
			results[i] = d.run(ctx, calls[i], args[i], ClassSequential)
		}
	}
	for _, i := range cls.Interactive {
		if valid[i] {
			results[i] = d.run(ctx, calls[i], args[i], ClassInteractive)
		}
	}
	return results
}

// dispatch carries per-Run state shared by every call of the batch.
type dispatch struct {
	runner *Runner
	opts   Options
	hookMu sync.Mutex
}

func (d *dispatch) deliver(cr CallResult, withResultHook bool) {
	d.hookMu.Lock()
	defer d.hookMu.Unlock()
	if withResultHook && d.opts.OnToolResult != nil {
		d.opts.OnToolResult(cr)
	}
	if d.opts.AddToolResult != nil {
		d.opts.AddToolResult(cr)
	}
}

func (d *dispatch) announce(call Call, args tool.Args) {
	if d.opts.OnToolCall == nil {
		return
	}
	d.hookMu.Lock()
	defer d.hookMu.Unlock()
	d.opts.OnToolCall(call, args)
}

func (d *dispatch) run(ctx context.Context, call Call, args tool.Args, class Class) CallResult {
	r := d.runner
	start := time.Now()
	meta := observe.CallMeta{Tool: call.Name, CallID: call.ID, Class: string(class)}
	ctx = observe.WithCallMeta(ctx, meta)

	cr := CallResult{Call: call, Args: args, Class: class}

	if err := ctx.Err(); err != nil {
		cr.Result = tool.Failure("%s: %v", ErrCancelled, err)
		cr.Source = SourceCancelled
		d.deliver(cr, false)
		return cr
	}

	d.announce(call, args)

	cacheable := class != ClassInteractive && r.shouldCache(call.Name, args)
	resolved := false

	if cacheable {
		// Re-checked here rather than trusted from an earlier pass: a
		// sibling may have invalidated or inserted in the meantime.
		res, hit := r.cache.Get(call.Name, args)
		r.metrics.RecordCacheLookup(ctx, call.Name, hit)
		if hit {
			cr.Result, cr.Source, resolved = res, SourceCache, true
		}
	}

	// File reads are stamped with the mtime seen before the answer was
	// produced, so a change during execution leaves the entry stale.
	var setOpts cache.SetOptions
	storable := cacheable

	if !resolved && class != ClassInteractive && r.prefetcher != nil && !args.Bool("no_cache") {
		if task := r.prefetcher.Claim(call.Name, args); task != nil {
			if res := task.Wait(ctx); res != nil {
				cr.Result, cr.Source, resolved = *res, SourcePrefetch, true
				setOpts.Mtime = task.Mtime
			}
		}
	}

	if !resolved {
		if storable {
			mtime, tracked, err := r.cache.FileMtime(call.Name, args)
			if tracked && err != nil {
				storable = false
			}
			setOpts.Mtime = mtime
		}
		res, err := r.execute(ctx, call.Name, args, d.opts)
		cr.Source = SourceExecutor
		switch {
		case err != nil && ctx.Err() != nil:
			cr.Result = tool.Failure("%s: %v", ErrCancelled, err)
			cr.Source = SourceCancelled
		case err != nil:
			cr.Result = tool.Failure("%v", err)
		default:
			cr.Result = res
		}
	}

	cr.Duration = time.Since(start)
	if cr.Source != SourceExecutor {
		r.metrics.RecordCall(ctx, meta, string(cr.Source), cr.Duration, cr.Result.Success)
	}
	d.deliver(cr, true)

	if cr.Source == SourceCancelled {
		return cr
	}

	if storable && cr.Source != SourceCache && cr.Result.Success {
		if err := r.cache.Set(call.Name, args, cr.Result, setOpts); err != nil {
			r.logger.Debug(ctx, "result not cached",
				observe.F("tool", call.Name), observe.F("error", err.Error()))
		}
	}

	r.afterCall(ctx, call.Name, args)

	if r.prefetcher != nil {
		r.prefetcher.Predict(ctx, call.Name, args, d.opts.ToolContext)
	}
	return cr
}

// afterCall invalidates state made stale by a write or shell call.
func (r *Runner) afterCall(ctx context.Context, toolName string, args tool.Args) {
	mutating := false
	switch {
	case tool.WriteTools.Has(toolName):
		mutating = true
		if r.invalidator != nil {
			r.invalidator.OnWrite(toolName, args)
		}
	case tool.ShellTools.Has(toolName):
		mutating = true
		if r.invalidator != nil {
			command, _ := args.String("command")
			r.invalidator.OnBash(command, args.Strings("affected_paths"))
		}
	}
	if mutating && r.prefetcher != nil {
		if n := r.prefetcher.Discard(); n > 0 {
			r.logger.Debug(ctx, "discarded pending prefetches after mutation",
				observe.F("tool", toolName), observe.F("discarded", n))
		}
	}
}

func (r *Runner) shouldCache(toolName string, args tool.Args) bool {
	if r.cache == nil {
		return false
	}
	return r.invalidator.ShouldCacheTool(toolName, args)
}

func (r *Runner) execute(ctx context.Context, toolName string, args tool.Args, opts Options) (tool.Result, error) {
	if r.exec == nil {
		return tool.Result{}, ErrNoExecutor
	}
	op := func(ctx context.Context) (tool.Result, error) {
		return r.exec.Execute(ctx, toolName, args, opts.ToolContext)
	}
	if opts.CallTimeout > 0 {
		t := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: opts.CallTimeout})
		res, err := resilience.ExecuteValue(ctx, t, op)
		if errors.Is(err, resilience.ErrTimeout) {
			return res, fmt.Errorf("%s timed out after %s", toolName, opts.CallTimeout)
		}
		return res, err
	}
	return op(ctx)
}

// recoverPanics turns a panicking executor into an error.
func recoverPanics(next tool.Executor) tool.Executor {
	return tool.ExecutorFunc(func(ctx context.Context, name string, args tool.Args, tc *tool.Context) (res tool.Result, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("%s panicked: %v", name, rec)
			}
		}()
		return next.Execute(ctx, name, args, tc)
	})
}
