package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/jonwraymond/toolbatch/batch"
	"github.com/jonwraymond/toolbatch/cache"
	"github.com/jonwraymond/toolbatch/config"
	"github.com/jonwraymond/toolbatch/health"
	"github.com/jonwraymond/toolbatch/observe"
	"github.com/jonwraymond/toolbatch/prefetch"
	"github.com/jonwraymond/toolbatch/tool"
	"github.com/jonwraymond/toolbatch/toolcache"
)

// Stats is a point-in-time view of the engine.
type Stats struct {
	Cache    cache.Stats         `json:"cache"`
	HitRate  float64             `json:"hit_rate"`
	Prefetch prefetch.Stats      `json:"prefetch"`
	Snapshot toolcache.FileStats `json:"snapshot"`
}

// Engine runs batches of tool calls against one shared cache and prefetcher.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Lifecycle: Close saves the snapshot once; later calls return the first
//     result.
type Engine struct {
	cfg    config.Config
	logger observe.Logger

	observer     observe.Observer
	ownsObserver bool

	store       *cache.Store[tool.Result]
	cache       *toolcache.Cache
	invalidator *toolcache.Invalidator
	snapshotter *toolcache.Snapshotter
	prefetcher  *prefetch.Prefetcher
	runner      *batch.Runner
	health      *health.Aggregator

	closeOnce sync.Once
	closeErr  error
}

// New builds an Engine around exec. When persistence is enabled the snapshot
// is loaded before New returns.
func New(ctx context.Context, cfg config.Config, exec tool.Executor, opts ...Option) (*Engine, error) {
	if exec == nil {
		return nil, fmt.Errorf("engine: %w", batch.ErrNoExecutor)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{fs: afero.NewOsFs(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{cfg: cfg, observer: o.observer}
	if e.observer == nil {
		if cfg.ObservabilityEnabled() {
			obs, err := observe.NewObserver(ctx, cfg.Observe)
			if err != nil {
				return nil, fmt.Errorf("engine: observer: %w", err)
			}
			e.observer = obs
			e.ownsObserver = true
		} else {
			e.observer = observe.NewNopObserver()
		}
	}

	e.logger = o.logger
	if e.logger == nil {
		e.logger = e.observer.Logger()
	}
	metrics, err := observe.NewMetrics(e.observer.Meter())
	if err != nil {
		return nil, fmt.Errorf("engine: metrics: %w", err)
	}
	mw := observe.NewMiddleware(observe.NewTracer(e.observer.Tracer()), metrics, e.logger)

	e.store = cache.NewStore[tool.Result](cache.Config{
		MaxSize:    cfg.Cache.MaxSize,
		MaxEntries: cfg.Cache.MaxEntries,
		DefaultTTL: cfg.Cache.DefaultTTL,
		Now:        o.now,
	})
	e.cache = toolcache.New(e.store, toolcache.Options{
		Fs:      o.fs,
		BaseDir: cfg.Cache.BaseDir,
		Logger:  e.logger,
	})
	e.invalidator = toolcache.NewInvalidator(e.cache, e.logger)
	e.snapshotter = toolcache.NewSnapshotter(e.cache, toolcache.SnapshotOptions{
		Path:   cfg.Persistence.Path,
		MaxAge: cfg.Persistence.MaxAge,
		Logger: e.logger,
	})
	e.prefetcher = prefetch.New(prefetchConfig(cfg.Prefetch, o.now), prefetch.Deps{
		Executor: exec,
		Cache:    e.cache,
		Files:    e.cache,
		Logger:   e.logger,
		Metrics:  metrics,
	})
	e.runner = batch.NewRunner(batch.Deps{
		Executor:    exec,
		Cache:       e.cache,
		Invalidator: e.invalidator,
		Prefetcher:  e.prefetcher,
		Middleware:  mw,
		Classifier:  o.classifier,
	})

	e.health = health.NewAggregator()
	e.health.Register("cache", health.NewCacheChecker(e.store, health.CacheCheckerConfig{}))
	e.health.Register("prefetch", health.NewPrefetchChecker(e.prefetcher))
	if cfg.Persistence.Enabled {
		e.health.Register("persistence", health.NewPersistenceChecker(o.fs, e.snapshotter.Path()))

		n := e.snapshotter.Load()
		e.logger.Debug(ctx, "cache snapshot loaded",
			observe.F("path", e.snapshotter.Path()), observe.F("entries", n))
	}
	return e, nil
}

func prefetchConfig(p config.PrefetchConfig, now func() time.Time) prefetch.Config {
	return prefetch.Config{
		Enabled:               p.Enabled,
		MaxPending:            p.MaxPending,
		HistorySize:           p.HistorySize,
		HistoryWindow:         p.HistoryWindow,
		MinOccurrences:        p.MinOccurrences,
		MaxHistoryPredictions: p.MaxHistoryPredictions,
		MaxConcurrent:         p.MaxConcurrent,
		FailureThreshold:      p.FailureThreshold,
		ResetTimeout:          p.ResetTimeout,
		Timeout:               p.Timeout,
		Now:                   now,
	}
}

// Execute runs a batch. Zero MaxConcurrency and CallTimeout in opts take the
// configured executor values.
func (e *Engine) Execute(ctx context.Context, calls []batch.Call, opts batch.Options) []batch.CallResult {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = e.cfg.Executor.MaxConcurrency
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = e.cfg.Executor.CallTimeout
	}
	return e.runner.Run(ctx, calls, opts)
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() config.Config { return e.cfg }

// Cache returns the tool result cache.
func (e *Engine) Cache() *toolcache.Cache { return e.cache }

// Invalidator returns the write invalidation policy.
func (e *Engine) Invalidator() *toolcache.Invalidator { return e.invalidator }

// Snapshotter returns the snapshot persistence layer.
func (e *Engine) Snapshotter() *toolcache.Snapshotter { return e.snapshotter }

// Prefetcher returns the prefetcher.
func (e *Engine) Prefetcher() *prefetch.Prefetcher { return e.prefetcher }

// Logger returns the engine logger.
func (e *Engine) Logger() observe.Logger { return e.logger }

// Stats returns cache, prefetch and snapshot statistics.
func (e *Engine) Stats() Stats {
	return Stats{
		Cache:    e.cache.Stats(),
		HitRate:  e.cache.HitRate(),
		Prefetch: e.prefetcher.Stats(),
		Snapshot: e.snapshotter.Stats(),
	}
}

// Health checks every component.
func (e *Engine) Health(ctx context.Context) health.Report {
	return e.health.CheckAll(ctx)
}

// Reset clears cached results, cache counters and all prefetch state.
func (e *Engine) Reset() {
	e.cache.Clear()
	e.store.ResetStats()
	e.prefetcher.Clear()
}

// Close drops pending prefetches, saves the snapshot when persistence is
// enabled and shuts down an observer created by New.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		e.prefetcher.Discard()
		if e.cfg.Persistence.Enabled {
			n := e.snapshotter.Save()
			e.logger.Debug(ctx, "cache snapshot saved",
				observe.F("path", e.snapshotter.Path()), observe.F("entries", n))
		}
		var errs []error
		if e.ownsObserver {
			if err := e.observer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("engine: observer shutdown: %w", err))
			}
		}
		_ = e.logger.Sync()
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}
