package health

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/jonwraymond/toolbatch/cache"
	"github.com/jonwraymond/toolbatch/prefetch"
)

// CacheSource is implemented by *cache.Store.
type CacheSource interface {
	Stats() cache.Stats
	Config() cache.Config
}

// CacheCheckerConfig configures a CacheChecker.
type CacheCheckerConfig struct {
	// SizeThreshold is the fraction of the byte budget at which the cache
	// is reported degraded.
	// Default: 0.9
	SizeThreshold float64

	// EvictionRatio is the evictions-per-lookup ratio at which the cache is
	// reported degraded.
	// Default: 0.5
	EvictionRatio float64

	// MinLookups is how many lookups must happen before EvictionRatio applies.
	// Default: 100
	MinLookups int64
}

// CacheChecker reports budget and eviction pressure of a result cache.
type CacheChecker struct {
	src CacheSource
	cfg CacheCheckerConfig
}

// NewCacheChecker creates a CacheChecker; zero config fields take defaults.
func NewCacheChecker(src CacheSource, cfg CacheCheckerConfig) *CacheChecker {
	if cfg.SizeThreshold <= 0 || cfg.SizeThreshold > 1 {
		cfg.SizeThreshold = 0.9
	}
	if cfg.EvictionRatio <= 0 {
		cfg.EvictionRatio = 0.5
	}
	if cfg.MinLookups <= 0 {
		cfg.MinLookups = 100
	}
	return &CacheChecker{src: src, cfg: cfg}
}

// Name returns "cache".
func (c *CacheChecker) Name() string { return "cache" }

// Check inspects current statistics.
func (c *CacheChecker) Check(_ context.Context) Result {
	stats := c.src.Stats()
	budget := c.src.Config().MaxSize

	lookups := stats.Hits + stats.Misses
	var hitRate, evictionRatio, usage float64
	if lookups > 0 {
		hitRate = float64(stats.Hits) / float64(lookups)
		evictionRatio = float64(stats.Evictions) / float64(lookups)
	}
	if budget > 0 {
		usage = float64(stats.Size) / float64(budget)
	}

	details := map[string]any{
		"entries":        stats.EntryCount,
		"size_bytes":     stats.Size,
		"budget_bytes":   budget,
		"usage":          usage,
		"hit_rate":       hitRate,
		"evictions":      stats.Evictions,
		"eviction_ratio": evictionRatio,
	}

	switch {
	case usage >= c.cfg.SizeThreshold:
		return Degraded(fmt.Sprintf("cache at %.0f%% of byte budget", usage*100)).WithDetails(details)
	case lookups >= c.cfg.MinLookups && evictionRatio >= c.cfg.EvictionRatio:
		return Degraded(fmt.Sprintf("high eviction pressure: %.2f evictions per lookup", evictionRatio)).WithDetails(details)
	}
	return Healthy("cache operational").WithDetails(details)
}

// PrefetchSource is implemented by *prefetch.Prefetcher.
type PrefetchSource interface {
	Stats() prefetch.Stats
}

// PrefetchChecker reports whether speculative execution is running.
type PrefetchChecker struct {
	src PrefetchSource
}

// NewPrefetchChecker creates a PrefetchChecker.
func NewPrefetchChecker(src PrefetchSource) *PrefetchChecker {
	return &PrefetchChecker{src: src}
}

// Name returns "prefetch".
func (c *PrefetchChecker) Name() string { return "prefetch" }

// Check reports degraded when prefetching is disabled or the pending queue
// is full.
func (c *PrefetchChecker) Check(_ context.Context) Result {
	stats := c.src.Stats()
	details := map[string]any{
		"enabled":     stats.Enabled,
		"pending":     stats.Pending,
		"max_pending": stats.MaxPending,
		"launched":    stats.Launched,
		"claimed":     stats.Claimed,
		"failed":      stats.Failed,
	}
	if len(stats.OpenCircuits) > 0 {
		details["open_circuits"] = stats.OpenCircuits
	}

	switch {
	case !stats.Enabled:
		return Degraded("prefetching disabled").WithDetails(details)
	case stats.MaxPending > 0 && stats.Pending >= stats.MaxPending:
		return Degraded(fmt.Sprintf("pending queue full (%d)", stats.Pending)).WithDetails(details)
	}
	return Healthy("prefetcher running").WithDetails(details)
}

// PersistenceChecker verifies the snapshot directory accepts writes.
type PersistenceChecker struct {
	fs   afero.Fs
	path string
}

// NewPersistenceChecker creates a checker for the snapshot file at path.
func NewPersistenceChecker(fs afero.Fs, path string) *PersistenceChecker {
	return &PersistenceChecker{fs: fs, path: path}
}

// Name returns "persistence".
func (c *PersistenceChecker) Name() string { return "persistence" }

// Check creates and removes a probe file next to the snapshot.
func (c *PersistenceChecker) Check(_ context.Context) Result {
	dir := filepath.Dir(c.path)
	details := map[string]any{"path": c.path}

	if info, err := c.fs.Stat(c.path); err == nil {
		details["snapshot_bytes"] = info.Size()
		details["snapshot_modified"] = info.ModTime()
	}

	if err := c.probe(dir); err != nil {
		return Unhealthy(fmt.Sprintf("cannot write to %s", dir), fmt.Errorf("%w: %w", ErrNotWritable, err)).
			WithDetails(details)
	}
	return Healthy("snapshot directory writable").WithDetails(details)
}

func (c *PersistenceChecker) probe(dir string) error {
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := afero.TempFile(c.fs, dir, ".health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = c.fs.Remove(name)
		return err
	}
	return c.fs.Remove(name)
}
