package config

import (
	"fmt"
	"time"

	"github.com/jonwraymond/toolbatch/observe"
)

// Config is the complete toolbatch configuration.
type Config struct {
	Cache       CacheConfig       `mapstructure:"cache"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Prefetch    PrefetchConfig    `mapstructure:"prefetch"`
	Executor    ExecutorConfig    `mapstructure:"executor"`
	Observe     observe.Config    `mapstructure:"observe"`
}

// CacheConfig configures the tool result cache.
type CacheConfig struct {
	// MaxSize is the byte budget of the cache.
	// Default: 50 MiB
	MaxSize int64 `mapstructure:"max_size"`

	// MaxEntries caps resident entries.
	// Default: 1000
	MaxEntries int `mapstructure:"max_entries"`

	// DefaultTTL applies to entries without their own TTL.
	// Default: 5 minutes
	DefaultTTL time.Duration `mapstructure:"default_ttl"`

	// BaseDir resolves relative path arguments. Empty means the working
	// directory.
	BaseDir string `mapstructure:"base_dir"`
}

// PersistenceConfig configures the on-disk cache snapshot.
type PersistenceConfig struct {
	// Enabled loads the snapshot on start and saves it on close.
	// Default: true
	Enabled bool `mapstructure:"enabled"`

	// Path of the snapshot file. Empty means $HOME/.toolbatch/tool-cache.json.
	Path string `mapstructure:"path"`

	// MaxAge discards snapshots older than this.
	// Default: 24 hours
	MaxAge time.Duration `mapstructure:"max_age"`
}

// PrefetchConfig configures speculative execution.
type PrefetchConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	MaxPending            int           `mapstructure:"max_pending"`
	HistorySize           int           `mapstructure:"history_size"`
	HistoryWindow         time.Duration `mapstructure:"history_window"`
	MinOccurrences        int           `mapstructure:"min_occurrences"`
	MaxHistoryPredictions int           `mapstructure:"max_history_predictions"`
	MaxConcurrent         int           `mapstructure:"max_concurrent"`
	FailureThreshold      int           `mapstructure:"failure_threshold"`
	ResetTimeout          time.Duration `mapstructure:"reset_timeout"`
	Timeout               time.Duration `mapstructure:"timeout"`
}

// ExecutorConfig configures batch execution.
type ExecutorConfig struct {
	// MaxConcurrency bounds in-flight parallel calls.
	// Default: 5
	MaxConcurrency int `mapstructure:"max_concurrency"`

	// CallTimeout bounds a single tool call. Zero disables the timeout.
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			MaxSize:    50 * 1024 * 1024,
			MaxEntries: 1000,
			DefaultTTL: 5 * time.Minute,
		},
		Persistence: PersistenceConfig{
			Enabled: true,
			MaxAge:  24 * time.Hour,
		},
		Prefetch: PrefetchConfig{
			Enabled:               true,
			MaxPending:            10,
			HistorySize:           50,
			HistoryWindow:         5 * time.Minute,
			MinOccurrences:        2,
			MaxHistoryPredictions: 5,
			MaxConcurrent:         4,
			FailureThreshold:      3,
			ResetTimeout:          time.Minute,
			Timeout:               30 * time.Second,
		},
		Executor: ExecutorConfig{
			MaxConcurrency: 5,
		},
		Observe: observe.Config{
			ServiceName: "toolbatch",
			Tracing:     observe.TracingConfig{Exporter: "none", SamplePct: 1.0},
			Metrics:     observe.MetricsConfig{Exporter: "none"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	switch {
	case c.Cache.MaxSize <= 0:
		return fmt.Errorf("%w: cache.max_size must be positive", ErrInvalidConfig)
	case c.Cache.MaxEntries <= 0:
		return fmt.Errorf("%w: cache.max_entries must be positive", ErrInvalidConfig)
	case c.Cache.DefaultTTL <= 0:
		return fmt.Errorf("%w: cache.default_ttl must be positive", ErrInvalidConfig)
	case c.Persistence.MaxAge < 0:
		return fmt.Errorf("%w: persistence.max_age must not be negative", ErrInvalidConfig)
	case c.Executor.MaxConcurrency <= 0:
		return fmt.Errorf("%w: executor.max_concurrency must be positive", ErrInvalidConfig)
	case c.Executor.CallTimeout < 0:
		return fmt.Errorf("%w: executor.call_timeout must not be negative", ErrInvalidConfig)
	}
	if err := c.Prefetch.validate(); err != nil {
		return err
	}
	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("%w: observe: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (p PrefetchConfig) validate() error {
	if !p.Enabled {
		return nil
	}
	switch {
	case p.MaxPending <= 0:
		return fmt.Errorf("%w: prefetch.max_pending must be positive", ErrInvalidConfig)
	case p.MaxConcurrent <= 0:
		return fmt.Errorf("%w: prefetch.max_concurrent must be positive", ErrInvalidConfig)
	case p.HistorySize < 0, p.MaxHistoryPredictions < 0:
		return fmt.Errorf("%w: prefetch history limits must not be negative", ErrInvalidConfig)
	case p.Timeout < 0:
		return fmt.Errorf("%w: prefetch.timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ObservabilityEnabled reports whether any telemetry subsystem is switched on.
func (c *Config) ObservabilityEnabled() bool {
	o := c.Observe
	return o.Tracing.Enabled || o.Metrics.Enabled || o.Logging.Enabled
}
