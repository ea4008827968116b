package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TOOLBATCH"

// Load reads configuration from path (optional) and the environment.
// When envFiles is empty a .env file in the working directory is loaded if
// present; named envFiles must exist.
func Load(path string, envFiles ...string) (Config, error) {
	return LoadViper(viper.New(), path, envFiles...)
}

// LoadViper is Load on a caller-owned viper instance, so that command-line
// flags bound to v take part in resolution.
func LoadViper(v *viper.Viper, path string, envFiles ...string) (Config, error) {
	if err := loadDotenv(envFiles); err != nil {
		return Config{}, err
	}

	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", ErrReadConfig, path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: decode: %w", ErrReadConfig, err)
	}
	if err := cfg.expandPaths(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotenv(files []string) error {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return fmt.Errorf("%w: dotenv: %w", ErrReadConfig, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: dotenv: %w", ErrReadConfig, err)
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("cache.max_size", d.Cache.MaxSize)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.default_ttl", d.Cache.DefaultTTL)
	v.SetDefault("cache.base_dir", d.Cache.BaseDir)

	v.SetDefault("persistence.enabled", d.Persistence.Enabled)
	v.SetDefault("persistence.path", d.Persistence.Path)
	v.SetDefault("persistence.max_age", d.Persistence.MaxAge)

	v.SetDefault("prefetch.enabled", d.Prefetch.Enabled)
	v.SetDefault("prefetch.max_pending", d.Prefetch.MaxPending)
	v.SetDefault("prefetch.history_size", d.Prefetch.HistorySize)
	v.SetDefault("prefetch.history_window", d.Prefetch.HistoryWindow)
	v.SetDefault("prefetch.min_occurrences", d.Prefetch.MinOccurrences)
	v.SetDefault("prefetch.max_history_predictions", d.Prefetch.MaxHistoryPredictions)
	v.SetDefault("prefetch.max_concurrent", d.Prefetch.MaxConcurrent)
	v.SetDefault("prefetch.failure_threshold", d.Prefetch.FailureThreshold)
	v.SetDefault("prefetch.reset_timeout", d.Prefetch.ResetTimeout)
	v.SetDefault("prefetch.timeout", d.Prefetch.Timeout)

	v.SetDefault("executor.max_concurrency", d.Executor.MaxConcurrency)
	v.SetDefault("executor.call_timeout", d.Executor.CallTimeout)

	v.SetDefault("observe.service_name", d.Observe.ServiceName)
	v.SetDefault("observe.version", d.Observe.Version)
	v.SetDefault("observe.tracing.enabled", d.Observe.Tracing.Enabled)
	v.SetDefault("observe.tracing.exporter", d.Observe.Tracing.Exporter)
	v.SetDefault("observe.tracing.sample_pct", d.Observe.Tracing.SamplePct)
	v.SetDefault("observe.metrics.enabled", d.Observe.Metrics.Enabled)
	v.SetDefault("observe.metrics.exporter", d.Observe.Metrics.Exporter)
	v.SetDefault("observe.logging.enabled", d.Observe.Logging.Enabled)
	v.SetDefault("observe.logging.level", d.Observe.Logging.Level)
}
