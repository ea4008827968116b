package cache

import "time"

// Default budgets.
const (
	DefaultMaxSize    int64 = 50 * 1024 * 1024
	DefaultMaxEntries       = 1000
	DefaultTTL              = 5 * time.Minute

	// fallbackEntrySize is charged for values that cannot be serialized.
	fallbackEntrySize int64 = 1024
)

// Config configures a Store.
type Config struct {
	// MaxSize is the byte budget for estimated entry sizes.
	// Default: 50 MiB
	MaxSize int64

	// MaxEntries is the maximum number of resident entries.
	// Default: 1000
	MaxEntries int

	// DefaultTTL applies to entries stored without a TTL override.
	// Default: 5 minutes
	DefaultTTL time.Duration

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// DefaultConfig returns the default store budgets.
func DefaultConfig() Config {
	return Config{
		MaxSize:    DefaultMaxSize,
		MaxEntries: DefaultMaxEntries,
		DefaultTTL: DefaultTTL,
		Now:        time.Now,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// EffectiveTTL returns override when positive, else the default TTL.
func (c Config) EffectiveTTL(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return c.DefaultTTL
}
