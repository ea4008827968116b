package prefetch

import (
	"time"

	"github.com/jonwraymond/toolbatch/tool"
)

// DefaultPrefetchable lists read-only tools that may run speculatively.
var DefaultPrefetchable = tool.NewSet(
	"read", "read_file", "file_info",
	"list_dir", "list_directory", "glob", "grep",
	"git_status", "git_diff", "git_log",
)

// Config configures a Prefetcher.
type Config struct {
	// Enabled turns prediction on. The zero value leaves it off;
	// DefaultConfig sets it to true.
	Enabled bool

	// MaxPending caps the number of unclaimed tasks.
	// Default: 10
	MaxPending int

	// HistorySize is the capacity of the observed-call ring.
	// Default: 50
	HistorySize int

	// HistoryWindow bounds how far back history prediction looks.
	// Default: 5 minutes
	HistoryWindow time.Duration

	// MinOccurrences is how often a call must repeat to be predicted.
	// Default: 2
	MinOccurrences int

	// MaxHistoryPredictions caps history-based launches per Predict. Zero
	// disables history prediction; DefaultConfig sets 5.
	MaxHistoryPredictions int

	// MaxConcurrent caps in-flight background executions.
	// Default: 4
	MaxConcurrent int

	// FailureThreshold is the number of consecutive failures after which a
	// target tool stops being prefetched until ResetTimeout passes.
	// Default: 3
	FailureThreshold int

	// ResetTimeout is how long a failing target is skipped.
	// Default: 1 minute
	ResetTimeout time.Duration

	// Timeout bounds a single background execution.
	// Default: 30 seconds
	Timeout time.Duration

	// Prefetchable restricts which target tools may run speculatively.
	// Default: DefaultPrefetchable
	Prefetchable tool.Set

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// DefaultConfig returns the default prefetch configuration.
func DefaultConfig() Config {
	return Config{
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
		Prefetchable:          DefaultPrefetchable,
		Now:                   time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxPending <= 0 {
		c.MaxPending = d.MaxPending
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = d.HistoryWindow
	}
	if c.MinOccurrences <= 0 {
		c.MinOccurrences = d.MinOccurrences
	}
	if c.MaxHistoryPredictions < 0 {
		c.MaxHistoryPredictions = 0
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = d.ResetTimeout
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Prefetchable == nil {
		c.Prefetchable = d.Prefetchable
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}
