package health

import "errors"

var (
	// ErrCheckFailed indicates a checker panicked.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout indicates a health check did not finish in time.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates a checker was not found.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrNotWritable indicates the snapshot directory rejects writes.
	ErrNotWritable = errors.New("health: snapshot directory not writable")
)
