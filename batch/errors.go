package batch

import "errors"

// Sentinel errors for call handling.
var (
	ErrInvalidArguments = errors.New("batch: arguments must be a JSON object")
	ErrCancelled        = errors.New("batch: call cancelled")
	ErrNoExecutor       = errors.New("batch: no executor configured")
)
