package cache

import "errors"

// Sentinel errors for cache operations.
var (
	ErrInvalidKey    = errors.New("cache: key is invalid")
	ErrEntryTooLarge = errors.New("cache: entry exceeds max size")
)
