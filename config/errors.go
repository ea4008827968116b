package config

import "errors"

var (
	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrReadConfig indicates the config file could not be read or parsed.
	ErrReadConfig = errors.New("config: read failed")
)
