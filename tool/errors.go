package tool

import "errors"

// Sentinel errors for tool names.
var (
	ErrEmptyName      = errors.New("tool: name is empty")
	ErrNameHasColon   = errors.New("tool: name contains ':'")
	ErrNameHasNewline = errors.New("tool: name contains a line break")
)
