package tool

import (
	"context"
	"fmt"
	"strings"
)

// Args holds the decoded JSON object arguments of a tool call.
type Args map[string]any

// String returns the value of key when it is a non-empty string.
func (a Args) String(key string) (string, bool) {
	if a == nil {
		return "", false
	}
	s, ok := a[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Bool returns the value of key when it is a boolean.
func (a Args) Bool(key string) bool {
	if a == nil {
		return false
	}
	b, ok := a[key].(bool)
	return ok && b
}

// Strings returns the string elements of a list-valued key.
func (a Args) Strings(key string) []string {
	if a == nil {
		return nil
	}
	switch v := a[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Result is the outcome of a single tool execution.
type Result struct {
	Success  bool           `json:"success"`
	Output   string         `json:"output"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Failure builds a failed result with a human readable message.
func Failure(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Context is forwarded untouched to the executor. Cancellation travels in
// the context.Context passed alongside it.
type Context struct {
	SessionID string
	WorkDir   string
	Values    map[string]any
}

// Executor runs one tool call.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return ctx.Err() when canceled.
// - Errors: a returned error is converted into a failed Result by callers;
// Result.Success=false is an ordinary, non-exceptional outcome.
type Executor interface {
	Execute(ctx context.Context, name string, args Args, tc *Context) (Result, error)
}

// ExecutorFunc adapts an ordinary function to the Executor interface.
type ExecutorFunc func(ctx context.Context, name string, args Args, tc *Context) (Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, name string, args Args, tc *Context) (Result, error) {
	return f(ctx, name, args, tc)
}

// ValidName reports whether name can head a cache key. Names must be
// non-empty and must not contain ':' since persisted keys are split on the
// first colon. Line breaks are rejected too.
func ValidName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if strings.Contains(name, ":") {
		return fmt.Errorf("%w: %q", ErrNameHasColon, name)
	}
	if strings.ContainsAny(name, "\n\r") {
		return fmt.Errorf("%w: %q", ErrNameHasNewline, name)
	}
	return nil
}
