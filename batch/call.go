package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolbatch/tool"
)

// Call is one tool invocation requested by the model.
type Call struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object; empty means {}
}

// Source identifies what produced a call's result.
type Source string

const (
	SourceExecutor   Source = "executor"
	SourceCache      Source = "cache"
	SourcePrefetch   Source = "prefetch"
	SourceParseError Source = "parse_error"
	SourceCancelled  Source = "cancelled"
)

// CallResult is the outcome of one call.
type CallResult struct {
	Call     Call          `json:"call"`
	Args     tool.Args     `json:"-"`
	Class    Class         `json:"class,omitempty"`
	Result   tool.Result   `json:"result"`
	Source   Source        `json:"source"`
	Duration time.Duration `json:"duration"`
}

// ParseArguments decodes a call's raw JSON arguments. Empty input and JSON
// null decode to an empty Args.
func ParseArguments(raw string) (tool.Args, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 {
		return tool.Args{}, nil
	}
	var args tool.Args
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if args == nil {
		args = tool.Args{}
	}
	return args, nil
}

// ensureIDs assigns a random ID to every call that lacks one.
func ensureIDs(calls []Call) []Call {
	out := make([]Call, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = "call_" + uuid.NewString()
		}
		out[i] = c
	}
	return out
}
