package prefetch

import (
	"context"
	"time"

	"github.com/jonwraymond/toolbatch/tool"
)

// Task is a background execution of a predicted call.
type Task struct {
	Tool    string
	Args    tool.Args
	Key     string
	Origin  string // "rule" or "history"
	Started time.Time

	// Mtime is the file modification time observed before execution
	// started. Zero for calls that read no file.
	Mtime time.Time

	done   chan struct{}
	result *tool.Result
}

func newTask(name string, args tool.Args, key, origin string, started time.Time) *Task {
	return &Task{
		Tool:    name,
		Args:    args,
		Key:     key,
		Origin:  origin,
		Started: started,
		done:    make(chan struct{}),
	}
}

// Wait blocks until the task finishes or ctx is done. It returns nil when the
// execution failed or ctx ended first.
func (t *Task) Wait(ctx context.Context) *tool.Result {
	select {
	case <-t.done:
		return t.result
	case <-ctx.Done():
		return nil
	}
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) finish(res *tool.Result) {
	t.result = res
	close(t.done)
}
