package batch

import "github.com/jonwraymond/toolbatch/tool"

// Class is the scheduling class of a call.
type Class string

const (
	ClassParallel    Class = "parallel"
	ClassSequential  Class = "sequential"
	ClassInteractive Class = "interactive"
)

// Default tool sets for classification.
var (
	DefaultParallelTools = tool.CacheableTools

	DefaultSequentialTools = tool.WriteTools.Union(tool.ShellTools).Union(tool.NewSet(
		"git_add", "git_commit", "git_checkout", "git_stash", "todo_write",
	))

	DefaultInteractiveTools = tool.NewSet(
		"ask_user", "ask_question", "confirm", "request_permission",
	)
)

// Classifier assigns a Class by static tool-name membership.
type Classifier struct {
	Parallel    tool.Set
	Sequential  tool.Set
	Interactive tool.Set
}

// DefaultClassifier returns a classifier over the default tool sets.
func DefaultClassifier() Classifier {
	return Classifier{
		Parallel:    DefaultParallelTools,
		Sequential:  DefaultSequentialTools,
		Interactive: DefaultInteractiveTools,
	}
}

// Classification holds call indices per class, each in input order.
type Classification struct {
	Parallel    []int
	Sequential  []int
	Interactive []int
}

// Len returns the number of classified calls.
func (c Classification) Len() int {
	return len(c.Parallel) + len(c.Sequential) + len(c.Interactive)
}

// ClassOf returns the class of toolName. A name present in several sets takes
// the most restrictive class; unknown names are sequential.
func (c Classifier) ClassOf(toolName string) Class {
	switch {
	case c.Interactive.Has(toolName):
		return ClassInteractive
	case c.Sequential.Has(toolName):
		return ClassSequential
	case c.Parallel.Has(toolName):
		return ClassParallel
	default:
		return ClassSequential
	}
}

// Classify partitions calls into disjoint classes.
func (c Classifier) Classify(calls []Call) Classification {
	var out Classification
	for i, call := range calls {
		switch c.ClassOf(call.Name) {
		case ClassParallel:
			out.Parallel = append(out.Parallel, i)
		case ClassInteractive:
			out.Interactive = append(out.Interactive, i)
		default:
			out.Sequential = append(out.Sequential, i)
		}
	}
	return out
}

// CanRunInParallel reports whether every call is parallel-safe.
func (c Classifier) CanRunInParallel(calls []Call) bool {
	cls := c.Classify(calls)
	return len(cls.Sequential) == 0 && len(cls.Interactive) == 0
}

// ParallelizableCount returns the number of parallel-safe calls.
func (c Classifier) ParallelizableCount(calls []Call) int {
	return len(c.Classify(calls).Parallel)
}

// SequentialCount returns the number of sequential calls.
func (c Classifier) SequentialCount(calls []Call) int {
	return len(c.Classify(calls).Sequential)
}

// InteractiveCount returns the number of interactive calls.
func (c Classifier) InteractiveCount(calls []Call) int {
	return len(c.Classify(calls).Interactive)
}
