package prefetch

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/jonwraymond/toolbatch/tool"
)

// Rule predicts a follow-up call after Trigger completes.
//
// Map must be pure: it derives the target arguments from the trigger
// arguments and reports false when no prediction applies.
type Rule struct {
	Trigger  string
	Target   string
	When     func(tool.Args) bool
	Map      func(tool.Args) (tool.Args, bool)
	Priority int
}

// apply reports whether the rule fires for args and returns the target args.
func (r Rule) apply(args tool.Args) (tool.Args, bool) {
	if r.When != nil && !r.When(args) {
		return nil, false
	}
	if r.Map == nil {
		return tool.Args{}, true
	}
	return r.Map(args)
}

// DefaultRules returns the built-in rule set.
func DefaultRules() []Rule {
	var rules []Rule
	for _, trigger := range []string{"read", "read_file"} {
		rules = append(rules,
			Rule{Trigger: trigger, Target: "file_info", Map: sameFile, Priority: 2},
			Rule{Trigger: trigger, Target: "list_dir", Map: parentDir, Priority: 1},
		)
	}
	for _, trigger := range []string{"list_dir", "list_directory"} {
		rules = append(rules, Rule{Trigger: trigger, Target: "glob", Map: dirGlob, Priority: 1})
	}
	rules = append(rules,
		Rule{Trigger: "git_status", Target: "git_diff", Map: noArgs, Priority: 2},
		Rule{Trigger: "git_status", Target: "git_log", When: unscopedStatus, Map: noArgs, Priority: 1},
		Rule{Trigger: "git_diff", Target: "git_status", Map: noArgs, Priority: 1},
	)
	for _, trigger := range []string{"edit_file", "write_file"} {
		rules = append(rules, Rule{Trigger: trigger, Target: "read_file", Map: sameFile, Priority: 1})
	}
	return rules
}

func filePath(args tool.Args) (string, bool) {
	if p, ok := args.String("file_path"); ok {
		return p, true
	}
	return args.String("path")
}

func sameFile(args tool.Args) (tool.Args, bool) {
	p, ok := filePath(args)
	if !ok {
		return nil, false
	}
	return tool.Args{"file_path": p}, true
}

func parentDir(args tool.Args) (tool.Args, bool) {
	p, ok := filePath(args)
	if !ok {
		return nil, false
	}
	return tool.Args{"dir_path": filepath.Dir(p)}, true
}

func dirGlob(args tool.Args) (tool.Args, bool) {
	dir, ok := args.String("dir_path")
	if !ok {
		if dir, ok = args.String("path"); !ok {
			return nil, false
		}
	}
	return tool.Args{"pattern": strings.TrimSuffix(dir, "/") + "/*"}, true
}

func noArgs(tool.Args) (tool.Args, bool) {
	return tool.Args{}, true
}

// unscopedStatus skips git_log for porcelain status calls limited to a path.
func unscopedStatus(args tool.Args) bool {
	_, scoped := args.String("path")
	return !(args.Bool("porcelain") && scoped)
}

// sortRules orders rules by descending priority, keeping registration order
// among equals.
func sortRules(rules []Rule) {
	slices.SortStableFunc(rules, func(a, b Rule) int {
		return b.Priority - a.Priority
	})
}
