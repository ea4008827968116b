package toolcache

import (
	"context"
	"regexp"
	"slices"
	"sync"

	"github.com/jonwraymond/toolbatch/observe"
	"github.com/jonwraymond/toolbatch/tool"
)

// writePathFields are inspected on every write tool call.
var writePathFields = []string{"file_path", "path", "source", "destination", "dir_path"}

// mutatingCommand matches shell commands that likely change the filesystem.
// This is a heuristic over raw command text, not a shell parser.
var mutatingCommand = []*regexp.Regexp{
	regexp.MustCompile(`\b(write|create|save|touch|tee)\b|>`),
	regexp.MustCompile(`\b(delete|remove|rm|rmdir)\b`),
	regexp.MustCompile(`\b(move|rename|mv)\b`),
	regexp.MustCompile(`\b(copy|cp)\b`),
	regexp.MustCompile(`\b(edit|modify)\b|\bsed\s+-i\b`),
}

// quotedPath captures single- or double-quoted substrings without whitespace
// that contain '/' or '.'.
var quotedPath = regexp.MustCompile(`'([^'\s]*[/.][^'\s]*)'|"([^"\s]*[/.][^"\s]*)"`)

// Invalidator decides which cache entries a completed call makes stale.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Every method returns the number of entries removed.
type Invalidator struct {
	cache  *Cache
	logger observe.Logger

	mu         sync.RWMutex
	pathFields map[string][]string
}

// NewInvalidator creates an Invalidator over c.
func NewInvalidator(c *Cache, logger observe.Logger) *Invalidator {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Invalidator{
		cache:      c,
		logger:     logger,
		pathFields: make(map[string][]string),
	}
}

// RegisterPathFields declares extra path-valued argument fields for a tool.
// They are invalidated in addition to the standard fields when the tool writes.
func (i *Invalidator) RegisterPathFields(toolName string, fields ...string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, f := range fields {
		if !slices.Contains(i.pathFields[toolName], f) {
			i.pathFields[toolName] = append(i.pathFields[toolName], f)
		}
	}
}

// PathFields returns the argument fields treated as paths for toolName.
func (i *Invalidator) PathFields(toolName string) []string {
	fields := slices.Clone(writePathFields)
	switch toolName {
	case "move", "copy":
		fields = append(fields, "dest")
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, f := range i.pathFields[toolName] {
		if !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	return fields
}

// OnWrite invalidates entries affected by a write tool call. Calls to other
// tools are ignored.
func (i *Invalidator) OnWrite(toolName string, args tool.Args) int {
	if !tool.WriteTools.Has(toolName) {
		return 0
	}

	removed := 0
	var paths []string
	for _, field := range i.PathFields(toolName) {
		p, ok := args.String(field)
		if !ok || slices.Contains(paths, p) {
			continue
		}
		paths = append(paths, p)
		removed += i.cache.InvalidateFile(p)
	}

	if toolName == "delete_dir" {
		for _, field := range []string{"dir_path", "path"} {
			if p, ok := args.String(field); ok {
				removed += i.cache.InvalidateDirectory(p)
			}
		}
	}

	if removed > 0 {
		i.logger.Debug(context.Background(), "invalidated cache after write",
			observe.F("tool", toolName), observe.F("paths", paths), observe.F("removed", removed))
	}
	return removed
}

// OnBash invalidates entries affected by a shell command. Explicit affected
// paths win; otherwise quoted path-like substrings of a mutating command are
// invalidated.
func (i *Invalidator) OnBash(command string, affectedPaths []string) int {
	paths := affectedPaths
	if len(paths) == 0 {
		if !IsMutatingCommand(command) {
			return 0
		}
		paths = QuotedPaths(command)
	}

	removed := 0
	for _, p := range paths {
		removed += i.cache.InvalidateFile(p)
	}
	if removed > 0 {
		i.logger.Debug(context.Background(), "invalidated cache after shell command",
			observe.F("paths", paths), observe.F("removed", removed))
	}
	return removed
}

// ShouldCacheTool reports whether a call's result may be cached.
func (i *Invalidator) ShouldCacheTool(toolName string, args tool.Args) bool {
	return tool.CacheableTools.Has(toolName) && !args.Bool("no_cache")
}

// IsMutatingCommand reports whether command matches a mutating-verb pattern.
func IsMutatingCommand(command string) bool {
	for _, re := range mutatingCommand {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

// QuotedPaths extracts quoted substrings containing '/' or '.'.
func QuotedPaths(command string) []string {
	var out []string
	for _, m := range quotedPath.FindAllStringSubmatch(command, -1) {
		p := m[1]
		if p == "" {
			p = m[2]
		}
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}
