package tool

// Set is an immutable-by-convention set of tool names.
type Set map[string]struct{}

// NewSet builds a Set from names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Union returns a new set holding the members of s and other.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for n := range s {
		out[n] = struct{}{}
	}
	for n := range other {
		out[n] = struct{}{}
	}
	return out
}

// Well-known tool name sets.
var (
	// FileTools read from the filesystem and are checked for staleness by mtime.
	FileTools = NewSet("read", "read_file", "read_image", "read_pdf", "file_info", "list_dir", "list_directory")

	// WebTools hit the network; their results get a short default TTL.
	WebTools = NewSet("web_fetch", "webfetch", "web_search", "code_search")

	// WriteTools mutate the filesystem and trigger cache invalidation.
	WriteTools = NewSet("write", "write_file", "edit", "edit_file", "delete_file", "delete_dir", "create_dir", "move", "copy")

	// ShellTools run arbitrary commands; invalidation falls back to a heuristic.
	ShellTools = NewSet("bash", "shell", "run_command")

	// CacheableTools are read-only and safe to answer from cache.
	CacheableTools = NewSet(
		"read", "read_file", "read_image", "read_pdf",
		"glob", "grep", "grep_search",
		"file_info", "list_dir", "list_directory",
		"web_fetch", "webfetch", "web_search", "code_search",
		"git_status", "git_log", "git_diff",
	)
)
