// Package localtools implements a small set of file tools on an afero
// filesystem. The toolbatch CLI uses it to run batches without an agent
// attached.
package localtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/jonwraymond/toolbatch/tool"
)

// ErrUnknownTool is returned for tool names this executor does not implement.
var ErrUnknownTool = errors.New("localtools: unknown tool")

// Executor runs file tools against an afero filesystem.
type Executor struct {
	fs      afero.Fs
	baseDir string
}

var _ tool.Executor = (*Executor)(nil)

// New creates an Executor. Relative paths resolve against tc.WorkDir when
// set, else baseDir.
func New(fsys afero.Fs, baseDir string) *Executor {
	return &Executor{fs: fsys, baseDir: baseDir}
}

// Execute implements tool.Executor. Filesystem problems are reported as
// failed results; only unknown tools and cancellation return errors.
func (e *Executor) Execute(ctx context.Context, name string, args tool.Args, tc *tool.Context) (tool.Result, error) {
	if err := ctx.Err(); err != nil {
		return tool.Result{}, err
	}
	base := e.baseDir
	if tc != nil && tc.WorkDir != "" {
		base = tc.WorkDir
	}

	switch name {
	case "read_file":
		return e.readFile(args, base), nil
	case "file_info":
		return e.fileInfo(args, base), nil
	case "list_dir", "list_directory":
		return e.listDir(args, base), nil
	case "glob":
		return e.glob(args, base), nil
	case "write_file":
		return e.writeFile(args, base), nil
	case "delete_file":
		return e.deleteFile(args, base), nil
	}
	return tool.Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) || base == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

func pathArg(args tool.Args, base string, keys ...string) (string, bool) {
	for _, k := range keys {
		if p, ok := args.String(k); ok && p != "" {
			return resolve(base, p), true
		}
	}
	return "", false
}

func (e *Executor) readFile(args tool.Args, base string) tool.Result {
	p, ok := pathArg(args, base, "file_path", "path")
	if !ok {
		return tool.Failure("read_file: file_path is required")
	}
	data, err := afero.ReadFile(e.fs, p)
	if err != nil {
		return tool.Failure("read_file: %v", err)
	}

	offset, hasOffset := intArg(args, "offset")
	limit, hasLimit := intArg(args, "limit")
	if !hasOffset && !hasLimit {
		return tool.Result{Success: true, Output: string(data)}
	}
	lines := strings.SplitAfter(string(data), "\n")
	start := min(max(offset, 0), len(lines))
	end := len(lines)
	if hasLimit && limit >= 0 {
		end = min(start+limit, len(lines))
	}
	return tool.Result{
		Success:  true,
		Output:   strings.Join(lines[start:end], ""),
		Metadata: map[string]any{"total_lines": len(lines)},
	}
}

type fileInfo struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	Mode    string    `json:"mode"`
	ModTime time.Time `json:"mod_time"`
	IsDir   bool      `json:"is_dir"`
}

func (e *Executor) fileInfo(args tool.Args, base string) tool.Result {
	p, ok := pathArg(args, base, "file_path", "path")
	if !ok {
		return tool.Failure("file_info: file_path is required")
	}
	info, err := e.fs.Stat(p)
	if err != nil {
		return tool.Failure("file_info: %v", err)
	}
	out, err := json.Marshal(fileInfo{
		Path:    p,
		Size:    info.Size(),
		Mode:    info.Mode().String(),
		ModTime: info.ModTime().UTC(),
		IsDir:   info.IsDir(),
	})
	if err != nil {
		return tool.Failure("file_info: %v", err)
	}
	return tool.Result{Success: true, Output: string(out)}
}

func (e *Executor) listDir(args tool.Args, base string) tool.Result {
	p, ok := pathArg(args, base, "dir_path", "path")
	if !ok {
		p = resolve(base, ".")
	}
	entries, err := afero.ReadDir(e.fs, p)
	if err != nil {
		return tool.Failure("list_dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return tool.Result{
		Success:  true,
		Output:   strings.Join(names, "\n"),
		Metadata: map[string]any{"count": len(names)},
	}
}

func (e *Executor) glob(args tool.Args, base string) tool.Result {
	pattern, ok := args.String("pattern")
	if !ok || pattern == "" {
		return tool.Failure("glob: pattern is required")
	}
	dir, ok := pathArg(args, base, "path", "dir_path")
	if !ok {
		dir = base
	}
	matches, err := afero.Glob(e.fs, resolve(dir, pattern))
	if err != nil {
		return tool.Failure("glob: %v", err)
	}
	slices.Sort(matches)
	return tool.Result{
		Success:  true,
		Output:   strings.Join(matches, "\n"),
		Metadata: map[string]any{"count": len(matches)},
	}
}

func (e *Executor) writeFile(args tool.Args, base string) tool.Result {
	p, ok := pathArg(args, base, "file_path", "path")
	if !ok {
		return tool.Failure("write_file: file_path is required")
	}
	content, _ := args.String("content")
	if err := e.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return tool.Failure("write_file: %v", err)
	}
	if err := afero.WriteFile(e.fs, p, []byte(content), 0o644); err != nil {
		return tool.Failure("write_file: %v", err)
	}
	return tool.Result{Success: true, Output: fmt.Sprintf("wrote %d bytes to %s", len(content), p)}
}

func (e *Executor) deleteFile(args tool.Args, base string) tool.Result {
	p, ok := pathArg(args, base, "file_path", "path")
	if !ok {
		return tool.Failure("delete_file: file_path is required")
	}
	if err := e.fs.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return tool.Failure("delete_file: %s does not exist", p)
		}
		return tool.Failure("delete_file: %v", err)
	}
	return tool.Result{Success: true, Output: "deleted " + p}
}

// intArg accepts JSON numbers, which decode as float64.
func intArg(args tool.Args, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}
