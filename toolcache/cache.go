package toolcache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/jonwraymond/toolbatch/cache"
	"github.com/jonwraymond/toolbatch/observe"
	"github.com/jonwraymond/toolbatch/tool"
)

// WebTTL is applied to web tool results stored without an explicit TTL.
const WebTTL = 60 * time.Second

// pathArgKeys are checked in order when resolving the file a file tool reads.
var pathArgKeys = []string{"file_path", "path", "dir_path"}

// listingPrefixes name tools whose output depends on directory contents.
var listingPrefixes = []string{"glob:", "list_dir:", "list_directory:"}

// Options configures a Cache.
type Options struct {
	// Fs is used to stat files. Default: afero.NewOsFs()
	Fs afero.Fs

	// BaseDir resolves relative path arguments. Empty means the process
	// working directory.
	BaseDir string

	// Logger receives debug output about skipped or stale entries.
	Logger observe.Logger
}

// Cache is a tool result cache.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Only successful results are stored.
//   - File tool entries are stale when the file can no longer be stat'd, when
//     its modification time moved forward, or when no mtime was recorded.
type Cache struct {
	store   *cache.Store[tool.Result]
	fs      afero.Fs
	baseDir string
	logger  observe.Logger
}

// New creates a Cache over store.
func New(store *cache.Store[tool.Result], opts Options) *Cache {
	if store == nil {
		store = cache.NewStore[tool.Result](cache.DefaultConfig())
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}
	return &Cache{
		store:   store,
		fs:      opts.Fs,
		baseDir: opts.BaseDir,
		logger:  opts.Logger,
	}
}

// Store returns the underlying store.
func (c *Cache) Store() *cache.Store[tool.Result] {
	return c.store
}

// Fs returns the filesystem used for stat calls.
func (c *Cache) Fs() afero.Fs {
	return c.fs
}

// Now returns the store clock reading.
func (c *Cache) Now() time.Time {
	return c.store.Config().Now()
}

// Get returns a cached result for (toolName, args).
func (c *Cache) Get(toolName string, args tool.Args) (tool.Result, bool) {
	key, err := cache.Key(toolName, args)
	if err != nil {
		return tool.Result{}, false
	}

	if tool.FileTools.Has(toolName) {
		if e, ok := c.store.PeekKey(key); ok && c.isStale(toolName, args, e) {
			c.store.DeleteKey(key)
		}
	}

	e, ok := c.store.LookupKey(key)
	if !ok {
		return tool.Result{}, false
	}
	return e.Value, true
}

// Has reports whether a live entry exists without recording a hit or miss.
// File tool entries are checked for staleness.
func (c *Cache) Has(toolName string, args tool.Args) bool {
	key, err := cache.Key(toolName, args)
	if err != nil {
		return false
	}
	e, ok := c.store.PeekKey(key)
	if !ok {
		return false
	}
	if tool.FileTools.Has(toolName) && c.isStale(toolName, args, e) {
		c.store.DeleteKey(key)
		return false
	}
	return true
}

func (c *Cache) isStale(toolName string, args tool.Args, e cache.Entry[tool.Result]) bool {
	p, ok := c.pathArg(args)
	if !ok {
		return false
	}
	if e.Mtime.IsZero() {
		return true
	}
	fi, err := c.fs.Stat(p)
	if err != nil {
		c.logger.Debug(context.Background(), "cached file no longer statable",
			observe.F("tool", toolName), observe.F("path", p), observe.F("error", err.Error()))
		return true
	}
	// Snapshots store mtimes in milliseconds.
	return fi.ModTime().UnixMilli() > e.Mtime.UnixMilli()
}

// Set stores a result. Failed results are ignored. File tools record the
// current mtime of their path unless opts carries one; when the file cannot be
// stat'd nothing is stored. Callers that read the file earlier should pass the
// mtime observed before the read so a later change is detected. Web tools
// default to WebTTL.
func (c *Cache) Set(toolName string, args tool.Args, result tool.Result, opts cache.SetOptions) error {
	if !result.Success {
		return nil
	}

	if opts.Mtime.IsZero() {
		mtime, tracked, err := c.FileMtime(toolName, args)
		if tracked && err != nil {
			c.logger.Debug(context.Background(), "skipping cache set, stat failed",
				observe.F("tool", toolName), observe.F("error", err.Error()))
			return nil
		}
		opts.Mtime = mtime
	}

	if tool.WebTools.Has(toolName) && opts.TTL <= 0 {
		opts.TTL = WebTTL
	}

	if err := c.store.Set(toolName, args, result, opts); err != nil {
		return fmt.Errorf("toolcache: set %s: %w", toolName, err)
	}
	return nil
}

// FileMtime stats the file a file tool call reads. tracked is false for other
// tools and for calls without a path argument.
func (c *Cache) FileMtime(toolName string, args tool.Args) (mtime time.Time, tracked bool, err error) {
	if !tool.FileTools.Has(toolName) {
		return time.Time{}, false, nil
	}
	p, ok := c.pathArg(args)
	if !ok {
		return time.Time{}, false, nil
	}
	fi, err := c.fs.Stat(p)
	if err != nil {
		return time.Time{}, true, err
	}
	return fi.ModTime(), true, nil
}

// InvalidateFile removes entries referencing path or its parent directory,
// plus glob entries whose pattern or path and grep entries whose path lie
// under the parent.
// Both the raw and the absolute form of path are matched.
func (c *Cache) InvalidateFile(path string) int {
	if path == "" {
		return 0
	}
	var alts []string
	for _, p := range c.pathForms(path) {
		dir := filepath.Dir(p)
		alts = append(alts, regexp.QuoteMeta(jsonString(p)))
		alts = append(alts, regexp.QuoteMeta(jsonString(dir)))
		under := strings.TrimSuffix(strings.TrimSuffix(jsonString(dir), `"`), "/")
		alts = append(alts,
			`^glob:.*"(?:pattern|path)":`+regexp.QuoteMeta(under)+`/[^"]*"`,
			`^grep:.*"path":`+regexp.QuoteMeta(under)+`/[^"]*"`)
	}
	return c.store.DeleteByPattern(regexp.MustCompile(strings.Join(dedupe(alts), "|")))
}

// InvalidateDirectory removes entries referencing dir or anything beneath it,
// plus every glob and directory listing entry.
func (c *Cache) InvalidateDirectory(dir string) int {
	if dir == "" {
		return 0
	}
	var alts []string
	for _, p := range c.pathForms(dir) {
		p = strings.TrimSuffix(p, "/")
		quoted := jsonString(p)
		// "dir" or "dir/anything"
		alts = append(alts, regexp.QuoteMeta(strings.TrimSuffix(quoted, `"`))+`(/[^"]*)?"`)
	}
	removed := c.store.DeleteByPattern(regexp.MustCompile(strings.Join(dedupe(alts), "|")))
	for _, prefix := range listingPrefixes {
		removed += c.store.DeleteByPrefix(prefix)
	}
	return removed
}

// InvalidatePattern removes every entry whose key matches re.
func (c *Cache) InvalidatePattern(re *regexp.Regexp) int {
	return c.store.DeleteByPattern(re)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.store.Clear()
}

// Stats returns store statistics.
func (c *Cache) Stats() cache.Stats {
	return c.store.Stats()
}

// HitRate returns the store hit rate.
func (c *Cache) HitRate() float64 {
	return c.store.HitRate()
}

// Entries returns live entries, most recently touched first.
func (c *Cache) Entries() []cache.Entry[tool.Result] {
	return c.store.Entries()
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	return c.store.Len()
}

func (c *Cache) pathArg(args tool.Args) (string, bool) {
	for _, k := range pathArgKeys {
		if p, ok := args.String(k); ok {
			return c.resolve(p), true
		}
	}
	return "", false
}

func (c *Cache) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	if c.baseDir != "" {
		return filepath.Join(c.baseDir, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func (c *Cache) pathForms(p string) []string {
	abs := c.resolve(p)
	if abs == p {
		return []string{p}
	}
	return []string{p, abs}
}

func jsonString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
