package toolcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/jonwraymond/toolbatch/cache"
	"github.com/jonwraymond/toolbatch/observe"
	"github.com/jonwraymond/toolbatch/tool"
)

// Snapshot defaults.
const (
	SnapshotVersion     = 1
	DefaultMaxAge       = 24 * time.Hour
	DefaultFallbackTTL  = 5 * time.Minute
	defaultSnapshotDir  = ".toolbatch"
	defaultSnapshotFile = "tool-cache.json"
)

// DefaultSnapshotPath returns $HOME/.toolbatch/tool-cache.json, falling back
// to the temp directory when no home directory is known.
func DefaultSnapshotPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return filepath.Join(home, defaultSnapshotDir, defaultSnapshotFile)
}

type snapshotFile struct {
	Version int             `json:"version"`
	Entries []snapshotEntry `json:"entries"`
	SavedAt int64           `json:"savedAt"`
}

type snapshotEntry struct {
	Key       string      `json:"key"`
	Result    tool.Result `json:"result"`
	Timestamp int64       `json:"timestamp"`
	Mtime     *int64      `json:"mtime,omitempty"`
	TTL       *int64      `json:"ttl,omitempty"`
}

// SnapshotOptions configures a Snapshotter.
type SnapshotOptions struct {
	// Path of the snapshot file. Default: DefaultSnapshotPath()
	Path string

	// Fs holds the snapshot file. Default: the cache filesystem
	Fs afero.Fs

	// MaxAge discards whole snapshots saved longer ago than this.
	// Default: 24 hours
	MaxAge time.Duration

	// FallbackTTL bounds entries saved without a TTL.
	// Default: 5 minutes
	FallbackTTL time.Duration

	Logger observe.Logger
}

// FileStats describes the snapshot file on disk.
type FileStats struct {
	Path    string    `json:"path"`
	Bytes   int64     `json:"bytes"`
	Entries int       `json:"entries"`
	SavedAt time.Time `json:"saved_at,omitzero"`
}

// Snapshotter saves and restores a Cache to a JSON file.
//
// Contract:
//   - Save and Load never fail the caller; I/O and decoding errors are logged
//     and degrade to a no-op.
//   - Writes go to a temporary file that is renamed over the snapshot.
type Snapshotter struct {
	cache *Cache
	fs    afero.Fs
	opts  SnapshotOptions
}

// NewSnapshotter creates a Snapshotter for c.
func NewSnapshotter(c *Cache, opts SnapshotOptions) *Snapshotter {
	if opts.Path == "" {
		opts.Path = DefaultSnapshotPath()
	}
	if opts.Fs == nil {
		opts.Fs = c.Fs()
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.FallbackTTL <= 0 {
		opts.FallbackTTL = DefaultFallbackTTL
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}
	return &Snapshotter{cache: c, fs: opts.Fs, opts: opts}
}

// Path returns the snapshot file path.
func (s *Snapshotter) Path() string {
	return s.opts.Path
}

// Save writes every live entry to the snapshot file and returns how many were
// written. An empty cache writes nothing.
func (s *Snapshotter) Save() int {
	entries := s.cache.Entries()
	if len(entries) == 0 {
		return 0
	}

	snap := snapshotFile{
		Version: SnapshotVersion,
		Entries: make([]snapshotEntry, 0, len(entries)),
		SavedAt: s.cache.Now().UnixMilli(),
	}
	for _, e := range entries {
		se := snapshotEntry{
			Key:       e.Key,
			Result:    e.Value,
			Timestamp: e.Timestamp.UnixMilli(),
		}
		if !e.Mtime.IsZero() {
			ms := e.Mtime.UnixMilli()
			se.Mtime = &ms
		}
		if e.TTL > 0 {
			ms := e.TTL.Milliseconds()
			se.TTL = &ms
		}
		snap.Entries = append(snap.Entries, se)
	}

	if err := s.write(snap); err != nil {
		s.opts.Logger.Warn(context.Background(), "failed to save cache snapshot",
			observe.F("path", s.opts.Path), observe.F("error", err.Error()))
		return 0
	}
	return len(snap.Entries)
}

func (s *Snapshotter) write(snap snapshotFile) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.opts.Path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, defaultSnapshotFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := s.fs.Rename(tmpName, s.opts.Path); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load restores entries from the snapshot file and returns how many were
// inserted. Whole snapshots are discarded on a version mismatch or when older
// than MaxAge. Entries past their TTL, failed results and file tool entries
// without an mtime are skipped.
func (s *Snapshotter) Load() int {
	snap, err := s.read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.opts.Logger.Warn(context.Background(), "discarding cache snapshot",
				observe.F("path", s.opts.Path), observe.F("error", err.Error()))
		}
		return 0
	}

	now := s.cache.Now()
	if now.Sub(time.UnixMilli(snap.SavedAt)) > s.opts.MaxAge {
		s.opts.Logger.Debug(context.Background(), "discarding cache snapshot",
			observe.F("path", s.opts.Path), observe.F("error", ErrSnapshotExpired.Error()))
		return 0
	}

	restored := 0
	// Entries are saved most recent first; insert oldest first to keep recency.
	for i := len(snap.Entries) - 1; i >= 0; i-- {
		if s.restore(snap.Entries[i], now) {
			restored++
		}
	}
	return restored
}

func (s *Snapshotter) restore(se snapshotEntry, now time.Time) bool {
	if !se.Result.Success {
		return false
	}

	ttl := s.opts.FallbackTTL
	var opts cache.SetOptions
	if se.TTL != nil && *se.TTL > 0 {
		ttl = time.Duration(*se.TTL) * time.Millisecond
		opts.TTL = ttl
	}
	opts.Timestamp = time.UnixMilli(se.Timestamp)
	if now.Sub(opts.Timestamp) > ttl {
		return false
	}

	toolName, rawArgs, ok := cache.SplitKey(se.Key)
	if !ok {
		return false
	}
	var args tool.Args
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return false
	}

	if se.Mtime != nil {
		opts.Mtime = time.UnixMilli(*se.Mtime)
	} else if tool.FileTools.Has(toolName) {
		return false
	}

	return s.cache.Set(toolName, args, se.Result, opts) == nil && s.cache.Has(toolName, args)
}

func (s *Snapshotter) read() (snapshotFile, error) {
	var snap snapshotFile
	data, err := afero.ReadFile(s.fs, s.opts.Path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return snap, fmt.Errorf("%w: got %d", ErrSnapshotVersion, snap.Version)
	}
	return snap, nil
}

// Clear removes the snapshot file. A missing file is not an error.
func (s *Snapshotter) Clear() error {
	err := s.fs.Remove(s.opts.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("toolcache: remove snapshot: %w", err)
	}
	return nil
}

// Stats reports the snapshot file size and entry count. Any error yields
// zero values.
func (s *Snapshotter) Stats() FileStats {
	st := FileStats{Path: s.opts.Path}
	fi, err := s.fs.Stat(s.opts.Path)
	if err != nil {
		return st
	}
	snap, err := s.read()
	if err != nil {
		return st
	}
	st.Bytes = fi.Size()
	st.Entries = len(snap.Entries)
	st.SavedAt = time.UnixMilli(snap.SavedAt)
	return st
}
