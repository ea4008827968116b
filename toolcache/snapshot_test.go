package toolcache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/jonwraymond/toolbatch/cache"
	"github.com/jonwraymond/toolbatch/tool"
)

const snapPath = "/home/dev/.toolbatch/tool-cache.json"

func newSnapshotter(f fixture) *Snapshotter {
	return NewSnapshotter(f.cache, SnapshotOptions{Path: snapPath})
}

func TestSnapshot_SaveClearLoad(t *testing.T) {
	f := newFixture(t)
	snap := newSnapshotter(f)
	f.writeFile(t, "/work/a.go", f.clock.Now().Add(-time.Hour))

	_ = f.cache.Set("read_file", tool.Args{"file_path": "/work/a.go"}, ok("package a"), cache.SetOptions{})
	_ = f.cache.Set("web_search", tool.Args{"query": "go generics"}, ok("results"), cache.SetOptions{})
	_ = f.cache.Set("git_status", nil, ok("clean"), cache.SetOptions{})

	if n := snap.Save(); n != 3 {
		t.Fatalf("Save() = %d, want 3", n)
	}

	f.cache.Clear()
	f.clock.Advance(10 * time.Second)

	if n := snap.Load(); n != 3 {
		t.Fatalf("Load() = %d, want 3", n)
	}
	if got, hit := f.cache.Get("read_file", tool.Args{"file_path": "/work/a.go"}); !hit || got.Output != "package a" {
		t.Errorf("read_file not restored: %+v %v", got, hit)
	}
	if _, hit := f.cache.Get("git_status", nil); !hit {
		t.Error("git_status not restored")
	}

	// Timestamps survive the round trip, so the web TTL keeps counting.
	f.clock.Advance(WebTTL - 5*time.Second)
	if _, hit := f.cache.Get("web_search", tool.Args{"query": "go generics"}); hit {
		t.Error("web entry should have expired with its original timestamp")
	}
}

func TestSnapshot_SaveEmptyIsNoop(t *testing.T) {
	f := newFixture(t)
	snap := newSnapshotter(f)

	if n := snap.Save(); n != 0 {
		t.Errorf("Save() = %d, want 0", n)
	}
	if exists, _ := afero.Exists(f.fs, snapPath); exists {
		t.Error("empty cache should not write a file")
	}
}

func TestSnapshot_LoadMissingFile(t *testing.T) {
	f := newFixture(t)
	if n := newSnapshotter(f).Load(); n != 0 {
		t.Errorf("Load() = %d, want 0", n)
	}
}

func TestSnapshot_DiscardsOldFile(t *testing.T) {
	f := newFixture(t)
	snap := newSnapshotter(f)
	_ = f.cache.Set("git_log", nil, ok("log"), cache.SetOptions{TTL: 48 * time.Hour})
	snap.Save()
	f.cache.Clear()

	f.clock.Advance(DefaultMaxAge + time.Minute)
	if n := snap.Load(); n != 0 {
		t.Errorf("Load() = %d, want 0 for a stale snapshot", n)
	}
}

func TestSnapshot_SkipsExpiredEntries(t *testing.T) {
	f := newFixture(t)
	snap := newSnapshotter(f)
	_ = f.cache.Set("git_log", nil, ok("log"), cache.SetOptions{})
	_ = f.cache.Set("git_diff", nil, ok("diff"), cache.SetOptions{TTL: time.Hour})
	snap.Save()
	f.cache.Clear()

	f.clock.Advance(DefaultFallbackTTL + time.Minute)
	if n := snap.Load(); n != 1 {
		t.Fatalf("Load() = %d, want 1", n)
	}
	if !f.cache.Has("git_diff", nil) {
		t.Error("entry with long TTL should be restored")
	}
}

func writeSnapshot(t *testing.T, f fixture, snap snapshotFile) {
	t.Helper()
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(f.fs, snapPath, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSnapshot_VersionMismatch(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now().UnixMilli()
	writeSnapshot(t, f, snapshotFile{
		Version: 2,
		SavedAt: now,
		Entries: []snapshotEntry{{Key: "git_status:{}", Result: ok("clean"), Timestamp: now}},
	})

	if n := newSnapshotter(f).Load(); n != 0 {
		t.Errorf("Load() = %d, want 0", n)
	}
}

func TestSnapshot_SkipsBadEntries(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now().UnixMilli()
	writeSnapshot(t, f, snapshotFile{
		Version: SnapshotVersion,
		SavedAt: now,
		Entries: []snapshotEntry{
			{Key: "git_status:{}", Result: ok("clean"), Timestamp: now},
			{Key: "grep:{not json", Result: ok("x"), Timestamp: now},
			{Key: "nocolon", Result: ok("x"), Timestamp: now},
			{Key: "git_log:{}", Result: tool.Failure("boom"), Timestamp: now},
			{Key: `read_file:{"file_path":"/work/a.go"}`, Result: ok("no mtime"), Timestamp: now},
		},
	})

	if n := newSnapshotter(f).Load(); n != 1 {
		t.Errorf("Load() = %d, want 1", n)
	}
}

func TestSnapshot_CorruptFile(t *testing.T) {
	f := newFixture(t)
	if err := afero.WriteFile(f.fs, snapPath, []byte(`{"version":1,"entries":[`), 0o644); err != nil {
		t.Fatal(err)
	}
	if n := newSnapshotter(f).Load(); n != 0 {
		t.Errorf("Load() = %d, want 0", n)
	}
}

func TestSnapshot_StatsAndClear(t *testing.T) {
	f := newFixture(t)
	snap := newSnapshotter(f)

	if st := snap.Stats(); st.Bytes != 0 || st.Entries != 0 {
		t.Errorf("Stats() without file = %+v", st)
	}

	_ = f.cache.Set("git_status", nil, ok("clean"), cache.SetOptions{})
	_ = f.cache.Set("git_diff", nil, ok("diff"), cache.SetOptions{})
	snap.Save()

	st := snap.Stats()
	if st.Entries != 2 || st.Bytes == 0 {
		t.Errorf("Stats() = %+v", st)
	}
	if !st.SavedAt.Equal(time.UnixMilli(f.clock.Now().UnixMilli())) {
		t.Errorf("SavedAt = %v", st.SavedAt)
	}

	if err := snap.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := snap.Clear(); err != nil {
		t.Fatalf("second Clear() error = %v", err)
	}
	if exists, _ := afero.Exists(f.fs, snapPath); exists {
		t.Error("snapshot file should be gone")
	}
}

func TestSnapshot_PreservesRecency(t *testing.T) {
	f := newFixture(t)
	snap := newSnapshotter(f)
	_ = f.cache.Set("git_status", nil, ok("1"), cache.SetOptions{})
	_ = f.cache.Set("git_diff", nil, ok("2"), cache.SetOptions{})
	_ = f.cache.Set("git_log", nil, ok("3"), cache.SetOptions{})
	snap.Save()
	f.cache.Clear()
	snap.Load()

	entries := f.cache.Entries()
	if len(entries) != 3 || entries[0].Key != "git_log:{}" || entries[2].Key != "git_status:{}" {
		t.Errorf("unexpected order: %v", entries)
	}
}
