package cache

import (
	"container/list"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Entry is a resident cache entry.
type Entry[V any] struct {
	Key       string
	Value     V
	Timestamp time.Time
	// TTL overrides the store default when positive.
	TTL time.Duration
	// Mtime is the file modification time captured at store time, if any.
	Mtime time.Time
	Size  int64
	Hits  int
}

// SetOptions carries per-entry overrides for Set.
type SetOptions struct {
	TTL   time.Duration
	Mtime time.Time
	// Timestamp backdates the entry, e.g. when restoring from disk.
	// Zero means now.
	Timestamp time.Time
}

// Stats contains store statistics.
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	Size       int64 `json:"size"`
	EntryCount int   `json:"entry_count"`
}

// Store is a bounded key/value store with TTL expiry and LRU eviction under
// both a byte budget and an entry-count budget.
//
// Contract:
// - Concurrency: safe for concurrent use; every operation holds one mutex.
// - Expiry: expired entries are invisible and purged on access; there is no sweeper.
// - Eviction: the least-recently-touched entry goes first; reads and writes both touch.
type Store[V any] struct {
	cfg Config

	mu        sync.Mutex
	items     map[string]*list.Element
	recency   *list.List // front is most recently touched
	size      int64
	hits      int64
	misses    int64
	evictions int64
}

// NewStore creates a store; zero config fields take defaults.
func NewStore[V any](cfg Config) *Store[V] {
	return &Store[V]{
		cfg:     cfg.withDefaults(),
		items:   make(map[string]*list.Element),
		recency: list.New(),
	}
}

// Config returns the effective configuration.
func (s *Store[V]) Config() Config {
	return s.cfg
}

// Get returns the value for (toolName, args), recording a hit or a miss.
func (s *Store[V]) Get(toolName string, args any) (V, bool) {
	e, ok := s.Lookup(toolName, args)
	return e.Value, ok
}

// Lookup is Get returning the whole entry.
func (s *Store[V]) Lookup(toolName string, args any) (Entry[V], bool) {
	key, err := Key(toolName, args)
	if err != nil {
		s.mu.Lock()
		s.misses++
		s.mu.Unlock()
		return Entry[V]{}, false
	}
	return s.LookupKey(key)
}

// LookupKey looks up a prebuilt key with full accounting.
func (s *Store[V]) LookupKey(key string) (Entry[V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		s.misses++
		return Entry[V]{}, false
	}
	e := el.Value.(*Entry[V])
	if s.expiredLocked(e) {
		s.removeLocked(el)
		s.misses++
		return Entry[V]{}, false
	}

	s.recency.MoveToFront(el)
	e.Hits++
	s.hits++
	return *e, true
}

// PeekKey returns the live entry for key without touching recency or stats.
// An expired entry found here is purged.
func (s *Store[V]) PeekKey(key string) (Entry[V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return Entry[V]{}, false
	}
	e := el.Value.(*Entry[V])
	if s.expiredLocked(e) {
		s.removeLocked(el)
		return Entry[V]{}, false
	}
	return *e, true
}

// Has reports whether a live entry exists without touching recency or stats.
// An expired entry found here is purged.
func (s *Store[V]) Has(toolName string, args any) bool {
	key, err := Key(toolName, args)
	if err != nil {
		return false
	}
	return s.HasKey(key)
}

// HasKey is Has for a prebuilt key.
func (s *Store[V]) HasKey(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	if s.expiredLocked(el.Value.(*Entry[V])) {
		s.removeLocked(el)
		return false
	}
	return true
}

// Set stores value under (toolName, args), evicting as needed first.
func (s *Store[V]) Set(toolName string, args any, value V, opts SetOptions) error {
	key, err := Key(toolName, args)
	if err != nil {
		return err
	}
	return s.SetKey(key, value, opts)
}

// SetKey is Set for a prebuilt key.
func (s *Store[V]) SetKey(key string, value V, opts SetOptions) error {
	size := EstimateSize(value)
	if size > s.cfg.MaxSize {
		return ErrEntryTooLarge
	}

	ts := opts.Timestamp
	if ts.IsZero() {
		ts = s.cfg.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Replacing an entry releases its size accounting before eviction runs.
	if el, ok := s.items[key]; ok {
		s.removeLocked(el)
	}

	for s.recency.Len() > 0 && (s.size+size > s.cfg.MaxSize || s.recency.Len() >= s.cfg.MaxEntries) {
		s.evictOldestLocked()
	}

	e := &Entry[V]{
		Key:       key,
		Value:     value,
		Timestamp: ts,
		TTL:       opts.TTL,
		Mtime:     opts.Mtime,
		Size:      size,
	}
	s.items[key] = s.recency.PushFront(e)
	s.size += size
	return nil
}

// Delete removes (toolName, args). It reports whether an entry was removed.
func (s *Store[V]) Delete(toolName string, args any) bool {
	key, err := Key(toolName, args)
	if err != nil {
		return false
	}
	return s.DeleteKey(key)
}

// DeleteKey removes a prebuilt key.
func (s *Store[V]) DeleteKey(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	s.removeLocked(el)
	return true
}

// DeleteByPattern removes every entry whose key matches re and returns the
// number removed.
func (s *Store[V]) DeleteByPattern(re *regexp.Regexp) int {
	if re == nil {
		return 0
	}
	return s.deleteWhere(re.MatchString)
}

// DeleteByPrefix removes every entry whose key starts with prefix.
func (s *Store[V]) DeleteByPrefix(prefix string) int {
	return s.deleteWhere(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func (s *Store[V]) deleteWhere(match func(string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, el := range s.items {
		if match(key) {
			s.removeLocked(el)
			removed++
		}
	}
	return removed
}

// Clear drops every entry. Counters are kept.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*list.Element)
	s.recency.Init()
	s.size = 0
}

// ResetStats zeroes the hit, miss and eviction counters.
func (s *Store[V]) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hits, s.misses, s.evictions = 0, 0, 0
}

// Entries returns a snapshot of live entries, most recently touched first.
func (s *Store[V]) Entries() []Entry[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry[V], 0, s.recency.Len())
	for el := s.recency.Front(); el != nil; el = el.Next() {
		e := el.Value.(*Entry[V])
		if s.expiredLocked(e) {
			continue
		}
		out = append(out, *e)
	}
	return out
}

// Len returns the number of resident entries, expired or not.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recency.Len()
}

// Stats returns current statistics.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Hits:       s.hits,
		Misses:     s.misses,
		Evictions:  s.evictions,
		Size:       s.size,
		EntryCount: s.recency.Len(),
	}
}

// HitRate returns hits/(hits+misses), or 0 before any access.
func (s *Store[V]) HitRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.hits + s.misses
	if total == 0 {
		return 0
	}
	return float64(s.hits) / float64(total)
}

func (s *Store[V]) expiredLocked(e *Entry[V]) bool {
	return s.cfg.Now().Sub(e.Timestamp) > s.cfg.EffectiveTTL(e.TTL)
}

func (s *Store[V]) evictOldestLocked() {
	el := s.recency.Back()
	if el == nil {
		return
	}
	s.removeLocked(el)
	s.evictions++
}

func (s *Store[V]) removeLocked(el *list.Element) {
	e := s.recency.Remove(el).(*Entry[V])
	delete(s.items, e.Key)
	s.size -= e.Size
}

// EstimateSize approximates the resident size of v: two bytes per character
// for strings, two bytes per byte of JSON for anything else.
func EstimateSize(v any) int64 {
	switch val := v.(type) {
	case string:
		return int64(len(val)) * 2
	case []byte:
		return int64(len(val)) * 2
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fallbackEntrySize
	}
	return int64(len(data)) * 2
}
