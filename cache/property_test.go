package cache

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// TestStore_BudgetsProperty checks that no sequence of operations pushes the
// store past either budget.
func TestStore_BudgetsProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxEntries := rapid.IntRange(1, 8).Draw(rt, "maxEntries")
		maxSize := rapid.Int64Range(20, 200).Draw(rt, "maxSize")
		s := NewStore[string](Config{MaxEntries: maxEntries, MaxSize: maxSize})

		ops := rapid.IntRange(1, 60).Draw(rt, "ops")
		for i := 0; i < ops; i++ {
			k := rapid.IntRange(0, 15).Draw(rt, "key")
			a := map[string]any{"k": fmt.Sprint(k)}
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				v := rapid.StringN(0, 20, -1).Draw(rt, "value")
				_ = s.Set("t", a, v, SetOptions{})
			case 1:
				s.Get("t", a)
			case 2:
				s.Delete("t", a)
			}

			st := s.Stats()
			if st.Size > maxSize {
				rt.Fatalf("size %d exceeds budget %d", st.Size, maxSize)
			}
			if st.EntryCount > maxEntries {
				rt.Fatalf("entry count %d exceeds budget %d", st.EntryCount, maxEntries)
			}
			if st.Size < 0 {
				rt.Fatalf("negative size %d", st.Size)
			}
		}
	})
}

// TestStore_SetThenGetProperty checks set/get round trips for live entries.
func TestStore_SetThenGetProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := NewStore[string](DefaultConfig())
		k := rapid.String().Draw(rt, "arg")
		v := rapid.String().Draw(rt, "value")

		if err := s.Set("tool", map[string]any{"a": k}, v, SetOptions{}); err != nil {
			rt.Fatalf("Set: %v", err)
		}
		got, ok := s.Get("tool", map[string]any{"a": k})
		if !ok || got != v {
			rt.Fatalf("Get = %q, %v; want %q", got, ok, v)
		}
	})
}
