package prefetch

import (
	"maps"
	"slices"
	"time"

	"github.com/jonwraymond/toolbatch/tool"
)

type observation struct {
	key  string
	tool string
	args tool.Args
	at   time.Time
}

// ring is a fixed-capacity buffer of observations; the oldest is overwritten.
type ring struct {
	buf  []observation
	next int
	full bool
}

func newRing(size int) *ring {
	return &ring{buf: make([]observation, size)}
}

func (r *ring) add(o observation) {
	r.buf[r.next] = o
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

func (r *ring) reset() {
	clear(r.buf)
	r.next = 0
	r.full = false
}

// each visits observations oldest first.
func (r *ring) each(fn func(observation)) {
	if r.full {
		for _, o := range r.buf[r.next:] {
			fn(o)
		}
	}
	for _, o := range r.buf[:r.next] {
		fn(o)
	}
}

type candidate struct {
	tool  string
	args  tool.Args
	count int
	last  time.Time
}

// frequent returns calls seen at least minCount times since cutoff, most
// frequent first, then most recent first.
func (r *ring) frequent(cutoff time.Time, minCount, limit int) []candidate {
	byKey := make(map[string]*candidate)
	r.each(func(o observation) {
		if o.at.Before(cutoff) {
			return
		}
		c, ok := byKey[o.key]
		if !ok {
			c = &candidate{tool: o.tool, args: o.args}
			byKey[o.key] = c
		}
		c.count++
		if o.at.After(c.last) {
			c.last = o.at
		}
	})

	var out []candidate
	for _, c := range byKey {
		if c.count >= minCount {
			out = append(out, *c)
		}
	}
	slices.SortFunc(out, func(a, b candidate) int {
		if a.count != b.count {
			return b.count - a.count
		}
		return b.last.Compare(a.last)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func cloneArgs(args tool.Args) tool.Args {
	if args == nil {
		return tool.Args{}
	}
	return maps.Clone(args)
}
