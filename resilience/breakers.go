package resilience

import (
	"sort"
	"sync"
)

// BreakerSet lazily creates one circuit breaker per name, all sharing a
// configuration.
type BreakerSet struct {
	config CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerSet creates an empty set.
func NewBreakerSet(config CircuitBreakerConfig) *BreakerSet {
	return &BreakerSet{
		config:   config,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// For returns the breaker for name, creating it on first use.
func (s *BreakerSet) For(name string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.breakers[name]
	if !ok {
		cb = NewCircuitBreaker(s.config)
		s.breakers[name] = cb
	}
	return cb
}

// Open returns the names whose circuit is currently open, sorted.
func (s *BreakerSet) Open() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for name, cb := range s.breakers {
		if cb.State() == StateOpen {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Reset drops every breaker.
func (s *BreakerSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breakers = make(map[string]*CircuitBreaker)
}
