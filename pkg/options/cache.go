package options

import (
	"sync"
	"time"
)

// globalCache is the process-wide dynamic option cache (spec.md §4.2,
// §5, §9): read-through, mutex-protected, no cross-run mutation path
// beyond normal reads/writes keyed by repoRoot+descriptor.
var globalCache = &cache{entries: map[string]cacheEntry{}}

type cacheEntry struct {
	options   []Resolved
	expiresAt time.Time // zero means "no expiry"
}

type cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func (c *cache) get(key string) ([]Resolved, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.options, true
}

func (c *cache) set(key string, opts []Resolved, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	c.entries[key] = cacheEntry{options: opts, expiresAt: expires}
}

// sessionCache is per-run (constructed fresh by the executor per
// scenario invocation); "session" cache mode writes here instead of the
// process-wide cache.
type sessionCache struct {
	mu      sync.Mutex
	entries map[string][]Resolved
}

func newSessionCache() *sessionCache {
	return &sessionCache{entries: map[string][]Resolved{}}
}

func (s *sessionCache) get(key string) ([]Resolved, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *sessionCache) set(key string, opts []Resolved) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = opts
}
