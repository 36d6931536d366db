// Package cache provides a bounded LRU store mapping a normalized unit text
// to a previously accepted rewrite. Repeated dialogue lines and stock phrases
// are common in novels; caching their rewrites avoids redundant service calls.
//
// A cache is scoped to a single processing run and has a single writer.
package cache

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity bounds the cache when no capacity is configured.
const DefaultCapacity = 500

// Cache is a capacity-bounded LRU store of accepted rewrites.
type Cache struct {
	store    *lru.Cache[string, []string]
	capacity int
	hits     int
	misses   int
}

// Stats reports cache effectiveness for the run summary.
type Stats struct {
	Size     int
	Capacity int
	Hits     int
	Misses   int
}

// HitRate returns the fraction of lookups served from the cache, in [0, 1].
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// New creates a cache holding at most capacity entries.
// Non-positive capacities fall back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// lru.New only errors on non-positive size, which is ruled out above.
	store, err := lru.New[string, []string](capacity)
	if err != nil {
		panic(err)
	}
	return &Cache{store: store, capacity: capacity}
}

// Get returns the cached rewrite for a unit text, if present.
// A hit promotes the entry to most-recently-used.
func (c *Cache) Get(unitText string) ([]string, bool) {
	rewrite, ok := c.store.Get(normalizeKey(unitText))
	if ok {
		c.hits++
		return rewrite, true
	}
	c.misses++
	return nil, false
}

// Put stores an accepted rewrite for a unit text, evicting the
// least-recently-used entry on capacity overflow.
func (c *Cache) Put(unitText string, rewrite []string) {
	c.store.Add(normalizeKey(unitText), rewrite)
}

// Clear drops all entries and resets the hit/miss counters.
func (c *Cache) Clear() {
	c.store.Purge()
	c.hits = 0
	c.misses = 0
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Size:     c.store.Len(),
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
	}
}

var keyReplacer = strings.NewReplacer(
	"’", "'",
	"‘", "'",
	"“", `"`,
	"”", `"`,
	"«", `"`,
	"»", `"`,
)

// normalizeKey lower-cases, collapses whitespace, and unifies quote variants
// so case and spacing variants of a repeated line share one entry.
func normalizeKey(s string) string {
	s = keyReplacer.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}
