// Package cache memoizes knowledge-probe responses per (title, year).
//
// The probe is the most expensive turn of an evaluation and its answer does
// not depend on the test being run, so every test of the same movie reuses
// it. Entries live for the lifetime of the process.
package cache

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultSize is the number of titles kept when no size is configured.
const DefaultSize = 100

// Key identifies a cached probe.
type Key struct {
	Title string
	Year  int
}

// ResponseCache is a bounded least-recently-used cache of raw probe
// responses. It is not safe for concurrent use; the pipeline is sequential.
type ResponseCache struct {
	lru    *simplelru.LRU[Key, string]
	hits   int64
	misses int64
}

// New creates a cache holding at most size entries. A size <= 0 uses
// DefaultSize.
func New(size int) *ResponseCache {
	if size <= 0 {
		size = DefaultSize
	}
	// NewLRU only fails for a non-positive size.
	lru, _ := simplelru.NewLRU[Key, string](size, nil)
	return &ResponseCache{lru: lru}
}

// Get returns the cached response for the title and marks it recently used.
func (c *ResponseCache) Get(title string, year int) (string, bool) {
	v, ok := c.lru.Get(Key{Title: title, Year: year})
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Set stores a response, evicting the least recently used entry when full.
func (c *ResponseCache) Set(title string, year int, response string) {
	c.lru.Add(Key{Title: title, Year: year}, response)
}

// Clear drops every entry.
func (c *ResponseCache) Clear() {
	c.lru.Purge()
}

// Len returns the number of cached entries.
func (c *ResponseCache) Len() int {
	return c.lru.Len()
}

// Stats returns cache statistics.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// Stats returns the current entry count and lookup counters.
func (c *ResponseCache) Stats() Stats {
	return Stats{Entries: c.lru.Len(), Hits: c.hits, Misses: c.misses}
}
