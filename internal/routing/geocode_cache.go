package routing

import (
	"strings"
	"sync"

	"github.com/saferoute/saferoute/internal/geo"
)

// canonicalAddress normalizes an address for use as a cache key: lowercased,
// with runs of whitespace collapsed to single spaces.
func canonicalAddress(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// geocodeCache memoizes geocoding results by canonical address. Retention is
// unbounded for the process lifetime: a fixed address string resolving to a
// fixed coordinate is treated as an immutable fact.
type geocodeCache struct {
	mu      sync.RWMutex
	entries map[string]geo.Coordinate
}

func newGeocodeCache() *geocodeCache {
	return &geocodeCache{entries: make(map[string]geo.Coordinate)}
}

func (c *geocodeCache) get(key string) (geo.Coordinate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coord, ok := c.entries[key]
	return coord, ok
}

func (c *geocodeCache) put(key string, coord geo.Coordinate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = coord
}

func (c *geocodeCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
