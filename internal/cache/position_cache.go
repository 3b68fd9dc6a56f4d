// Package cache provides the bounded position cache owned by a single search.
//
// Entries are keyed by simulated day so that re-checks around the same
// instant (escape probes, stability confirmation after a broken run) reuse
// the positions already computed. The cache keeps the most recently inserted
// distinct keys and evicts the oldest insertion when full. It is not safe for
// concurrent use; every search owns its own instance.
package cache

import (
	"math"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/propagation"
)

// DefaultCapacity is the number of distinct days a search keeps.
const DefaultCapacity = 50

// PositionCache maps day-rounded simulated times to position snapshots.
type PositionCache struct {
	hoursPerDay float64
	capacity    int

	entries map[int64]propagation.Snapshot
	order   []int64 // ring of keys in insertion order
	head    int     // index of the oldest key once the ring is full

	hits      int64
	misses    int64
	evictions int64
}

// NewPositionCache creates a cache holding up to capacity days.
func NewPositionCache(capacity int, hoursPerDay float64) *PositionCache {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if hoursPerDay <= 0 {
		hoursPerDay = 24
	}
	return &PositionCache{
		hoursPerDay: hoursPerDay,
		capacity:    capacity,
		entries:     make(map[int64]propagation.Snapshot, capacity),
		order:       make([]int64, 0, capacity),
	}
}

// Key rounds simulated hours to the nearest whole day.
func (c *PositionCache) Key(hours float64) int64 {
	return int64(math.Round(hours / c.hoursPerDay))
}

// Get returns the snapshot stored for the day containing hours.
func (c *PositionCache) Get(hours float64) (propagation.Snapshot, bool) {
	snap, ok := c.entries[c.Key(hours)]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return snap, ok
}

// Put stores snap under the day containing hours. Re-putting an existing
// day replaces the value without changing its eviction position.
func (c *PositionCache) Put(hours float64, snap propagation.Snapshot) {
	key := c.Key(hours)
	if _, ok := c.entries[key]; ok {
		c.entries[key] = snap
		return
	}

	if len(c.order) < c.capacity {
		c.order = append(c.order, key)
	} else {
		delete(c.entries, c.order[c.head])
		c.evictions++
		c.order[c.head] = key
		c.head = (c.head + 1) % c.capacity
	}
	c.entries[key] = snap
}

// Len returns the number of cached days.
func (c *PositionCache) Len() int { return len(c.entries) }

// Stats returns current cache statistics.
func (c *PositionCache) Stats() CacheStats {
	return CacheStats{
		Entries:   len(c.entries),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// CacheStats holds position cache statistics.
type CacheStats struct {
	Entries   int
	Capacity  int
	Hits      int64
	Misses    int64
	Evictions int64
}
