package permission

import (
	"sync"
	"time"
)

// Clock abstracts time for deterministic cache tests
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type cacheEntry struct {
	tuples    []string
	expiresAt time.Time
	epoch     uint64
}

// TupleCache holds each user's resolved tuple set with a TTL. Entries
// are never mutated in place, only replaced or deleted.
//
// InvalidateAll bumps an epoch counter instead of enumerating keys;
// Get treats an entry written under an older epoch as a miss. This is
// how "all"-assignment mutations drop every cached user, including
// keys the cache has never seen.
type TupleCache struct {
	mu      sync.Mutex
	clock   Clock
	ttl     time.Duration
	epoch   uint64
	entries map[string]cacheEntry
}

// DefaultTTL matches the original 5 minute cache window
const DefaultTTL = 300 * time.Second

// NewTupleCache builds a cache. A nil clock falls back to real time.
func NewTupleCache(ttl time.Duration, clock Clock) *TupleCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &TupleCache{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached tuple set, or ok=false when the entry is
// absent, expired, or stale against the current epoch.
func (c *TupleCache) Get(userID string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	if entry.epoch != c.epoch || c.clock.Now().After(entry.expiresAt) {
		delete(c.entries, userID)
		return nil, false
	}

	tuples := make([]string, len(entry.tuples))
	copy(tuples, entry.tuples)
	return tuples, true
}

// Set replaces the user's entry with a fresh copy of tuples
func (c *TupleCache) Set(userID string, tuples []string) {
	stored := make([]string, len(tuples))
	copy(stored, tuples)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = cacheEntry{
		tuples:    stored,
		expiresAt: c.clock.Now().Add(c.ttl),
		epoch:     c.epoch,
	}
}

// Invalidate drops one user's entry regardless of TTL
func (c *TupleCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

// InvalidateAll makes every current entry a miss in O(1)
func (c *TupleCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
}

// Len reports how many entries are held, including ones a future Get
// would discard as stale
func (c *TupleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
