package permission

import (
	"reflect"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(ttl time.Duration) (*TupleCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewTupleCache(ttl, clock), clock
}

func TestTupleCacheHitAndMiss(t *testing.T) {
	cache, _ := newTestCache(DefaultTTL)

	if _, ok := cache.Get("alice"); ok {
		t.Fatal("expected miss on empty cache")
	}

	tuples := []string{"document:file:/a.txt:read"}
	cache.Set("alice", tuples)

	got, ok := cache.Get("alice")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if !reflect.DeepEqual(got, tuples) {
		t.Errorf("Get = %v, want %v", got, tuples)
	}
}

func TestTupleCacheTTLExpiry(t *testing.T) {
	cache, clock := newTestCache(300 * time.Second)
	cache.Set("alice", []string{"system:report:*:read"})

	clock.Advance(299 * time.Second)
	if _, ok := cache.Get("alice"); !ok {
		t.Fatal("entry expired before TTL")
	}

	clock.Advance(2 * time.Second)
	if _, ok := cache.Get("alice"); ok {
		t.Fatal("entry survived past TTL")
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry not evicted, Len = %d", cache.Len())
	}
}

func TestTupleCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(DefaultTTL)
	cache.Set("alice", []string{"document:file:/a.txt:read"})
	cache.Set("bob", []string{"document:file:/b.txt:read"})

	cache.Invalidate("alice")

	if _, ok := cache.Get("alice"); ok {
		t.Error("invalidated entry still readable")
	}
	if _, ok := cache.Get("bob"); !ok {
		t.Error("unrelated entry was dropped")
	}
}

func TestTupleCacheInvalidateAll(t *testing.T) {
	cache, _ := newTestCache(DefaultTTL)
	cache.Set("alice", []string{"document:file:/a.txt:read"})
	cache.Set("bob", []string{"document:file:/b.txt:read"})

	cache.InvalidateAll()

	if _, ok := cache.Get("alice"); ok {
		t.Error("stale-epoch entry served for alice")
	}
	if _, ok := cache.Get("bob"); ok {
		t.Error("stale-epoch entry served for bob")
	}

	// New writes after the bump are valid again
	cache.Set("alice", []string{"system:user:*:manage"})
	if _, ok := cache.Get("alice"); !ok {
		t.Error("fresh entry after InvalidateAll must hit")
	}
}

func TestTupleCacheCopiesOnReadAndWrite(t *testing.T) {
	cache, _ := newTestCache(DefaultTTL)

	tuples := []string{"document:file:/a.txt:read"}
	cache.Set("alice", tuples)
	tuples[0] = "mutated"

	got, _ := cache.Get("alice")
	if got[0] != "document:file:/a.txt:read" {
		t.Error("cache shares backing array with caller's Set slice")
	}

	got[0] = "mutated-again"
	fresh, _ := cache.Get("alice")
	if fresh[0] != "document:file:/a.txt:read" {
		t.Error("cache shares backing array with caller's Get slice")
	}
}

func TestTupleCacheZeroTTLFallsBackToDefault(t *testing.T) {
	cache, clock := newTestCache(0)
	cache.Set("alice", []string{"document:file:/a.txt:read"})

	clock.Advance(DefaultTTL - time.Second)
	if _, ok := cache.Get("alice"); !ok {
		t.Error("default TTL window closed early")
	}
}
