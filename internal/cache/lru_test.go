package cache

import (
	"context"
	"testing"
	"time"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should be cached")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %v, %v", v, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("day", "summary")
	c.Set("week", "summary")
	now = now.Add(30 * time.Second)
	if _, ok := c.Get("day"); !ok {
		t.Fatalf("entry expired too early")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("day"); ok {
		t.Fatalf("entry should have expired")
	}
	if n := NewManager(c).Sweep(); n != 1 {
		t.Fatalf("Sweep() removed %d, want 1", n)
	}
	if c.Len() != 0 {
		t.Fatalf("cache not empty after sweep: %d", c.Len())
	}
}

func TestLRUDeletePrefixAndPurge(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("day:2025-01-01", 1)
	c.Set("day:2025-01-02", 2)
	c.Set("week:2025-01-02", 3)

	if n := c.DeletePrefix("day:"); n != 2 {
		t.Fatalf("DeletePrefix() = %d, want 2", n)
	}
	if _, ok := c.Get("week:2025-01-02"); !ok {
		t.Fatalf("unrelated key removed")
	}
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("Purge() left %d entries", c.Len())
	}
	c.Set("x", 1)
	if v, ok := c.Get("x"); !ok || v != 1 {
		t.Fatalf("cache unusable after purge")
	}
}

func TestManagerStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(NewLRUCache[int](1, time.Minute))
	go m.Run(ctx, time.Millisecond)
	cancel()

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatalf("manager did not stop")
	}
}
