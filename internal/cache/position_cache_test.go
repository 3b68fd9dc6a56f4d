package cache

import (
	"testing"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/propagation"
)

func snapAt(hours float64) propagation.Snapshot {
	return propagation.Snapshot{Hours: hours}
}

// TestPositionCacheHitMiss verifies day rounding and hit/miss counters.
func TestPositionCacheHitMiss(t *testing.T) {
	c := NewPositionCache(4, 24)
	c.Put(48, snapAt(48))

	got, ok := c.Get(50)
	if !ok {
		t.Fatal("expected hit for hours in the same day")
	}
	if got.Hours != 48 {
		t.Errorf("got snapshot at %v, want 48", got.Hours)
	}
	if _, ok := c.Get(24); ok {
		t.Error("expected miss for a different day")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("got hits=%d misses=%d, want 1 and 1", stats.Hits, stats.Misses)
	}
}

// TestPositionCacheKey verifies rounding to the nearest day.
func TestPositionCacheKey(t *testing.T) {
	c := NewPositionCache(4, 24)
	tests := []struct {
		hours float64
		want  int64
	}{
		{0, 0},
		{11.9, 0},
		{12.1, 1},
		{-13, -1},
		{720 * 24, 720},
	}
	for _, tt := range tests {
		if got := c.Key(tt.hours); got != tt.want {
			t.Errorf("Key(%v) = %d, want %d", tt.hours, got, tt.want)
		}
	}
}

// TestPositionCacheEviction verifies the oldest insertion is evicted first.
func TestPositionCacheEviction(t *testing.T) {
	c := NewPositionCache(3, 24)
	for day := 0; day < 5; day++ {
		c.Put(float64(day)*24, snapAt(float64(day)*24))
	}

	if c.Len() != 3 {
		t.Fatalf("len: got %d, want 3", c.Len())
	}
	for day, want := range []bool{false, false, true, true, true} {
		if _, ok := c.Get(float64(day) * 24); ok != want {
			t.Errorf("day %d present=%v, want %v", day, ok, want)
		}
	}
	if ev := c.Stats().Evictions; ev != 2 {
		t.Errorf("evictions: got %d, want 2", ev)
	}

	// Replacing an existing day does not evict.
	c.Put(2*24, snapAt(99))
	if got, _ := c.Get(2 * 24); got.Hours != 99 {
		t.Errorf("replaced value: got %v, want 99", got.Hours)
	}
	if c.Stats().Evictions != 2 {
		t.Error("replacement should not evict")
	}
}
