package cache

import (
	"fmt"
	"testing"
)

func TestResponseCache_Miss(t *testing.T) {
	c := New(10)
	if _, ok := c.Get("Dune", 2021); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestResponseCache_Hit(t *testing.T) {
	c := New(10)
	c.Set("Dune", 2021, `I know it. {"is_there_information": true}`)

	got, ok := c.Get("Dune", 2021)
	if !ok {
		t.Fatal("expected hit")
	}
	if got != `I know it. {"is_there_information": true}` {
		t.Errorf("got %q", got)
	}
}

func TestResponseCache_KeyIncludesYear(t *testing.T) {
	c := New(10)
	c.Set("Dune", 1984, "old")
	c.Set("Dune", 2021, "new")

	if got, _ := c.Get("Dune", 1984); got != "old" {
		t.Errorf("1984: got %q, want old", got)
	}
	if got, _ := c.Get("Dune", 2021); got != "new" {
		t.Errorf("2021: got %q, want new", got)
	}
}

func TestResponseCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Set("A", 2000, "a")
	c.Set("B", 2000, "b")

	// Touch A so B becomes the eviction candidate.
	if _, ok := c.Get("A", 2000); !ok {
		t.Fatal("expected A cached")
	}
	c.Set("C", 2000, "c")

	if _, ok := c.Get("B", 2000); ok {
		t.Error("B should have been evicted")
	}
	if _, ok := c.Get("A", 2000); !ok {
		t.Error("A should survive, it was used recently")
	}
	if _, ok := c.Get("C", 2000); !ok {
		t.Error("C should be cached")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestResponseCache_Clear(t *testing.T) {
	c := New(5)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("movie-%d", i), 2020, "r")
	}
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
	if _, ok := c.Get("movie-0", 2020); ok {
		t.Error("expected miss after Clear")
	}
}

func TestResponseCache_DefaultSize(t *testing.T) {
	c := New(0)
	for i := 0; i < DefaultSize+5; i++ {
		c.Set(fmt.Sprintf("movie-%d", i), 2020, "r")
	}
	if c.Len() != DefaultSize {
		t.Errorf("Len() = %d, want %d", c.Len(), DefaultSize)
	}
}

func TestResponseCache_Stats(t *testing.T) {
	c := New(3)
	c.Set("A", 1, "a")
	c.Get("A", 1)
	c.Get("A", 1)
	c.Get("B", 1)

	s := c.Stats()
	if s.Entries != 1 || s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Stats() = %+v, want {Entries:1 Hits:2 Misses:1}", s)
	}
}
