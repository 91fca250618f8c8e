package cache

import (
	"errors"
	"testing"
)

func TestLRUBasic(t *testing.T) {
	c := New[string, int](4)

	if _, ok := c.Get("a"); ok {
		t.Error("Get on empty cache returned ok")
	}
	c.Put("a", 1)
	c.Put("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats = %d hits, %d misses; want 1, 1", hits, misses)
	}
}

func TestLRUEviction(t *testing.T) {
	var evicted []string
	c := New[string, int](2)
	c.OnEvict(func(k string, _ int) { evicted = append(evicted, k) })

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // a becomes most recently used
	c.Put("c", 3)

	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v, want [b]", evicted)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("evicted key still present")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used key was evicted")
	}
}

func TestLRUOverwriteKeepsEntry(t *testing.T) {
	var evictions int
	c := New[string, int](2)
	c.OnEvict(func(string, int) { evictions++ })

	c.Put("a", 1)
	c.Put("a", 9)
	if evictions != 0 {
		t.Errorf("overwrite ran eviction hook %d times", evictions)
	}
	if v, _ := c.Get("a"); v != 9 {
		t.Errorf("Get(a) = %d, want 9", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestLRUGetOrCreate(t *testing.T) {
	c := New[uint64, string](4)
	calls := 0
	create := func() (string, error) {
		calls++
		return "made", nil
	}

	v, err := c.GetOrCreate(7, create)
	if err != nil || v != "made" {
		t.Fatalf("GetOrCreate = %q, %v", v, err)
	}
	v, err = c.GetOrCreate(7, create)
	if err != nil || v != "made" {
		t.Fatalf("GetOrCreate (cached) = %q, %v", v, err)
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}

	wantErr := errors.New("boom")
	if _, err := c.GetOrCreate(8, func() (string, error) { return "", wantErr }); !errors.Is(err, wantErr) {
		t.Errorf("GetOrCreate error = %v, want %v", err, wantErr)
	}
	if _, ok := c.Get(8); ok {
		t.Error("failed create was cached")
	}
}

func TestLRUClear(t *testing.T) {
	var evicted int
	c := New[int, int](8)
	c.OnEvict(func(int, int) { evicted++ })
	for i := 0; i < 5; i++ {
		c.Put(i, i)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
	if evicted != 5 {
		t.Errorf("eviction hook ran %d times, want 5", evicted)
	}
}

func TestHashers(t *testing.T) {
	if HashString("abc") != HashBytes([]byte("abc")) {
		t.Error("HashString and HashBytes disagree")
	}
	if HashString("a") == HashString("b") {
		t.Error("distinct keys hash equal")
	}
}
