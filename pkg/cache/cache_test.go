package cache

import (
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := New()
	c.Set("key1", "value1", 1*time.Second)
	val, ok := c.Get("key1")
	if !ok || val != "value1" {
		t.Fatalf("expected value1, got %v, exists=%v", val, ok)
	}
}

func TestExpiration(t *testing.T) {
	c := New()
	c.Set("key1", "value1", 100*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	_, ok := c.Get("key1")
	if ok {
		t.Fatalf("expected expired key to return false")
	}
	// The expired entry was evicted on access.
	if c.Len() != 0 {
		t.Fatalf("expected expired entry evicted, len=%d", c.Len())
	}
}

func TestDelete(t *testing.T) {
	c := New()
	c.Set("key1", "value1", 1*time.Second)
	c.Delete("key1")
	_, ok := c.Get("key1")
	if ok {
		t.Fatalf("expected deleted key to return false")
	}
}

func TestInvalidate(t *testing.T) {
	c := New()
	c.Set("manager:1", "m1", 1*time.Second)
	c.Set("manager:2", "m2", 1*time.Second)
	c.Set("team:1", "t1", 1*time.Second)
	c.Invalidate("manager:")
	_, ok1 := c.Get("manager:1")
	_, ok2 := c.Get("manager:2")
	_, ok3 := c.Get("team:1")
	if ok1 || ok2 {
		t.Fatalf("expected manager keys to be invalidated")
	}
	if !ok3 {
		t.Fatalf("expected team:1 to still exist")
	}
}
