package utils

import (
	"testing"
	"time"
)

func TestListCacheExpiry(t *testing.T) {
	cache := NewListCache(10*time.Millisecond, 4)
	cache.Set("k", "v")

	if got, ok := cache.Get("k"); !ok || got != "v" {
		t.Fatalf("expected hit, got %v %v", got, ok)
	}

	time.Sleep(15 * time.Millisecond)
	if _, ok := cache.Get("k"); ok {
		t.Fatal("entry must expire after the ttl")
	}
}

func TestListCacheClearAndBound(t *testing.T) {
	cache := NewListCache(time.Minute, 2)
	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Set("c", 3) // over capacity, everything is dropped first

	if _, ok := cache.Get("a"); ok {
		t.Fatal("full cache must reset before accepting new entries")
	}
	if got, ok := cache.Get("c"); !ok || got != 3 {
		t.Fatal("latest entry must be present")
	}

	cache.Clear()
	if _, ok := cache.Get("c"); ok {
		t.Fatal("clear must drop everything")
	}
}
