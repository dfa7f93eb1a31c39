package embeddings

import (
	"context"
	"testing"
	"time"
)

func TestLocalLRUEviction(t *testing.T) {
	lru := NewLocalLRU(2)
	ctx := context.Background()

	lru.Set(ctx, "a", []float32{1}, time.Minute)
	lru.Set(ctx, "b", []float32{2}, time.Minute)

	// Touch "a" so "b" becomes the eviction candidate
	if _, ok := lru.Get(ctx, "a"); !ok {
		t.Fatal("expected a to be cached")
	}

	lru.Set(ctx, "c", []float32{3}, time.Minute)

	if _, ok := lru.Get(ctx, "b"); ok {
		t.Error("expected b to have been evicted")
	}
	if _, ok := lru.Get(ctx, "a"); !ok {
		t.Error("expected a to survive eviction")
	}
	if _, ok := lru.Get(ctx, "c"); !ok {
		t.Error("expected c to be cached")
	}
}

func TestLocalLRUExpiry(t *testing.T) {
	lru := NewLocalLRU(4)
	ctx := context.Background()

	lru.Set(ctx, "k", []float32{1, 2}, -time.Second)
	if _, ok := lru.Get(ctx, "k"); ok {
		t.Error("expected expired entry to be dropped")
	}
}

func TestMakeKeyStable(t *testing.T) {
	k1 := MakeKey("modelo", "prescrição intercorrente")
	k2 := MakeKey("modelo", "prescrição intercorrente")
	k3 := MakeKey("outro", "prescrição intercorrente")

	if k1 != k2 {
		t.Error("expected identical inputs to produce the same key")
	}
	if k1 == k3 {
		t.Error("expected different models to produce different keys")
	}
}

func TestUninitializedClient(t *testing.T) {
	var c *Client
	if _, err := c.Embed(context.Background(), "olá", ""); err == nil {
		t.Fatal("expected error when client is nil")
	}
}
