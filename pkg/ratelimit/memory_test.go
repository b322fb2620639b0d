package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_IncrementCounts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for want := 1; want <= 5; want++ {
		count, _, err := store.Increment(ctx, "api:ip:1.2.3.4", time.Minute)
		if err != nil {
			t.Fatalf("Increment() error = %v", err)
		}
		if count != want {
			t.Errorf("count = %d, want %d", count, want)
		}
	}
}

func TestMemoryStore_WindowReset(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		store.Increment(ctx, "k", time.Minute)
	}

	// Advance past the window; the counter starts over.
	now = now.Add(time.Minute + time.Second)
	count, reset, err := store.Increment(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count after window elapse = %d, want 1", count)
	}
	if want := now.Add(time.Minute); !reset.Equal(want) {
		t.Errorf("reset = %v, want %v", reset, want)
	}
}

func TestMemoryStore_ResetTimeStableWithinWindow(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, first, _ := store.Increment(ctx, "k", time.Minute)
	now = now.Add(30 * time.Second)
	_, second, _ := store.Increment(ctx, "k", time.Minute)

	// The window must not slide on every hit.
	if !first.Equal(second) {
		t.Errorf("reset slid within window: first %v, second %v", first, second)
	}
}

func TestMemoryStore_Decrement(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Increment(ctx, "k", time.Minute)
	store.Increment(ctx, "k", time.Minute)
	if err := store.Decrement(ctx, "k"); err != nil {
		t.Fatalf("Decrement() error = %v", err)
	}

	count, _, _ := store.Increment(ctx, "k", time.Minute)
	if count != 2 {
		t.Errorf("count after decrement = %d, want 2", count)
	}
}

func TestMemoryStore_DecrementFloorsAtZero(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Decrement(ctx, "missing"); err != nil {
		t.Fatalf("Decrement() on missing key error = %v", err)
	}

	store.Increment(ctx, "k", time.Minute)
	store.Decrement(ctx, "k")
	store.Decrement(ctx, "k")

	count, _, _ := store.Increment(ctx, "k", time.Minute)
	if count != 1 {
		t.Errorf("count = %d, want 1 (never negative)", count)
	}
}

func TestMemoryStore_Reset(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Increment(ctx, "k", time.Minute)
	store.Increment(ctx, "k", time.Minute)
	if err := store.Reset(ctx, "k"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	count, _, _ := store.Increment(ctx, "k", time.Minute)
	if count != 1 {
		t.Errorf("count after reset = %d, want 1", count)
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	store.Increment(ctx, "old", time.Minute)
	now = now.Add(2 * time.Minute)
	store.Increment(ctx, "fresh", time.Minute)

	store.Sweep()

	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.windows["old"]; ok {
		t.Error("elapsed window should be evicted")
	}
	if _, ok := store.windows["fresh"]; !ok {
		t.Error("live window should survive the sweep")
	}
}
