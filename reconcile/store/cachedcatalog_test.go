package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// countingCatalog records how many lookups reach it.
type countingCatalog struct {
	mu        sync.Mutex
	calls     int
	suppress  bool
	returnErr error
}

func (c *countingCatalog) SuppressesAbsence(_ context.Context, _ int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.suppress, c.returnErr
}

func TestCachedCatalog_HitsInnerOnce(t *testing.T) {
	// GIVEN: A catalog behind the cache
	inner := &countingCatalog{suppress: true}
	cached := NewCachedCatalog(inner, time.Minute)
	ctx := context.Background()

	// WHEN: The same ID is looked up repeatedly
	for i := 0; i < 5; i++ {
		suppresses, err := cached.SuppressesAbsence(ctx, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !suppresses {
			t.Fatal("expected suppression")
		}
	}

	// THEN: Only the first lookup reached the inner catalog
	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
}

func TestCachedCatalog_DistinctIDsCachedSeparately(t *testing.T) {
	inner := &countingCatalog{}
	cached := NewCachedCatalog(inner, time.Minute)
	ctx := context.Background()

	for _, id := range []int{1, 2, 1, 2} {
		if _, err := cached.SuppressesAbsence(ctx, id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 inner calls, got %d", inner.calls)
	}
}

func TestCachedCatalog_ErrorsAreNotCached(t *testing.T) {
	inner := &countingCatalog{returnErr: errors.New("catalog down")}
	cached := NewCachedCatalog(inner, time.Minute)
	ctx := context.Background()

	if _, err := cached.SuppressesAbsence(ctx, 3); err == nil {
		t.Fatal("expected error")
	}

	// A later lookup retries the inner catalog once it recovers.
	inner.mu.Lock()
	inner.returnErr = nil
	inner.suppress = true
	inner.mu.Unlock()

	suppresses, err := cached.SuppressesAbsence(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !suppresses {
		t.Error("expected suppression after recovery")
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 inner calls, got %d", inner.calls)
	}
}
