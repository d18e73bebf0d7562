package cache

import (
	"context"
	"testing"
)

func TestNilCacheIsAMiss(t *testing.T) {
	var c *MenuCache

	items, hit, err := c.GetMenu(context.Background(), "", false)
	if err != nil || hit || items != nil {
		t.Fatalf("nil cache must behave as a miss, got items=%v hit=%v err=%v", items, hit, err)
	}
	if err := c.SetMenu(context.Background(), "", false, nil); err != nil {
		t.Fatalf("nil cache set: %v", err)
	}
	if err := c.Invalidate(context.Background()); err != nil {
		t.Fatalf("nil cache invalidate: %v", err)
	}
}
