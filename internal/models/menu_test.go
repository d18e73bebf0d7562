package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusForStock(t *testing.T) {
	assert.Equal(t, ItemOutOfStock, StatusForStock(0))
	assert.Equal(t, ItemAvailable, StatusForStock(1))
	assert.Equal(t, ItemAvailable, StatusForStock(250))
}

func TestDiscountActive(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	item := MenuItem{Price: 100, DiscountPercent: 20}
	assert.True(t, item.DiscountActive(now), "a discount with no window is always active")

	item.DiscountStart = &before
	item.DiscountEnd = &after
	assert.True(t, item.DiscountActive(now))

	item.DiscountStart = &after
	item.DiscountEnd = nil
	assert.False(t, item.DiscountActive(now), "window has not opened yet")

	item.DiscountStart = nil
	item.DiscountEnd = &before
	assert.False(t, item.DiscountActive(now), "window already closed")

	item = MenuItem{Price: 100, DiscountPercent: 0}
	assert.False(t, item.DiscountActive(now))
}

func TestComputeFinalPrice(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	item := MenuItem{Price: 200, DiscountPercent: 25}
	assert.InDelta(t, 150.0, item.ComputeFinalPrice(now), 0.001)

	closed := now.Add(-time.Hour)
	item.DiscountEnd = &closed
	assert.InDelta(t, 200.0, item.ComputeFinalPrice(now), 0.001, "expired discount falls back to list price")

	item = MenuItem{Price: 80}
	assert.InDelta(t, 80.0, item.ComputeFinalPrice(now), 0.001)
}
