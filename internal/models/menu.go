package models

import "time"

const (
	ItemAvailable  = "available"
	ItemOutOfStock = "out_of_stock"
)

type Category struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
}

type MenuItem struct {
	MenuItemID      string     `json:"menu_item_id"`
	CategoryID      string     `json:"category_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Price           float64    `json:"price"`
	Stock           int        `json:"stock"`
	IsSpecial       bool       `json:"is_special"`
	DiscountPercent int        `json:"discount_percent"`
	DiscountStart   *time.Time `json:"discount_start,omitempty"`
	DiscountEnd     *time.Time `json:"discount_end,omitempty"`
	Status          string     `json:"status"`
	FinalPrice      float64    `json:"final_price"`
}

// StatusForStock derives availability. Status is never set independently of
// stock anywhere in the codebase.
func StatusForStock(stock int) string {
	if stock == 0 {
		return ItemOutOfStock
	}
	return ItemAvailable
}

// DiscountActive reports whether the item's discount applies at the given
// instant. A discount with no window is always active; a window bounds it on
// either side.
func (m MenuItem) DiscountActive(now time.Time) bool {
	if m.DiscountPercent <= 0 {
		return false
	}
	if m.DiscountStart != nil && now.Before(*m.DiscountStart) {
		return false
	}
	if m.DiscountEnd != nil && now.After(*m.DiscountEnd) {
		return false
	}
	return true
}

// ComputeFinalPrice returns the effective unit price at the given instant.
func (m MenuItem) ComputeFinalPrice(now time.Time) float64 {
	if !m.DiscountActive(now) {
		return m.Price
	}
	return m.Price * (1 - float64(m.DiscountPercent)/100)
}
