package store

import (
	"errors"
	"fmt"
)

var (
	ErrTableNotFound       = errors.New("table not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderItemNotFound   = errors.New("order item not found")
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrTimeSlotTaken       = errors.New("table already reserved for this time")
	ErrCeilingReached      = errors.New("no tables of this capacity left for this slot")
	ErrReservationLocked   = errors.New("approved reservation cannot be rescheduled")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrAccessDenied        = errors.New("access denied")
	ErrDuplicateTable      = errors.New("table number already exists")
	ErrDuplicateMenuItem   = errors.New("menu item already exists in this category")
)

// ValidationError marks a user-correctable failure on a specific field. The
// HTTP layer surfaces Field verbatim so callers know which rule fired first.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InsufficientStockError names the first order line that could not be covered
// by current stock, whether detected up front or lost to a concurrent order.
type InsufficientStockError struct {
	MenuItemID string
	Name       string
}

func (e InsufficientStockError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("not enough stock for %s", e.Name)
	}
	return fmt.Sprintf("not enough stock for item %s", e.MenuItemID)
}
