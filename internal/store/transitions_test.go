package store

import (
	"testing"

	"bcafe/restaurant-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestValidOrderTransition(t *testing.T) {
	assert.True(t, ValidOrderTransition(models.OrderPending, models.OrderConfirmed))
	assert.True(t, ValidOrderTransition(models.OrderPending, models.OrderCancelled))
	assert.True(t, ValidOrderTransition(models.OrderConfirmed, models.OrderPaid))
	assert.True(t, ValidOrderTransition(models.OrderConfirmed, models.OrderCancelled))

	// Terminal states stay terminal.
	assert.False(t, ValidOrderTransition(models.OrderPaid, models.OrderPending))
	assert.False(t, ValidOrderTransition(models.OrderPaid, models.OrderCancelled))
	assert.False(t, ValidOrderTransition(models.OrderCancelled, models.OrderPending))

	assert.False(t, ValidOrderTransition(models.OrderPending, models.OrderPaid), "pending cannot jump straight to paid")
}

func TestRoleMayTransition(t *testing.T) {
	assert.True(t, RoleMayTransition(models.RoleWaiter, models.OrderPending, models.OrderConfirmed))
	assert.True(t, RoleMayTransition(models.RoleAdmin, models.OrderPending, models.OrderConfirmed))
	assert.False(t, RoleMayTransition(models.RoleCustomer, models.OrderPending, models.OrderConfirmed))

	// Only the cashier settles an order.
	assert.True(t, RoleMayTransition(models.RoleCashier, models.OrderConfirmed, models.OrderPaid))
	assert.False(t, RoleMayTransition(models.RoleAdmin, models.OrderConfirmed, models.OrderPaid))
	assert.False(t, RoleMayTransition(models.RoleWaiter, models.OrderConfirmed, models.OrderPaid))

	assert.True(t, RoleMayTransition(models.RoleCustomer, models.OrderPending, models.OrderCancelled))
	assert.True(t, RoleMayTransition(models.RoleCustomer, models.OrderConfirmed, models.OrderCancelled))
	assert.False(t, RoleMayTransition(models.RoleWaiter, models.OrderPending, models.OrderCancelled))

	assert.False(t, RoleMayTransition(models.RoleCashier, models.OrderPaid, models.OrderCancelled))
}
