package store

import "bcafe/restaurant-service/internal/models"

// orderTransitions lists the allowed status edges and the roles that may take
// them. paid and cancelled are terminal; there is no way back to pending.
var orderTransitions = map[string]map[string][]string{
	models.OrderPending: {
		models.OrderConfirmed: {models.RoleWaiter, models.RoleAdmin},
		models.OrderCancelled: {models.RoleCustomer, models.RoleCashier, models.RoleAdmin},
	},
	models.OrderConfirmed: {
		models.OrderPaid:      {models.RoleCashier},
		models.OrderCancelled: {models.RoleCustomer, models.RoleCashier, models.RoleAdmin},
	},
}

func ValidOrderTransition(from, to string) bool {
	_, ok := orderTransitions[from][to]
	return ok
}

func RoleMayTransition(role, from, to string) bool {
	roles, ok := orderTransitions[from][to]
	if !ok {
		return false
	}
	for _, allowed := range roles {
		if allowed == role {
			return true
		}
	}
	return false
}
