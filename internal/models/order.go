package models

import "time"

const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderPaid      = "paid"
	OrderCancelled = "cancelled"
)

const (
	RoleAdmin    = "admin"
	RoleCashier  = "cashier"
	RoleWaiter   = "waiter"
	RoleCustomer = "customer"
)

type Order struct {
	OrderID    string      `json:"order_id"`
	UserID     string      `json:"user_id"`
	TableID    *string     `json:"table_id,omitempty"`
	Status     string      `json:"status"`
	Note       string      `json:"note,omitempty"`
	Items      []OrderItem `json:"items"`
	TotalPrice float64     `json:"total_price"`
	CreatedAt  time.Time   `json:"created_at"`
}

type OrderItem struct {
	OrderItemID string  `json:"order_item_id"`
	OrderID     string  `json:"order_id,omitempty"`
	MenuItemID  string  `json:"menu_item_id"`
	Name        string  `json:"name"`
	Quantity    int     `json:"quantity"`
	FinalPrice  float64 `json:"final_price"`
	TotalPrice  float64 `json:"total_price"`
}

type Payment struct {
	PaymentID string    `json:"payment_id"`
	OrderID   string    `json:"order_id"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Invoice struct {
	InvoiceID string     `json:"invoice_id"`
	OrderID   string     `json:"order_id"`
	IsPaid    bool       `json:"is_paid"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleCashier, RoleWaiter, RoleCustomer:
		return true
	}
	return false
}
