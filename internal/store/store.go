package store

import (
	"context"
	"encoding/json"
	"time"

	"bcafe/restaurant-service/internal/models"
)

type CreateReservationInput struct {
	FullName       string
	PhoneNumber    string
	Date           string
	Time           string
	NumberOfGuests int
	TableType      int
	Duration       int
	Type           string
	BirthdayDesign bool
	BirthdayCake   bool
	ExtraNotes     string
	TableID        string
	CreatedAt      time.Time
}

// UpdateReservationInput carries admin edits. Nil pointers leave fields
// untouched. Schedule fields (date, time, duration, table) are only editable
// while the reservation is still pending.
type UpdateReservationInput struct {
	ReservationID string
	FullName      *string
	PhoneNumber   *string
	ExtraNotes    *string
	Date          *string
	Time          *string
	Duration      *int
	TableID       *string
}

type ReservationFilter struct {
	Date     string
	TableID  string
	Approved *bool
	Upcoming bool
	Now      time.Time
}

type MenuItemInput struct {
	CategoryID      string
	Name            string
	Description     string
	Price           float64
	Stock           int
	IsSpecial       bool
	DiscountPercent int
	DiscountStart   *time.Time
	DiscountEnd     *time.Time
}

type MenuItemPatch struct {
	Name            *string
	Description     *string
	Price           *float64
	Stock           *int
	IsSpecial       *bool
	DiscountPercent *int
	DiscountStart   *time.Time
	DiscountEnd     *time.Time
}

type MenuFilter struct {
	CategoryID  string
	SpecialOnly bool
}

type OrderLine struct {
	MenuItemID string
	Quantity   int
}

type CreateOrderInput struct {
	UserID    string
	TableID   string
	Note      string
	Lines     []OrderLine
	CreatedAt time.Time
}

type ReplaceOrderItemsInput struct {
	OrderID string
	Lines   []OrderLine
	Note    *string
	TableID *string
}

type OrderStatusInput struct {
	OrderID string
	To      string
	Role    string
	ActorID string
}

type OrderFilter struct {
	UserID   string
	Statuses []string
}

type PaymentInput struct {
	OrderID string
	Amount  float64
	Role    string
	ActorID string
}

type Session struct {
	SessionID string
	UserID    string
	Role      string
	ExpiresAt time.Time
}

type OutboxEvent struct {
	Seq       int64           `json:"seq"`
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store is the persistence boundary the HTTP layer talks to. The postgres
// implementation keeps every multi-step mutation inside one transaction; a
// returned error always means nothing was committed.
type Store interface {
	CreateReservation(ctx context.Context, input CreateReservationInput) (models.Reservation, error)
	GetReservation(ctx context.Context, reservationID string) (models.Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]models.Reservation, error)
	ApproveReservation(ctx context.Context, reservationID string, approvedAt time.Time) (models.Reservation, error)
	UpdateReservation(ctx context.Context, input UpdateReservationInput) (models.Reservation, error)
	DeleteReservation(ctx context.Context, reservationID string) error

	ListAvailableTables(ctx context.Context, date, clock string) ([]models.Table, error)
	CreateTable(ctx context.Context, number, capacity int) (models.Table, error)
	ListTables(ctx context.Context) ([]models.Table, error)

	CreateCategory(ctx context.Context, name string) (models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateMenuItem(ctx context.Context, input MenuItemInput) (models.MenuItem, error)
	UpdateMenuItem(ctx context.Context, menuItemID string, patch MenuItemPatch) (models.MenuItem, error)
	GetMenuItem(ctx context.Context, menuItemID string) (models.MenuItem, error)
	ListMenuItems(ctx context.Context, filter MenuFilter) ([]models.MenuItem, error)
	DeleteMenuItem(ctx context.Context, menuItemID string) error

	CreateOrder(ctx context.Context, input CreateOrderInput) (models.Order, error)
	GetOrder(ctx context.Context, orderID string) (models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	ReplaceOrderItems(ctx context.Context, input ReplaceOrderItemsInput) (models.Order, error)
	UpdateOrderStatus(ctx context.Context, input OrderStatusInput) (models.Order, error)
	DeleteOrderItem(ctx context.Context, orderID, orderItemID string) (models.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error

	CreatePayment(ctx context.Context, input PaymentInput) (models.Payment, error)
	GetInvoice(ctx context.Context, orderID string) (models.Invoice, error)

	GetSession(ctx context.Context, sessionID string) (Session, error)
	ListOutboxEvents(ctx context.Context, afterSeq int64, limit int) ([]OutboxEvent, error)
}
