package postgres

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"bcafe/restaurant-service/internal/models"
	"bcafe/restaurant-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateOrder(ctx context.Context, input store.CreateOrderInput) (models.Order, error) {
	if len(input.Lines) == 0 {
		return models.Order{}, store.ValidationError{Field: "items", Message: "order must have at least one item"}
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return models.Order{}, store.ValidationError{Field: "quantity", Message: "quantity must be positive"}
		}
	}

	now := input.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Order{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if input.TableID != "" {
		if _, err = findTable(ctx, tx, input.TableID); err != nil {
			return models.Order{}, err
		}
	}

	orderID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (order_id, user_id, table_id, status, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, orderID, input.UserID, nullIfEmpty(input.TableID), models.OrderPending,
		nullIfEmpty(input.Note), now.UTC())
	if err != nil {
		return models.Order{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO invoices (invoice_id, order_id) VALUES ($1, $2)
	`, uuid.NewString(), orderID)
	if err != nil {
		return models.Order{}, err
	}

	// Lines are processed in request order so the first short item is the
	// one reported. Any failure rolls back the decrements already applied.
	for _, line := range input.Lines {
		if err = consumeStock(ctx, tx, line.MenuItemID, line.Quantity); err != nil {
			return models.Order{}, err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_item_id, order_id, menu_item_id, quantity)
			VALUES ($1, $2, $3, $4)
		`, uuid.NewString(), orderID, line.MenuItemID, line.Quantity)
		if err != nil {
			return models.Order{}, err
		}
	}

	order, err := loadOrder(ctx, tx, orderID, now)
	if err != nil {
		return models.Order{}, err
	}

	if err = insertOutboxEvent(ctx, tx, "order_created", order); err != nil {
		return models.Order{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	return loadOrder(ctx, s.pool, orderID, time.Now())
}

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error) {
	query := `
		SELECT order_id FROM orders WHERE NOT is_deleted
	`
	var args []any
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += " AND user_id = $1"
	}
	if len(filter.Statuses) > 0 {
		args = append(args, filter.Statuses)
		if filter.UserID != "" {
			query += " AND status = ANY($2)"
		} else {
			query += " AND status = ANY($1)"
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	orders := make([]models.Order, 0, len(ids))
	for _, id := range ids {
		order, err := loadOrder(ctx, s.pool, id, now)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (s *Store) ReplaceOrderItems(ctx context.Context, input store.ReplaceOrderItemsInput) (models.Order, error) {
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return models.Order{}, store.ValidationError{Field: "quantity", Message: "quantity must be positive"}
		}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Order{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	order, err := findOrderForUpdate(ctx, tx, input.OrderID)
	if err != nil {
		return models.Order{}, err
	}
	if order.Status == models.OrderPaid || order.Status == models.OrderCancelled {
		err = store.ValidationError{Field: "status", Message: "order can no longer be modified"}
		return models.Order{}, err
	}

	// Lines are optional on an edit: without them only note/table change and
	// stock is untouched. Restore-then-reconsume runs inside one transaction,
	// so if any new line fails the restores roll back with everything else.
	if len(input.Lines) > 0 {
		var existing []lineRow
		existing, err = orderLines(ctx, tx, order.OrderID)
		if err != nil {
			return models.Order{}, err
		}
		for _, line := range existing {
			if err = restoreStock(ctx, tx, line.MenuItemID, line.Quantity); err != nil {
				return models.Order{}, err
			}
		}
		_, err = tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.OrderID)
		if err != nil {
			return models.Order{}, err
		}

		for _, line := range input.Lines {
			if err = consumeStock(ctx, tx, line.MenuItemID, line.Quantity); err != nil {
				return models.Order{}, err
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO order_items (order_item_id, order_id, menu_item_id, quantity)
				VALUES ($1, $2, $3, $4)
			`, uuid.NewString(), order.OrderID, line.MenuItemID, line.Quantity)
			if err != nil {
				return models.Order{}, err
			}
		}
	}

	if input.Note != nil || input.TableID != nil {
		note := order.Note
		if input.Note != nil {
			note = *input.Note
		}
		tableID := ""
		if order.TableID != nil {
			tableID = *order.TableID
		}
		if input.TableID != nil {
			tableID = *input.TableID
		}
		if tableID != "" {
			if _, err = findTable(ctx, tx, tableID); err != nil {
				return models.Order{}, err
			}
		}
		_, err = tx.Exec(ctx, `
			UPDATE orders SET note = $1, table_id = $2 WHERE order_id = $3
		`, nullIfEmpty(note), nullIfEmpty(tableID), order.OrderID)
		if err != nil {
			return models.Order{}, err
		}
	}

	updated, err := loadOrder(ctx, tx, order.OrderID, time.Now())
	if err != nil {
		return models.Order{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, err
	}
	return updated, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, input store.OrderStatusInput) (models.Order, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Order{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	order, err := findOrderForUpdate(ctx, tx, input.OrderID)
	if err != nil {
		return models.Order{}, err
	}

	if !store.ValidOrderTransition(order.Status, input.To) {
		err = store.ErrInvalidTransition
		return models.Order{}, err
	}
	if input.Role == models.RoleCustomer && input.ActorID != order.UserID {
		err = store.ErrAccessDenied
		return models.Order{}, err
	}
	if !store.RoleMayTransition(input.Role, order.Status, input.To) {
		err = store.ErrAccessDenied
		return models.Order{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders SET status = $1 WHERE order_id = $2
	`, input.To, order.OrderID)
	if err != nil {
		return models.Order{}, err
	}

	updated, err := loadOrder(ctx, tx, order.OrderID, time.Now())
	if err != nil {
		return models.Order{}, err
	}

	if input.To == models.OrderPaid {
		if err = markInvoicePaid(ctx, tx, order.OrderID); err != nil {
			return models.Order{}, err
		}
		if err = insertOutboxEvent(ctx, tx, "order_paid", updated); err != nil {
			return models.Order{}, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, err
	}
	return updated, nil
}

func (s *Store) DeleteOrderItem(ctx context.Context, orderID, orderItemID string) (models.Order, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Order{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	order, err := findOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if order.Status == models.OrderPaid || order.Status == models.OrderCancelled {
		err = store.ValidationError{Field: "status", Message: "order can no longer be modified"}
		return models.Order{}, err
	}

	var menuItemID string
	var quantity int
	err = tx.QueryRow(ctx, `
		SELECT menu_item_id, quantity FROM order_items
		WHERE order_item_id = $1 AND order_id = $2
	`, orderItemID, orderID).Scan(&menuItemID, &quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrOrderItemNotFound
		}
		return models.Order{}, err
	}

	if err = restoreStock(ctx, tx, menuItemID, quantity); err != nil {
		return models.Order{}, err
	}
	_, err = tx.Exec(ctx, `DELETE FROM order_items WHERE order_item_id = $1`, orderItemID)
	if err != nil {
		return models.Order{}, err
	}

	updated, err := loadOrder(ctx, tx, orderID, time.Now())
	if err != nil {
		return models.Order{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, err
	}
	return updated, nil
}

func (s *Store) DeleteOrder(ctx context.Context, orderID string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	order, err := findOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}

	lines, err := orderLines(ctx, tx, order.OrderID)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if err = restoreStock(ctx, tx, line.MenuItemID, line.Quantity); err != nil {
			return err
		}
	}
	_, err = tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.OrderID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE orders SET is_deleted = TRUE WHERE order_id = $1`, order.OrderID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) CreatePayment(ctx context.Context, input store.PaymentInput) (models.Payment, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Payment{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	order, err := findOrderForUpdate(ctx, tx, input.OrderID)
	if err != nil {
		return models.Payment{}, err
	}
	if !store.RoleMayTransition(input.Role, order.Status, models.OrderPaid) {
		if store.ValidOrderTransition(order.Status, models.OrderPaid) {
			err = store.ErrAccessDenied
		} else {
			err = store.ErrInvalidTransition
		}
		return models.Payment{}, err
	}

	full, err := loadOrder(ctx, tx, order.OrderID, time.Now())
	if err != nil {
		return models.Payment{}, err
	}
	if math.Abs(input.Amount-full.TotalPrice) > 0.005 {
		err = store.ValidationError{Field: "amount", Message: "amount does not match the order total"}
		return models.Payment{}, err
	}

	payment := models.Payment{
		PaymentID: uuid.NewString(),
		OrderID:   order.OrderID,
		Amount:    input.Amount,
		Status:    "paid",
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO payments (payment_id, order_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, payment.PaymentID, payment.OrderID, payment.Amount, payment.Status, payment.CreatedAt)
	if err != nil {
		return models.Payment{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders SET status = $1 WHERE order_id = $2
	`, models.OrderPaid, order.OrderID)
	if err != nil {
		return models.Payment{}, err
	}
	if err = markInvoicePaid(ctx, tx, order.OrderID); err != nil {
		return models.Payment{}, err
	}

	full.Status = models.OrderPaid
	if err = insertOutboxEvent(ctx, tx, "order_paid", full); err != nil {
		return models.Payment{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Payment{}, err
	}
	return payment, nil
}

func (s *Store) GetInvoice(ctx context.Context, orderID string) (models.Invoice, error) {
	var invoice models.Invoice
	var paidAt sql.NullTime
	err := s.pool.QueryRow(ctx, `
		SELECT invoice_id, order_id, is_paid, paid_at FROM invoices WHERE order_id = $1
	`, orderID).Scan(&invoice.InvoiceID, &invoice.OrderID, &invoice.IsPaid, &paidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Invoice{}, store.ErrInvoiceNotFound
		}
		return models.Invoice{}, err
	}
	invoice.PaidAt = nullTimePtr(paidAt)
	return invoice, nil
}

// consumeStock applies the guarded decrement: the WHERE clause is the
// compare-and-swap that makes concurrent orders against the same item safe.
// Zero rows affected means the item is missing, retired, or short on stock.
func consumeStock(ctx context.Context, tx pgx.Tx, menuItemID string, quantity int) error {
	var name string
	err := tx.QueryRow(ctx, `
		UPDATE menu_items
		SET stock = stock - $2,
		    status = CASE WHEN stock - $2 = 0 THEN 'out_of_stock' ELSE 'available' END
		WHERE menu_item_id = $1 AND NOT is_deleted AND stock >= $2
		RETURNING name
	`, menuItemID, quantity).Scan(&name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	err = tx.QueryRow(ctx, `
		SELECT name FROM menu_items WHERE menu_item_id = $1 AND NOT is_deleted
	`, menuItemID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrMenuItemNotFound
	}
	if err != nil {
		return err
	}
	return store.InsufficientStockError{MenuItemID: menuItemID, Name: name}
}

func restoreStock(ctx context.Context, tx pgx.Tx, menuItemID string, quantity int) error {
	// quantity is positive, so the item is available again afterwards.
	_, err := tx.Exec(ctx, `
		UPDATE menu_items
		SET stock = stock + $2, status = 'available'
		WHERE menu_item_id = $1
	`, menuItemID, quantity)
	return err
}

func markInvoicePaid(ctx context.Context, tx pgx.Tx, orderID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE invoices SET is_paid = TRUE, paid_at = now()
		WHERE order_id = $1 AND NOT is_paid
	`, orderID)
	return err
}

func findOrderForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (models.Order, error) {
	var order models.Order
	var tableID sql.NullString
	var note sql.NullString
	err := tx.QueryRow(ctx, `
		SELECT order_id, user_id, table_id, status, note, created_at
		FROM orders
		WHERE order_id = $1 AND NOT is_deleted
		FOR UPDATE
	`, orderID).Scan(&order.OrderID, &order.UserID, &tableID, &order.Status, &note, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, store.ErrOrderNotFound
		}
		return models.Order{}, err
	}
	order.TableID = nullStringPtr(tableID)
	order.Note = textOrEmpty(note)
	return order, nil
}

type lineRow struct {
	OrderItemID string
	MenuItemID  string
	Quantity    int
}

func orderLines(ctx context.Context, tx pgx.Tx, orderID string) ([]lineRow, error) {
	rows, err := tx.Query(ctx, `
		SELECT order_item_id, menu_item_id, quantity FROM order_items WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []lineRow
	for rows.Next() {
		var line lineRow
		if err := rows.Scan(&line.OrderItemID, &line.MenuItemID, &line.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// loadOrder assembles an order with its lines and computes every derived
// price at read time; totals are never stored.
func loadOrder(ctx context.Context, q querier, orderID string, now time.Time) (models.Order, error) {
	var order models.Order
	var tableID sql.NullString
	var note sql.NullString
	err := q.QueryRow(ctx, `
		SELECT order_id, user_id, table_id, status, note, created_at
		FROM orders
		WHERE order_id = $1 AND NOT is_deleted
	`, orderID).Scan(&order.OrderID, &order.UserID, &tableID, &order.Status, &note, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, store.ErrOrderNotFound
		}
		return models.Order{}, err
	}
	order.TableID = nullStringPtr(tableID)
	order.Note = textOrEmpty(note)

	rows, err := q.Query(ctx, `
		SELECT oi.order_item_id, oi.menu_item_id, oi.quantity,
		       m.name, m.price, m.discount_percent, m.discount_start, m.discount_end
		FROM order_items oi
		JOIN menu_items m ON m.menu_item_id = oi.menu_item_id
		WHERE oi.order_id = $1
	`, orderID)
	if err != nil {
		return models.Order{}, err
	}
	defer rows.Close()

	order.Items = []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		var menu models.MenuItem
		var discountStart, discountEnd sql.NullTime
		err := rows.Scan(&item.OrderItemID, &item.MenuItemID, &item.Quantity,
			&menu.Name, &menu.Price, &menu.DiscountPercent, &discountStart, &discountEnd)
		if err != nil {
			return models.Order{}, err
		}
		menu.DiscountStart = nullTimePtr(discountStart)
		menu.DiscountEnd = nullTimePtr(discountEnd)

		item.OrderID = order.OrderID
		item.Name = menu.Name
		item.FinalPrice = menu.ComputeFinalPrice(now)
		item.TotalPrice = item.FinalPrice * float64(item.Quantity)
		order.TotalPrice += item.TotalPrice
		order.Items = append(order.Items, item)
	}
	return order, rows.Err()
}
