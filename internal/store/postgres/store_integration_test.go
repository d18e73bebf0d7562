package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"bcafe/restaurant-service/internal/models"
	"bcafe/restaurant-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	item := seedMenuItem(t, ctx, st, 5)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := st.CreateOrder(ctx, store.CreateOrderInput{
				UserID: user,
				Lines:  []store.OrderLine{{MenuItemID: item.MenuItemID, Quantity: 3}},
			})
			results <- err
		}(uuid.NewString())
	}
	wg.Wait()
	close(results)

	var successes, shortfalls int
	for err := range results {
		switch {
		case err == nil:
			successes++
		default:
			var short store.InsufficientStockError
			if !errors.As(err, &short) {
				t.Fatalf("unexpected error: %v", err)
			}
			shortfalls++
		}
	}
	if successes != 1 || shortfalls != 1 {
		t.Fatalf("expected exactly one order to win, got %d successes and %d shortfalls", successes, shortfalls)
	}

	var stock int
	if err := pool.QueryRow(ctx, `SELECT stock FROM menu_items WHERE menu_item_id = $1`, item.MenuItemID).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 2 {
		t.Fatalf("expected stock 2 after one successful order, got %d", stock)
	}
}

func TestDeleteOrderRestoresStock(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	item := seedMenuItem(t, ctx, st, 3)

	order, err := st.CreateOrder(ctx, store.CreateOrderInput{
		UserID: uuid.NewString(),
		Lines:  []store.OrderLine{{MenuItemID: item.MenuItemID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	var stock int
	var status string
	if err := pool.QueryRow(ctx, `SELECT stock, status FROM menu_items WHERE menu_item_id = $1`, item.MenuItemID).Scan(&stock, &status); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 0 || status != models.ItemOutOfStock {
		t.Fatalf("expected 0/out_of_stock after draining, got %d/%s", stock, status)
	}

	if err := st.DeleteOrder(ctx, order.OrderID); err != nil {
		t.Fatalf("delete order: %v", err)
	}

	if err := pool.QueryRow(ctx, `SELECT stock, status FROM menu_items WHERE menu_item_id = $1`, item.MenuItemID).Scan(&stock, &status); err != nil {
		t.Fatalf("re-read stock: %v", err)
	}
	if stock != 3 || status != models.ItemAvailable {
		t.Fatalf("deleting the order must give the stock back, got %d/%s", stock, status)
	}
}

func TestReplaceOrderItemsRebalancesStock(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	latte := seedMenuItem(t, ctx, st, 5)
	croissant := seedMenuItem(t, ctx, st, 5)

	order, err := st.CreateOrder(ctx, store.CreateOrderInput{
		UserID: uuid.NewString(),
		Lines: []store.OrderLine{
			{MenuItemID: latte.MenuItemID, Quantity: 2},
			{MenuItemID: croissant.MenuItemID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	readStock := func(menuItemID string) int {
		t.Helper()
		var stock int
		if err := pool.QueryRow(ctx, `SELECT stock FROM menu_items WHERE menu_item_id = $1`, menuItemID).Scan(&stock); err != nil {
			t.Fatalf("read stock: %v", err)
		}
		return stock
	}

	// Shrinking (latte x2, croissant x1) to (latte x1) must give one latte
	// and the croissant back.
	updated, err := st.ReplaceOrderItems(ctx, store.ReplaceOrderItemsInput{
		OrderID: order.OrderID,
		Lines:   []store.OrderLine{{MenuItemID: latte.MenuItemID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("replace items: %v", err)
	}
	if len(updated.Items) != 1 {
		t.Fatalf("expected one line after the edit, got %d", len(updated.Items))
	}
	if got := readStock(latte.MenuItemID); got != 4 {
		t.Fatalf("latte stock after edit: want 4, got %d", got)
	}
	if got := readStock(croissant.MenuItemID); got != 5 {
		t.Fatalf("croissant stock after edit: want 5, got %d", got)
	}

	// A short new line rolls the whole edit back, restores included.
	_, err = st.ReplaceOrderItems(ctx, store.ReplaceOrderItemsInput{
		OrderID: order.OrderID,
		Lines: []store.OrderLine{
			{MenuItemID: latte.MenuItemID, Quantity: 1},
			{MenuItemID: croissant.MenuItemID, Quantity: 10},
		},
	})
	var short store.InsufficientStockError
	if !errors.As(err, &short) {
		t.Fatalf("expected an insufficient-stock failure, got %v", err)
	}
	if got := readStock(latte.MenuItemID); got != 4 {
		t.Fatalf("latte stock after failed edit: want 4, got %d", got)
	}
	if got := readStock(croissant.MenuItemID); got != 5 {
		t.Fatalf("croissant stock after failed edit: want 5, got %d", got)
	}

	kept, err := st.GetOrder(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if len(kept.Items) != 1 || kept.Items[0].MenuItemID != latte.MenuItemID {
		t.Fatalf("failed edit must leave the previous lines intact: %+v", kept.Items)
	}
}

func TestConcurrentApprovalOneWins(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	table := seedTable(t, ctx, st, 1, 4)
	first := seedReservation(t, ctx, st, table, "19:00", 90)
	second := seedReservation(t, ctx, st, table, "19:30", 90)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, id := range []string{first.ReservationID, second.ReservationID} {
		wg.Add(1)
		go func(reservationID string) {
			defer wg.Done()
			_, err := st.ApproveReservation(ctx, reservationID, time.Now().UTC())
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	var approved, conflicts int
	for err := range results {
		switch {
		case err == nil:
			approved++
		case errors.Is(err, store.ErrTimeSlotTaken):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if approved != 1 || conflicts != 1 {
		t.Fatalf("expected one approval to win, got %d approvals and %d conflicts", approved, conflicts)
	}
}

func TestApprovedReservationCannotBeRescheduled(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	table := seedTable(t, ctx, st, 1, 4)
	reservation := seedReservation(t, ctx, st, table, "18:00", 60)

	if _, err := st.ApproveReservation(ctx, reservation.ReservationID, time.Now().UTC()); err != nil {
		t.Fatalf("approve: %v", err)
	}

	newTime := "20:00"
	_, err := st.UpdateReservation(ctx, store.UpdateReservationInput{
		ReservationID: reservation.ReservationID,
		Time:          &newTime,
	})
	if !errors.Is(err, store.ErrReservationLocked) {
		t.Fatalf("expected ErrReservationLocked, got %v", err)
	}

	// Contact edits stay open after approval.
	name := "New Name"
	if _, err := st.UpdateReservation(ctx, store.UpdateReservationInput{
		ReservationID: reservation.ReservationID,
		FullName:      &name,
	}); err != nil {
		t.Fatalf("contact edit after approval: %v", err)
	}
}

func TestPaymentSettlesOrderAndInvoice(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	item := seedMenuItem(t, ctx, st, 10)
	userID := uuid.NewString()

	order, err := st.CreateOrder(ctx, store.CreateOrderInput{
		UserID: userID,
		Lines:  []store.OrderLine{{MenuItemID: item.MenuItemID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := st.UpdateOrderStatus(ctx, store.OrderStatusInput{
		OrderID: order.OrderID,
		To:      models.OrderConfirmed,
		Role:    models.RoleWaiter,
		ActorID: uuid.NewString(),
	}); err != nil {
		t.Fatalf("confirm order: %v", err)
	}

	// Wrong amount is refused before anything is written.
	_, err = st.CreatePayment(ctx, store.PaymentInput{
		OrderID: order.OrderID,
		Amount:  order.TotalPrice + 1,
		Role:    models.RoleCashier,
	})
	var validation store.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected amount validation error, got %v", err)
	}

	payment, err := st.CreatePayment(ctx, store.PaymentInput{
		OrderID: order.OrderID,
		Amount:  order.TotalPrice,
		Role:    models.RoleCashier,
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if payment.Status != "paid" {
		t.Fatalf("unexpected payment status %q", payment.Status)
	}

	settled, err := st.GetOrder(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if settled.Status != models.OrderPaid {
		t.Fatalf("expected paid order, got %q", settled.Status)
	}

	invoice, err := st.GetInvoice(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if !invoice.IsPaid || invoice.PaidAt == nil {
		t.Fatalf("invoice should be settled, got %+v", invoice)
	}
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	st := NewStore(pool, Options{})
	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return st, pool, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}

func seedTable(t *testing.T, ctx context.Context, st *Store, number, capacity int) models.Table {
	t.Helper()
	table, err := st.CreateTable(ctx, number, capacity)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return table
}

func seedReservation(t *testing.T, ctx context.Context, st *Store, table models.Table, clock string, duration int) models.Reservation {
	t.Helper()
	reservation, err := st.CreateReservation(ctx, store.CreateReservationInput{
		FullName:       "Sara Ahmadi",
		PhoneNumber:    "09121234567",
		Date:           time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
		Time:           clock,
		NumberOfGuests: table.Capacity,
		TableType:      table.Capacity,
		Duration:       duration,
		Type:           models.ReservationTypeNormal,
		TableID:        table.TableID,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}
	return reservation
}

func seedMenuItem(t *testing.T, ctx context.Context, st *Store, stock int) models.MenuItem {
	t.Helper()
	category, err := st.CreateCategory(ctx, "Coffee "+uuid.NewString())
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	item, err := st.CreateMenuItem(ctx, store.MenuItemInput{
		CategoryID: category.CategoryID,
		Name:       "Espresso",
		Price:      4.5,
		Stock:      stock,
	})
	if err != nil {
		t.Fatalf("create menu item: %v", err)
	}
	return item
}
