package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bcafe/restaurant-service/internal/models"
	"bcafe/restaurant-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateCategory(ctx context.Context, name string) (models.Category, error) {
	if name == "" {
		return models.Category{}, store.ValidationError{Field: "name", Message: "name is required"}
	}
	category := models.Category{CategoryID: uuid.NewString(), Name: name}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO categories (category_id, name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, category.CategoryID, category.Name)
	if err != nil {
		return models.Category{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.Category{}, store.ValidationError{Field: "name", Message: "category already exists"}
	}
	return category, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category_id, name FROM categories ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var category models.Category
		if err := rows.Scan(&category.CategoryID, &category.Name); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (s *Store) CreateMenuItem(ctx context.Context, input store.MenuItemInput) (models.MenuItem, error) {
	if err := validateMenuFields(input.Name, input.Price, input.Stock, input.DiscountPercent); err != nil {
		return models.MenuItem{}, err
	}

	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM categories WHERE category_id = $1)
	`, input.CategoryID).Scan(&exists)
	if err != nil {
		return models.MenuItem{}, err
	}
	if !exists {
		return models.MenuItem{}, store.ErrCategoryNotFound
	}

	item := models.MenuItem{
		MenuItemID:      uuid.NewString(),
		CategoryID:      input.CategoryID,
		Name:            input.Name,
		Description:     input.Description,
		Price:           input.Price,
		Stock:           input.Stock,
		IsSpecial:       input.IsSpecial,
		DiscountPercent: input.DiscountPercent,
		DiscountStart:   input.DiscountStart,
		DiscountEnd:     input.DiscountEnd,
		Status:          models.StatusForStock(input.Stock),
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO menu_items (
			menu_item_id, category_id, name, description, price, stock, is_special,
			discount_percent, discount_start, discount_end, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (category_id, name) DO NOTHING
	`, item.MenuItemID, item.CategoryID, item.Name, nullIfEmpty(item.Description),
		item.Price, item.Stock, item.IsSpecial, item.DiscountPercent,
		item.DiscountStart, item.DiscountEnd, item.Status)
	if err != nil {
		return models.MenuItem{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.MenuItem{}, store.ErrDuplicateMenuItem
	}

	item.FinalPrice = item.ComputeFinalPrice(time.Now())
	return item, nil
}

func (s *Store) UpdateMenuItem(ctx context.Context, menuItemID string, patch store.MenuItemPatch) (models.MenuItem, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.MenuItem{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	item, err := findMenuItemForUpdate(ctx, tx, menuItemID)
	if err != nil {
		return models.MenuItem{}, err
	}

	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Price != nil {
		item.Price = *patch.Price
	}
	if patch.Stock != nil {
		item.Stock = *patch.Stock
	}
	if patch.IsSpecial != nil {
		item.IsSpecial = *patch.IsSpecial
	}
	if patch.DiscountPercent != nil {
		item.DiscountPercent = *patch.DiscountPercent
	}
	if patch.DiscountStart != nil {
		item.DiscountStart = patch.DiscountStart
	}
	if patch.DiscountEnd != nil {
		item.DiscountEnd = patch.DiscountEnd
	}

	if err = validateMenuFields(item.Name, item.Price, item.Stock, item.DiscountPercent); err != nil {
		return models.MenuItem{}, err
	}

	// Status follows stock on every save; a direct stock edit retires or
	// revives the item the same way an order does.
	item.Status = models.StatusForStock(item.Stock)

	_, err = tx.Exec(ctx, `
		UPDATE menu_items
		SET name = $1, description = $2, price = $3, stock = $4, is_special = $5,
		    discount_percent = $6, discount_start = $7, discount_end = $8, status = $9
		WHERE menu_item_id = $10
	`, item.Name, nullIfEmpty(item.Description), item.Price, item.Stock, item.IsSpecial,
		item.DiscountPercent, item.DiscountStart, item.DiscountEnd, item.Status, item.MenuItemID)
	if err != nil {
		return models.MenuItem{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.MenuItem{}, err
	}

	item.FinalPrice = item.ComputeFinalPrice(time.Now())
	return item, nil
}

func (s *Store) GetMenuItem(ctx context.Context, menuItemID string) (models.MenuItem, error) {
	item, err := scanMenuItem(s.pool.QueryRow(ctx, `
		SELECT `+menuItemColumns+`
		FROM menu_items
		WHERE menu_item_id = $1 AND NOT is_deleted
	`, menuItemID))
	if err != nil {
		return models.MenuItem{}, err
	}
	item.FinalPrice = item.ComputeFinalPrice(time.Now())
	return item, nil
}

func (s *Store) ListMenuItems(ctx context.Context, filter store.MenuFilter) ([]models.MenuItem, error) {
	query := `
		SELECT ` + menuItemColumns + `
		FROM menu_items
		WHERE NOT is_deleted
	`
	var args []any
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		query += " AND category_id = $1"
	}
	if filter.SpecialOnly {
		query += " AND is_special"
	}
	query += " ORDER BY name ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	var items []models.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		item.FinalPrice = item.ComputeFinalPrice(now)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) DeleteMenuItem(ctx context.Context, menuItemID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE menu_items SET is_deleted = TRUE
		WHERE menu_item_id = $1 AND NOT is_deleted
	`, menuItemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrMenuItemNotFound
	}
	return nil
}

const menuItemColumns = `menu_item_id, category_id, name, description, price, stock,
	is_special, discount_percent, discount_start, discount_end, status`

func scanMenuItem(row pgx.Row) (models.MenuItem, error) {
	var item models.MenuItem
	var description sql.NullString
	var discountStart, discountEnd sql.NullTime
	err := row.Scan(
		&item.MenuItemID, &item.CategoryID, &item.Name, &description,
		&item.Price, &item.Stock, &item.IsSpecial, &item.DiscountPercent,
		&discountStart, &discountEnd, &item.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.MenuItem{}, store.ErrMenuItemNotFound
		}
		return models.MenuItem{}, err
	}
	item.Description = textOrEmpty(description)
	item.DiscountStart = nullTimePtr(discountStart)
	item.DiscountEnd = nullTimePtr(discountEnd)
	return item, nil
}

func findMenuItemForUpdate(ctx context.Context, tx pgx.Tx, menuItemID string) (models.MenuItem, error) {
	return scanMenuItem(tx.QueryRow(ctx, `
		SELECT `+menuItemColumns+`
		FROM menu_items
		WHERE menu_item_id = $1 AND NOT is_deleted
		FOR UPDATE
	`, menuItemID))
}

func validateMenuFields(name string, price float64, stock, discount int) error {
	if name == "" {
		return store.ValidationError{Field: "name", Message: "name is required"}
	}
	if price < 0 {
		return store.ValidationError{Field: "price", Message: "price cannot be negative"}
	}
	if stock < 0 {
		return store.ValidationError{Field: "stock", Message: "stock cannot be negative"}
	}
	if discount < 0 || discount > 100 {
		return store.ValidationError{Field: "discount_percent", Message: "discount percent must be between 0 and 100"}
	}
	return nil
}
