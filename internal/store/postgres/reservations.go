package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"time"

	"bcafe/restaurant-service/internal/models"
	"bcafe/restaurant-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateReservation(ctx context.Context, input store.CreateReservationInput) (models.Reservation, error) {
	now := input.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}

	// Rule 1 fires before the table lookup, so an out-of-hours request is
	// reported as such even when the table reference is bad too.
	if !s.policy.AllowsStart(input.Time) {
		return models.Reservation{}, store.ValidationError{Field: "time", Message: "time is outside service hours"}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Reservation{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	table, err := findTable(ctx, tx, input.TableID)
	if err != nil {
		return models.Reservation{}, err
	}

	if err = lockClasses(ctx, tx, input.TableType, table.Capacity); err != nil {
		return models.Reservation{}, err
	}

	approved, err := approvedOnTable(ctx, tx, table.TableID, input.Date, "")
	if err != nil {
		return models.Reservation{}, err
	}

	slotCount, err := approvedInSlot(ctx, tx, input.TableType, input.Date, input.Time)
	if err != nil {
		return models.Reservation{}, err
	}

	if err = store.ValidateBooking(input, table, approved, slotCount, now, s.policy); err != nil {
		return models.Reservation{}, err
	}

	reservation := models.Reservation{
		ReservationID:  uuid.NewString(),
		FullName:       input.FullName,
		PhoneNumber:    input.PhoneNumber,
		Date:           input.Date,
		Time:           input.Time,
		NumberOfGuests: input.NumberOfGuests,
		TableType:      input.TableType,
		Duration:       input.Duration,
		Type:           input.Type,
		BirthdayDesign: input.BirthdayDesign,
		BirthdayCake:   input.BirthdayCake,
		ExtraNotes:     input.ExtraNotes,
		TableID:        table.TableID,
		CreatedAt:      now.UTC(),
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reservations (
			reservation_id, full_name, phone_number, date, start_time, number_of_guests,
			table_type, duration_minutes, reservation_type, birthday_design, birthday_cake,
			extra_notes, table_id, approved, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,FALSE,$14)
	`, reservation.ReservationID, reservation.FullName, reservation.PhoneNumber,
		reservation.Date, reservation.Time, reservation.NumberOfGuests,
		reservation.TableType, reservation.Duration, reservation.Type,
		reservation.BirthdayDesign, reservation.BirthdayCake,
		nullIfEmpty(reservation.ExtraNotes), reservation.TableID, reservation.CreatedAt)
	if err != nil {
		return models.Reservation{}, err
	}

	if err = insertOutboxEvent(ctx, tx, "reservation_created", reservation); err != nil {
		return models.Reservation{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Reservation{}, err
	}
	return reservation, nil
}

func (s *Store) ApproveReservation(ctx context.Context, reservationID string, approvedAt time.Time) (models.Reservation, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Reservation{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	reservation, err := findReservationForUpdate(ctx, tx, reservationID)
	if err != nil {
		return models.Reservation{}, err
	}
	if reservation.Approved {
		if err = tx.Commit(ctx); err != nil {
			return models.Reservation{}, err
		}
		return reservation, nil
	}

	table, err := findTable(ctx, tx, reservation.TableID)
	if err != nil {
		return models.Reservation{}, err
	}

	if err = lockClasses(ctx, tx, reservation.TableType, table.Capacity); err != nil {
		return models.Reservation{}, err
	}

	otherApproved, err := approvedOnTable(ctx, tx, reservation.TableID, reservation.Date, reservation.ReservationID)
	if err != nil {
		return models.Reservation{}, err
	}

	slotCount, err := approvedInSlot(ctx, tx, reservation.TableType, reservation.Date, reservation.Time)
	if err != nil {
		return models.Reservation{}, err
	}

	if err = store.RevalidateApproval(reservation, otherApproved, slotCount, s.policy); err != nil {
		return models.Reservation{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE reservations SET approved = TRUE WHERE reservation_id = $1
	`, reservation.ReservationID)
	if err != nil {
		return models.Reservation{}, err
	}
	reservation.Approved = true

	if err = insertOutboxEvent(ctx, tx, "reservation_approved", reservation); err != nil {
		return models.Reservation{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Reservation{}, err
	}
	return reservation, nil
}

func (s *Store) UpdateReservation(ctx context.Context, input store.UpdateReservationInput) (models.Reservation, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Reservation{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	reservation, err := findReservationForUpdate(ctx, tx, input.ReservationID)
	if err != nil {
		return models.Reservation{}, err
	}

	rescheduled := input.Date != nil || input.Time != nil || input.Duration != nil || input.TableID != nil
	if reservation.Approved && rescheduled {
		err = store.ErrReservationLocked
		return models.Reservation{}, err
	}

	if input.FullName != nil {
		reservation.FullName = *input.FullName
	}
	if input.PhoneNumber != nil {
		reservation.PhoneNumber = *input.PhoneNumber
	}
	if input.ExtraNotes != nil {
		reservation.ExtraNotes = *input.ExtraNotes
	}
	if input.Date != nil {
		reservation.Date = *input.Date
	}
	if input.Time != nil {
		reservation.Time = *input.Time
	}
	if input.Duration != nil {
		reservation.Duration = *input.Duration
	}
	if input.TableID != nil {
		reservation.TableID = *input.TableID
	}

	if rescheduled {
		if !s.policy.AllowsStart(reservation.Time) {
			err = store.ValidationError{Field: "time", Message: "time is outside service hours"}
			return models.Reservation{}, err
		}
		var table models.Table
		table, err = findTable(ctx, tx, reservation.TableID)
		if err != nil {
			return models.Reservation{}, err
		}
		if err = lockClasses(ctx, tx, reservation.TableType, table.Capacity); err != nil {
			return models.Reservation{}, err
		}
		var approved []models.Reservation
		approved, err = approvedOnTable(ctx, tx, table.TableID, reservation.Date, reservation.ReservationID)
		if err != nil {
			return models.Reservation{}, err
		}
		var slotCount int
		slotCount, err = approvedInSlot(ctx, tx, reservation.TableType, reservation.Date, reservation.Time)
		if err != nil {
			return models.Reservation{}, err
		}
		revalidate := store.CreateReservationInput{
			Date:           reservation.Date,
			Time:           reservation.Time,
			NumberOfGuests: reservation.NumberOfGuests,
			TableType:      reservation.TableType,
			Duration:       reservation.Duration,
			Type:           reservation.Type,
			BirthdayDesign: reservation.BirthdayDesign,
			BirthdayCake:   reservation.BirthdayCake,
			TableID:        table.TableID,
		}
		if err = store.ValidateBooking(revalidate, table, approved, slotCount, time.Now(), s.policy); err != nil {
			return models.Reservation{}, err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE reservations
		SET full_name = $1, phone_number = $2, extra_notes = $3,
		    date = $4, start_time = $5, duration_minutes = $6, table_id = $7
		WHERE reservation_id = $8
	`, reservation.FullName, reservation.PhoneNumber, nullIfEmpty(reservation.ExtraNotes),
		reservation.Date, reservation.Time, reservation.Duration, reservation.TableID,
		reservation.ReservationID)
	if err != nil {
		return models.Reservation{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Reservation{}, err
	}
	return reservation, nil
}

func (s *Store) GetReservation(ctx context.Context, reservationID string) (models.Reservation, error) {
	return scanReservation(s.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE reservation_id = $1 AND NOT is_deleted
	`, reservationID))
}

func (s *Store) ListReservations(ctx context.Context, filter store.ReservationFilter) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE NOT is_deleted
	`
	var args []any
	arg := func(value any) string {
		args = append(args, value)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Date != "" {
		query += " AND date = " + arg(filter.Date)
	}
	if filter.TableID != "" {
		query += " AND table_id = " + arg(filter.TableID)
	}
	if filter.Approved != nil {
		query += " AND approved = " + arg(*filter.Approved)
	}
	if filter.Upcoming {
		now := filter.Now
		if now.IsZero() {
			now = time.Now()
		}
		date := now.Format("2006-01-02")
		clock := now.Format("15:04")
		query += " AND (date > " + arg(date) + " OR (date = " + arg(date) + " AND start_time >= " + arg(clock) + "))"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	return reservations, rows.Err()
}

func (s *Store) DeleteReservation(ctx context.Context, reservationID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reservations SET is_deleted = TRUE
		WHERE reservation_id = $1 AND NOT is_deleted
	`, reservationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrReservationNotFound
	}
	return nil
}

func (s *Store) ListAvailableTables(ctx context.Context, date, clock string) ([]models.Table, error) {
	instant, err := time.Parse("2006-01-02 15:04", date+" "+clock)
	if err != nil {
		return nil, store.ValidationError{Field: "date", Message: "date and time must be YYYY-MM-DD and HH:MM"}
	}

	tables, err := s.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE date = $1 AND approved AND NOT is_deleted
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	occupied := make(map[string]bool)
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		start, err := reservation.StartsAt()
		if err != nil {
			continue
		}
		end, err := reservation.EndsAt()
		if err != nil {
			continue
		}
		if !instant.Before(start) && instant.Before(end) {
			occupied[reservation.TableID] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	available := make([]models.Table, 0, len(tables))
	for _, table := range tables {
		if !occupied[table.TableID] {
			available = append(available, table)
		}
	}
	return available, nil
}

func (s *Store) CreateTable(ctx context.Context, number, capacity int) (models.Table, error) {
	if !models.ValidCapacity(capacity) {
		return models.Table{}, store.ValidationError{Field: "capacity", Message: "capacity must be one of 2, 4, 8, 10"}
	}
	if number <= 0 {
		return models.Table{}, store.ValidationError{Field: "number", Message: "table number must be positive"}
	}

	table := models.Table{TableID: uuid.NewString(), Number: number, Capacity: capacity}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO tables (table_id, number, capacity)
		VALUES ($1, $2, $3)
		ON CONFLICT (number) DO NOTHING
	`, table.TableID, table.Number, table.Capacity)
	if err != nil {
		return models.Table{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.Table{}, store.ErrDuplicateTable
	}
	return table, nil
}

func (s *Store) ListTables(ctx context.Context) ([]models.Table, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT table_id, number, capacity FROM tables ORDER BY number ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []models.Table
	for rows.Next() {
		var table models.Table
		if err := rows.Scan(&table.TableID, &table.Number, &table.Capacity); err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, rows.Err()
}

const reservationColumns = `reservation_id, full_name, phone_number, date, start_time,
	number_of_guests, table_type, duration_minutes, reservation_type,
	birthday_design, birthday_cake, extra_notes, table_id, approved, created_at`

func scanReservation(row pgx.Row) (models.Reservation, error) {
	var reservation models.Reservation
	var notes sql.NullString
	err := row.Scan(
		&reservation.ReservationID, &reservation.FullName, &reservation.PhoneNumber,
		&reservation.Date, &reservation.Time, &reservation.NumberOfGuests,
		&reservation.TableType, &reservation.Duration, &reservation.Type,
		&reservation.BirthdayDesign, &reservation.BirthdayCake, &notes,
		&reservation.TableID, &reservation.Approved, &reservation.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Reservation{}, store.ErrReservationNotFound
		}
		return models.Reservation{}, err
	}
	reservation.ExtraNotes = textOrEmpty(notes)
	return reservation, nil
}

func findReservationForUpdate(ctx context.Context, tx pgx.Tx, reservationID string) (models.Reservation, error) {
	return scanReservation(tx.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE reservation_id = $1 AND NOT is_deleted
		FOR UPDATE
	`, reservationID))
}

func findTable(ctx context.Context, q querier, tableID string) (models.Table, error) {
	var table models.Table
	err := q.QueryRow(ctx, `
		SELECT table_id, number, capacity FROM tables WHERE table_id = $1
	`, tableID).Scan(&table.TableID, &table.Number, &table.Capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Table{}, store.ErrTableNotFound
		}
		return models.Table{}, err
	}
	return table, nil
}

// lockClasses locks the requested capacity class and the table's own class in
// ascending order, so concurrent transactions never lock in opposite order.
func lockClasses(ctx context.Context, tx pgx.Tx, classes ...int) error {
	seen := make(map[int]bool)
	var unique []int
	for _, class := range classes {
		if !seen[class] {
			seen[class] = true
			unique = append(unique, class)
		}
	}
	sort.Ints(unique)
	for _, class := range unique {
		if err := lockCapacityClass(ctx, tx, class); err != nil {
			return err
		}
	}
	return nil
}

func approvedOnTable(ctx context.Context, tx pgx.Tx, tableID, date, excludeID string) ([]models.Reservation, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE table_id = $1 AND date = $2 AND approved AND NOT is_deleted
	`, tableID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		if excludeID != "" && reservation.ReservationID == excludeID {
			continue
		}
		reservations = append(reservations, reservation)
	}
	return reservations, rows.Err()
}

func approvedInSlot(ctx context.Context, tx pgx.Tx, tableType int, date, clock string) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM reservations
		WHERE table_type = $1 AND date = $2 AND start_time = $3
		  AND approved AND NOT is_deleted
	`, tableType, date, clock).Scan(&count)
	return count, err
}
