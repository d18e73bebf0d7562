package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"bcafe/restaurant-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool   *pgxpool.Pool
	policy store.BookingPolicy
}

type Options struct {
	Policy store.BookingPolicy
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	policy := options.Policy
	if policy.Ceilings == nil {
		policy.Ceilings = map[int]int{2: 7, 4: 10, 8: 2, 10: 1}
	}
	if policy.CloseMinute == 0 {
		policy.OpenMinute = 10 * 60
		policy.CloseMinute = 22 * 60
	}
	return &Store{pool: pool, policy: policy}
}

// querier is satisfied by both the pool and an open transaction, so loaders
// can run inside or outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// lockCapacityClass serializes reservation mutations within a capacity class
// by locking its booking_locks row. Classes are locked in ascending order by
// callers that need more than one.
func lockCapacityClass(ctx context.Context, tx pgx.Tx, capacity int) error {
	var locked int
	err := tx.QueryRow(ctx, `
		SELECT capacity FROM booking_locks WHERE capacity = $1 FOR UPDATE
	`, capacity).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		_, err = tx.Exec(ctx, `
			INSERT INTO booking_locks (capacity) VALUES ($1) ON CONFLICT (capacity) DO NOTHING
		`, capacity)
		if err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			SELECT capacity FROM booking_locks WHERE capacity = $1 FOR UPDATE
		`, capacity).Scan(&locked)
	}
	return err
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), eventType, raw, time.Now().UTC())
	return err
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	var session store.Session
	err := s.pool.QueryRow(ctx, `
		SELECT session_id, user_id, role, expires_at
		FROM sessions
		WHERE session_id = $1 AND expires_at > now()
	`, sessionID).Scan(&session.SessionID, &session.UserID, &session.Role, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Session{}, store.ErrSessionNotFound
		}
		return store.Session{}, err
	}
	return session, nil
}

func (s *Store) ListOutboxEvents(ctx context.Context, afterSeq int64, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT seq, event_id, type, payload, created_at
		FROM outbox_events
		WHERE seq > $1
		ORDER BY seq ASC
		LIMIT $2
	`, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		if err := rows.Scan(&event.Seq, &event.EventID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// GetNotifierOffset and UpdateNotifierOffset track how far the notification
// worker has read into the outbox. The cursor is the serial sequence, not
// created_at: timestamps can collide within a batch boundary.
func (s *Store) GetNotifierOffset(ctx context.Context) (int64, error) {
	var last int64
	err := s.pool.QueryRow(ctx, `
		SELECT last_seq FROM notifier_offsets WHERE name = 'notify'
	`).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return last, err
}

func (s *Store) UpdateNotifierOffset(ctx context.Context, lastSeq int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifier_offsets (name, last_seq)
		VALUES ('notify', $1)
		ON CONFLICT (name) DO UPDATE SET last_seq = EXCLUDED.last_seq
	`, lastSeq)
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}

func textOrEmpty(value sql.NullString) string {
	if !value.Valid {
		return ""
	}
	return value.String
}
