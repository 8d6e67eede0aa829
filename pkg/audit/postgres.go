package audit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists webhook events in the webhook_events table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Store using the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("audit: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_events (id, provider, event_type, external_id, processed, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.Provider, event.EventType, event.ExternalID,
		event.Processed, event.Payload, event.CreatedAt,
	)
	if err != nil {
		return errors.Join(ErrAppendFailed, err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, provider string, limit int) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, provider, event_type, external_id, processed, payload, created_at
		FROM webhook_events
		WHERE provider = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		provider, limit,
	)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Provider, &e.EventType, &e.ExternalID,
			&e.Processed, &e.Payload, &e.CreatedAt); err != nil {
			return nil, errors.Join(ErrQueryFailed, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return events, nil
}
