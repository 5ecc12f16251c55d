package billing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGEventStore is the PostgreSQL-backed webhook event ledger. The
// primary key on the event ID makes Record idempotent across replicas.
type PGEventStore struct {
	pool *pgxpool.Pool
}

// NewPGEventStore creates a PostgreSQL event ledger.
func NewPGEventStore(pool *pgxpool.Pool) *PGEventStore {
	if pool == nil {
		panic("billing: pgx pool is required")
	}
	return &PGEventStore{pool: pool}
}

func (s *PGEventStore) Seen(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM billing_events WHERE id = $1)`, eventID).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("query billing event: %w", err)
	}
	return seen, nil
}

func (s *PGEventStore) Record(ctx context.Context, eventID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO billing_events (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, eventID)
	if err != nil {
		return fmt.Errorf("record billing event: %w", err)
	}
	return nil
}
