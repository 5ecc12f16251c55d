package bugs

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bugtrackerhq/entitlements/pkg/pg"
)

const bugColumns = `id, title, description, priority, status, owner_id, team_id, assignee_id, ai_requested, created_at, updated_at, assigned_at, resolved_at`

// PGStore is the PostgreSQL-backed bug store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a PostgreSQL bug store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("bugs: pgx pool is required")
	}
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, b *Bug) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bug_reports (`+bugColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		b.ID, b.Title, b.Description, b.Priority, b.Status, b.OwnerID, b.TeamID,
		b.AssigneeID, b.AIRequested, b.CreatedAt, b.UpdatedAt, b.AssignedAt, b.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bug report: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Bug, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bugColumns+` FROM bug_reports WHERE id = $1`, id)
	return scanBug(row)
}

func (s *PGStore) List(ctx context.Context, f Filter) ([]*Bug, error) {
	query := `SELECT ` + bugColumns + ` FROM bug_reports`
	var (
		conds []string
		args  []any
	)
	if f.OwnerID != nil {
		args = append(args, *f.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if len(f.TeamIDs) > 0 {
		args = append(args, f.TeamIDs)
		conds = append(conds, fmt.Sprintf("team_id = ANY($%d)", len(args)))
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " OR ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bug reports: %w", err)
	}
	defer rows.Close()

	var out []*Bug
	for rows.Next() {
		b, err := scanBug(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bug reports: %w", err)
	}
	return out, nil
}

func (s *PGStore) Update(ctx context.Context, b *Bug) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bug_reports
		 SET title = $2, description = $3, priority = $4, status = $5,
		     team_id = $6, assignee_id = $7, assigned_at = $8, resolved_at = $9,
		     updated_at = now()
		 WHERE id = $1`,
		b.ID, b.Title, b.Description, b.Priority, b.Status,
		b.TeamID, b.AssigneeID, b.AssignedAt, b.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("update bug report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bug_reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete bug report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBug(row pgx.Row) (*Bug, error) {
	var b Bug
	err := row.Scan(
		&b.ID, &b.Title, &b.Description, &b.Priority, &b.Status, &b.OwnerID,
		&b.TeamID, &b.AssigneeID, &b.AIRequested, &b.CreatedAt, &b.UpdatedAt,
		&b.AssignedAt, &b.ResolvedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan bug report: %w", err)
	}
	return &b, nil
}
