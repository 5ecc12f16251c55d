package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGMembershipSource reads team memberships from PostgreSQL.
type PGMembershipSource struct {
	pool *pgxpool.Pool
}

// NewPGMembershipSource creates a PostgreSQL membership source.
func NewPGMembershipSource(pool *pgxpool.Pool) *PGMembershipSource {
	if pool == nil {
		panic("authz: pgx pool is required")
	}
	return &PGMembershipSource{pool: pool}
}

func (s *PGMembershipSource) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Membership, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT account_id, team_id, role, is_active FROM team_members WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query team memberships: %w", err)
	}
	defer rows.Close()

	memberships, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Membership, error) {
		var m Membership
		err := row.Scan(&m.AccountID, &m.TeamID, &m.Role, &m.Active)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan team memberships: %w", err)
	}
	return memberships, nil
}
