package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bugtrackerhq/entitlements/pkg/pg"
)

const accountColumns = `id, email, role, plan, status, period_end, billing_customer_id, reports_this_month, quota_period_start, created_at, updated_at`

// PGStore is the PostgreSQL-backed account store. UpdateTx serializes
// writers per account row with SELECT ... FOR UPDATE.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a PostgreSQL account store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("account: pgx pool is required")
	}
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, acc *Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		acc.ID, acc.Email, acc.Role, acc.Plan, acc.Status, acc.PeriodEnd,
		acc.BillingCustomerID, acc.ReportsThisMonth, acc.QuotaPeriodStart,
		acc.CreatedAt, acc.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return errors.Join(ErrAlreadyExists, err)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (s *PGStore) GetByCustomerRef(ctx context.Context, ref string) (*Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE billing_customer_id = $1 AND billing_customer_id <> ''`, ref)
	return scanAccount(row)
}

func (s *PGStore) UpdateTx(ctx context.Context, id uuid.UUID, fn func(acc *Account) error) (*Account, error) {
	return s.updateTx(ctx, `id = $1`, id, fn)
}

func (s *PGStore) UpdateTxByCustomerRef(ctx context.Context, ref string, fn func(acc *Account) error) (*Account, error) {
	return s.updateTx(ctx, `billing_customer_id = $1 AND billing_customer_id <> ''`, ref, fn)
}

func (s *PGStore) updateTx(ctx context.Context, where string, key any, fn func(acc *Account) error) (*Account, error) {
	var acc *Account

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE `+where+` FOR UPDATE`, key)

		var err error
		acc, err = scanAccount(row)
		if err != nil {
			return err
		}

		if err := fn(acc); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE accounts
			 SET email = $2, role = $3, plan = $4, status = $5, period_end = $6,
			     billing_customer_id = $7, reports_this_month = $8,
			     quota_period_start = $9, updated_at = now()
			 WHERE id = $1`,
			acc.ID, acc.Email, acc.Role, acc.Plan, acc.Status, acc.PeriodEnd,
			acc.BillingCustomerID, acc.ReportsThisMonth, acc.QuotaPeriodStart,
		)
		if err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var acc Account
	err := row.Scan(
		&acc.ID, &acc.Email, &acc.Role, &acc.Plan, &acc.Status, &acc.PeriodEnd,
		&acc.BillingCustomerID, &acc.ReportsThisMonth, &acc.QuotaPeriodStart,
		&acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &acc, nil
}
