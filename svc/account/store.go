package account

import (
	"context"

	"github.com/google/uuid"
)

// Store defines account persistence. Implementations must make UpdateTx
// exclusive per account row so that two concurrent webhook deliveries
// (or a webhook racing a user cancel) cannot interleave their
// read-modify-write cycles.
type Store interface {
	// Create inserts a new account. Returns ErrAlreadyExists when the
	// id or email is taken.
	Create(ctx context.Context, acc *Account) error

	// Get retrieves an account by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetByCustomerRef retrieves an account by its billing customer
	// reference. Returns ErrNotFound if absent.
	GetByCustomerRef(ctx context.Context, ref string) (*Account, error)

	// UpdateTx loads the account under an exclusive lock, applies fn to
	// it, and persists the result in the same transaction. If fn
	// returns an error the transaction is rolled back and no partial
	// state is observable. The updated account is returned on success.
	UpdateTx(ctx context.Context, id uuid.UUID, fn func(acc *Account) error) (*Account, error)

	// UpdateTxByCustomerRef is UpdateTx keyed by the billing customer
	// reference, used when applying webhook events.
	UpdateTxByCustomerRef(ctx context.Context, ref string, fn func(acc *Account) error) (*Account, error)
}
