package account

import (
	"context"

	"github.com/google/uuid"
)

type accountIDCtxKey struct{}

// SetIDToContext stores the authenticated account id in the context.
// Authentication itself is an external concern; handlers only read the
// identity the middleware chain established.
func SetIDToContext(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, accountIDCtxKey{}, id)
}

// GetIDFromContext retrieves the authenticated account id from the context.
func GetIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountIDCtxKey{}).(uuid.UUID)
	return id, ok
}
