package bugs

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows List results. A zero filter matches everything; when
// both OwnerID and TeamIDs are set a report matches if it belongs to
// the owner OR sits in one of the teams.
type Filter struct {
	OwnerID *uuid.UUID
	TeamIDs []uuid.UUID
}

// Store persists bug reports.
type Store interface {
	Create(ctx context.Context, b *Bug) error
	Get(ctx context.Context, id uuid.UUID) (*Bug, error)
	List(ctx context.Context, f Filter) ([]*Bug, error)
	Update(ctx context.Context, b *Bug) error
	Delete(ctx context.Context, id uuid.UUID) error
}
