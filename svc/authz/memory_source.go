package authz

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryMembershipSource is an in-memory MembershipSource for tests and
// single-process setups.
type MemoryMembershipSource struct {
	mu          sync.RWMutex
	memberships []Membership
}

// NewMemoryMembershipSource creates an empty in-memory source.
func NewMemoryMembershipSource() *MemoryMembershipSource {
	return &MemoryMembershipSource{}
}

// Add registers a membership.
func (s *MemoryMembershipSource) Add(m Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships = append(s.memberships, m)
}

func (s *MemoryMembershipSource) ListByAccount(_ context.Context, accountID uuid.UUID) ([]Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Membership
	for _, m := range s.memberships {
		if m.AccountID == accountID {
			out = append(out, m)
		}
	}
	return out, nil
}
