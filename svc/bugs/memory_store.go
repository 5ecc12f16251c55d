package bugs

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and examples.
type MemoryStore struct {
	mu   sync.Mutex
	bugs map[uuid.UUID]*Bug
}

// NewMemoryStore creates an empty in-memory bug store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bugs: make(map[uuid.UUID]*Bug)}
}

func (s *MemoryStore) Create(_ context.Context, b *Bug) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *b
	s.bugs[b.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Bug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bugs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]*Bug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Bug
	for _, b := range s.bugs {
		if !matches(b, f) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *Bug) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, b *Bug) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bugs[b.ID]; !ok {
		return ErrNotFound
	}
	cp := *b
	cp.UpdatedAt = time.Now().UTC()
	s.bugs[b.ID] = &cp
	*b = cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bugs[id]; !ok {
		return ErrNotFound
	}
	delete(s.bugs, id)
	return nil
}

func matches(b *Bug, f Filter) bool {
	if f.OwnerID == nil && len(f.TeamIDs) == 0 {
		return true
	}
	if f.OwnerID != nil && b.OwnerID == *f.OwnerID {
		return true
	}
	if b.TeamID != nil && slices.Contains(f.TeamIDs, *b.TeamID) {
		return true
	}
	return false
}
