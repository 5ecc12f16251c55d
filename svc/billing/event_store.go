package billing

import (
	"context"
	"sync"
	"time"
)

// EventStore is the dedup ledger for webhook deliveries. Providers
// deliver at least once, so every event ID is checked before the
// lifecycle reacts and recorded after it has.
type EventStore interface {
	// Seen reports whether the event ID was already processed.
	Seen(ctx context.Context, eventID string) (bool, error)

	// Record marks the event ID as processed. Recording the same ID
	// twice is not an error.
	Record(ctx context.Context, eventID string) error
}

// MemoryEventStore is an in-memory EventStore for tests and single
// process setups.
type MemoryEventStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryEventStore creates an empty in-memory event ledger.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{seen: make(map[string]time.Time)}
}

func (s *MemoryEventStore) Seen(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[eventID]
	return ok, nil
}

func (s *MemoryEventStore) Record(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[eventID]; !ok {
		s.seen[eventID] = time.Now().UTC()
	}
	return nil
}
