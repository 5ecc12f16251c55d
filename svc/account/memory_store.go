package account

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and examples.
// A single mutex linearizes every mutation, which is the same guarantee
// the Postgres store gets from row locks.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*Account
}

// NewMemoryStore creates an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[uuid.UUID]*Account)}
}

func (s *MemoryStore) Create(_ context.Context, acc *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acc.ID]; ok {
		return ErrAlreadyExists
	}
	for _, existing := range s.accounts {
		if existing.Email == acc.Email {
			return ErrAlreadyExists
		}
	}

	cp := *acc
	s.accounts[acc.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *MemoryStore) GetByCustomerRef(_ context.Context, ref string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.findByCustomerRef(ref)
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *MemoryStore) UpdateTx(_ context.Context, id uuid.UUID, fn func(acc *Account) error) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.apply(acc, fn)
}

func (s *MemoryStore) UpdateTxByCustomerRef(_ context.Context, ref string, fn func(acc *Account) error) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.findByCustomerRef(ref)
	if !ok {
		return nil, ErrNotFound
	}
	return s.apply(acc, fn)
}

// apply runs fn against a copy so a failed update leaves no partial
// state, mirroring the rollback behavior of the Postgres store.
func (s *MemoryStore) apply(acc *Account, fn func(acc *Account) error) (*Account, error) {
	cp := *acc
	if err := fn(&cp); err != nil {
		return nil, err
	}
	cp.UpdatedAt = time.Now().UTC()
	s.accounts[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (s *MemoryStore) findByCustomerRef(ref string) (*Account, bool) {
	if ref == "" {
		return nil, false
	}
	for _, acc := range s.accounts {
		if acc.BillingCustomerID == ref {
			return acc, true
		}
	}
	return nil, false
}
