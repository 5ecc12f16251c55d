package account_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugtrackerhq/entitlements/svc/account"
)

func TestMemoryStore_CreateGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := account.NewMemoryStore()

	acc := account.New(uuid.New(), "user@example.com")
	require.NoError(t, store.Create(ctx, acc))

	got, err := store.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
	assert.Equal(t, acc.Email, got.Email)

	t.Run("duplicate id rejected", func(t *testing.T) {
		err := store.Create(ctx, acc)
		assert.ErrorIs(t, err, account.ErrAlreadyExists)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		other := account.New(uuid.New(), "user@example.com")
		err := store.Create(ctx, other)
		assert.ErrorIs(t, err, account.ErrAlreadyExists)
	})

	t.Run("unknown id yields not found", func(t *testing.T) {
		_, err := store.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, account.ErrNotFound)
	})
}

func TestMemoryStore_GetByCustomerRef(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := account.NewMemoryStore()

	acc := account.New(uuid.New(), "user@example.com")
	acc.BillingCustomerID = "cus_123"
	require.NoError(t, store.Create(ctx, acc))

	got, err := store.GetByCustomerRef(ctx, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)

	_, err = store.GetByCustomerRef(ctx, "cus_missing")
	assert.ErrorIs(t, err, account.ErrNotFound)

	// Empty refs never match anything, even unsubscribed accounts.
	_, err = store.GetByCustomerRef(ctx, "")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestMemoryStore_UpdateTx(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("persists mutation", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := account.New(uuid.New(), "user@example.com")
		require.NoError(t, store.Create(ctx, acc))

		updated, err := store.UpdateTx(ctx, acc.ID, func(a *account.Account) error {
			a.Activate(account.PlanStandard, "cus_42", time.Now())
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, account.PlanStandard, updated.Plan)

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, account.PlanStandard, got.Plan)
	})

	t.Run("failed update leaves no partial state", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := account.New(uuid.New(), "user@example.com")
		require.NoError(t, store.Create(ctx, acc))

		boom := errors.New("boom")
		_, err := store.UpdateTx(ctx, acc.ID, func(a *account.Account) error {
			a.IncrementReports()
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assert.Zero(t, got.ReportsThisMonth)
	})

	t.Run("concurrent increments are linearized", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := account.New(uuid.New(), "user@example.com")
		require.NoError(t, store.Create(ctx, acc))

		const workers = 25
		var wg sync.WaitGroup
		wg.Add(workers)
		for range workers {
			go func() {
				defer wg.Done()
				_, _ = store.UpdateTx(ctx, acc.ID, func(a *account.Account) error {
					a.IncrementReports()
					return nil
				})
			}()
		}
		wg.Wait()

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, workers, got.ReportsThisMonth)
	})
}
