package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bugtrackerhq/entitlements/svc/account"
	"github.com/bugtrackerhq/entitlements/svc/billing"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) EnsureCustomer(ctx context.Context, acc *account.Account) (string, error) {
	args := m.Called(ctx, acc)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.CheckoutSession), args.Error(1)
}

func (m *mockProvider) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (*billing.PortalSession, error) {
	args := m.Called(ctx, customerRef, returnURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PortalSession), args.Error(1)
}

func (m *mockProvider) CancelAtPeriodEnd(ctx context.Context, customerRef string) (time.Time, error) {
	args := m.Called(ctx, customerRef)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *mockProvider) Resume(ctx context.Context, customerRef string) error {
	return m.Called(ctx, customerRef).Error(0)
}

func (m *mockProvider) ParseWebhook(payload []byte, signature string) (*billing.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Event), args.Error(1)
}

type failingEventStore struct {
	seenErr   error
	recordErr error
}

func (s *failingEventStore) Seen(context.Context, string) (bool, error) { return false, s.seenErr }
func (s *failingEventStore) Record(context.Context, string) error       { return s.recordErr }

func newTestService(t *testing.T, store account.Store, events billing.EventStore, opts ...billing.Option) *billing.Service {
	t.Helper()
	svc, err := billing.NewService(context.Background(),
		billing.NewStaticPlanSource(billing.DefaultCatalog()), store, events, opts...)
	require.NoError(t, err)
	return svc
}

func seedAccount(t *testing.T, store account.Store, mutate func(a *account.Account)) *account.Account {
	t.Helper()
	acc := account.New(uuid.New(), "user@example.com")
	if mutate != nil {
		mutate(acc)
	}
	require.NoError(t, store.Create(context.Background(), acc))
	return acc
}

func TestNewService(t *testing.T) {
	t.Parallel()

	t.Run("plan source failure", func(t *testing.T) {
		t.Parallel()
		src := billing.NewFilePlanSource("/nonexistent/plans.yaml")
		_, err := billing.NewService(context.Background(), src,
			account.NewMemoryStore(), billing.NewMemoryEventStore())
		assert.ErrorIs(t, err, billing.ErrFailedToLoadPlans)
	})

	t.Run("nil plan source panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			_, _ = billing.NewService(context.Background(), nil,
				account.NewMemoryStore(), billing.NewMemoryEventStore())
		})
	})
}

func TestService_HandleWebhook_CheckoutCompleted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	acc := seedAccount(t, store, nil)
	periodStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	provider := new(mockProvider)
	provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&billing.Event{
		ID:          "evt_checkout_1",
		Type:        billing.EventCheckoutCompleted,
		CustomerRef: "cus_1",
		AccountID:   acc.ID,
		Plan:        account.PlanStandard,
		PeriodStart: periodStart,
	}, nil)

	svc := newTestService(t, store, billing.NewMemoryEventStore(), billing.WithProvider(provider))

	require.NoError(t, svc.HandleWebhook(ctx, []byte(`{}`), "sig"))

	got, err := store.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.PlanStandard, got.Plan)
	assert.Equal(t, account.StatusActive, got.Status)
	assert.Equal(t, "cus_1", got.BillingCustomerID)
	assert.Zero(t, got.ReportsThisMonth)

	// Consume some quota, then redeliver the same event. The dedup
	// ledger must swallow it without handing the quota back.
	_, err = store.UpdateTx(ctx, acc.ID, func(a *account.Account) error {
		a.IncrementReports()
		a.IncrementReports()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, svc.HandleWebhook(ctx, []byte(`{}`), "sig"))

	got, err = store.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ReportsThisMonth)
}

func TestService_HandleWebhook_InvoiceFailed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("demotes active to past_due", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := seedAccount(t, store, func(a *account.Account) {
			a.Activate(account.PlanStandard, "cus_1", time.Now())
		})

		provider := new(mockProvider)
		provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&billing.Event{
			ID:          "evt_fail_1",
			Type:        billing.EventInvoiceFailed,
			CustomerRef: "cus_1",
		}, nil)

		svc := newTestService(t, store, billing.NewMemoryEventStore(), billing.WithProvider(provider))
		require.NoError(t, svc.HandleWebhook(ctx, []byte(`{}`), "sig"))

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, account.StatusPastDue, got.Status)
		assert.Equal(t, account.PlanStandard, got.Plan)
	})

	t.Run("ignored when already past_due", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := seedAccount(t, store, func(a *account.Account) {
			a.Activate(account.PlanStandard, "cus_2", time.Now())
			a.MarkPastDue()
		})

		provider := new(mockProvider)
		provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&billing.Event{
			ID:          "evt_fail_2",
			Type:        billing.EventInvoiceFailed,
			CustomerRef: "cus_2",
		}, nil)

		events := billing.NewMemoryEventStore()
		svc := newTestService(t, store, events, billing.WithProvider(provider))
		require.NoError(t, svc.HandleWebhook(ctx, []byte(`{}`), "sig"))

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, account.StatusPastDue, got.Status)

		// The no-op delivery still lands in the ledger.
		seen, err := events.Seen(ctx, "evt_fail_2")
		require.NoError(t, err)
		assert.True(t, seen)
	})
}

func TestService_HandleWebhook_InvoicePaid(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	oldPeriod := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	newPeriod := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	acc := seedAccount(t, store, func(a *account.Account) {
		a.Activate(account.PlanStandard, "cus_1", oldPeriod)
		for range 7 {
			a.IncrementReports()
		}
		a.MarkPastDue()
	})

	provider := new(mockProvider)
	provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&billing.Event{
		ID:          "evt_paid_1",
		Type:        billing.EventInvoicePaid,
		CustomerRef: "cus_1",
		PeriodStart: newPeriod,
	}, nil).Once()

	svc := newTestService(t, store, billing.NewMemoryEventStore(), billing.WithProvider(provider))
	require.NoError(t, svc.HandleWebhook(ctx, []byte(`{}`), "sig"))

	got, err := store.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusActive, got.Status)
	assert.Zero(t, got.ReportsThisMonth)

	// A second paid invoice for the same period, delivered under a
	// fresh event ID, must not reset the quota again.
	_, err = store.UpdateTx(ctx, acc.ID, func(a *account.Account) error {
		a.IncrementReports()
		return nil
	})
	require.NoError(t, err)

	provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&billing.Event{
		ID:          "evt_paid_2",
		Type:        billing.EventInvoicePaid,
		CustomerRef: "cus_1",
		PeriodStart: newPeriod,
	}, nil).Once()

	require.NoError(t, svc.HandleWebhook(ctx, []byte(`{}`), "sig"))

	got, err = store.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusActive, got.Status)
	assert.Equal(t, 1, got.ReportsThisMonth)
}

func TestService_HandleWebhook_SubscriptionDeleted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	acc := seedAccount(t, store, func(a *account.Account) {
		a.Activate(account.PlanPremium, "cus_1", time.Now())
	})

	provider := new(mockProvider)
	provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&billing.Event{
		ID:          "evt_del_1",
		Type:        billing.EventSubscriptionDeleted,
		CustomerRef: "cus_1",
	}, nil)

	svc := newTestService(t, store, billing.NewMemoryEventStore(), billing.WithProvider(provider))
	require.NoError(t, svc.HandleWebhook(ctx, []byte(`{}`), "sig"))

	got, err := store.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusCancelled, got.Status)
	assert.Equal(t, account.PlanFreemium, got.Plan)
	// The customer ref survives the downgrade so a later checkout
	// reuses the same provider customer.
	assert.Equal(t, "cus_1", got.BillingCustomerID)
}

func TestService_HandleWebhook_Failures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("unconfigured provider", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(t, account.NewMemoryStore(), billing.NewMemoryEventStore())
		err := svc.HandleWebhook(ctx, []byte(`{}`), "sig")
		assert.ErrorIs(t, err, billing.ErrBillingUnconfigured)
	})

	t.Run("invalid signature is terminal", func(t *testing.T) {
		t.Parallel()
		provider := new(mockProvider)
		provider.On("ParseWebhook", mock.Anything, mock.Anything).
			Return(nil, billing.ErrInvalidSignature)

		svc := newTestService(t, account.NewMemoryStore(), billing.NewMemoryEventStore(),
			billing.WithProvider(provider))
		err := svc.HandleWebhook(ctx, []byte(`{}`), "bad")
		assert.ErrorIs(t, err, billing.ErrInvalidSignature)
		assert.NotErrorIs(t, err, billing.ErrTransient)
	})

	t.Run("unrecognized event type is acknowledged", func(t *testing.T) {
		t.Parallel()
		provider := new(mockProvider)
		provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(nil, nil)

		svc := newTestService(t, account.NewMemoryStore(), billing.NewMemoryEventStore(),
			billing.WithProvider(provider))
		assert.NoError(t, svc.HandleWebhook(ctx, []byte(`{}`), "sig"))
	})

	t.Run("unknown customer is transient", func(t *testing.T) {
		t.Parallel()
		provider := new(mockProvider)
		provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&billing.Event{
			ID:          "evt_orphan",
			Type:        billing.EventInvoiceFailed,
			CustomerRef: "cus_ghost",
		}, nil)

		events := billing.NewMemoryEventStore()
		svc := newTestService(t, account.NewMemoryStore(), events, billing.WithProvider(provider))
		err := svc.HandleWebhook(ctx, []byte(`{}`), "sig")
		assert.ErrorIs(t, err, billing.ErrTransient)

		// The event must stay out of the ledger so a redelivery can
		// succeed once the account exists.
		seen, err := events.Seen(ctx, "evt_orphan")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("ledger failure is transient", func(t *testing.T) {
		t.Parallel()
		provider := new(mockProvider)
		provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&billing.Event{
			ID:          "evt_x",
			Type:        billing.EventInvoiceFailed,
			CustomerRef: "cus_1",
		}, nil)

		svc := newTestService(t, account.NewMemoryStore(),
			&failingEventStore{seenErr: errors.New("connection refused")},
			billing.WithProvider(provider))
		err := svc.HandleWebhook(ctx, []byte(`{}`), "sig")
		assert.ErrorIs(t, err, billing.ErrTransient)
	})
}

func TestService_CreateCheckoutSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("unconfigured provider", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := seedAccount(t, store, nil)

		svc := newTestService(t, store, billing.NewMemoryEventStore())
		_, err := svc.CreateCheckoutSession(ctx, acc.ID, account.PlanStandard)
		assert.ErrorIs(t, err, billing.ErrBillingUnconfigured)
	})

	t.Run("free and unknown plans are rejected", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := seedAccount(t, store, nil)

		svc := newTestService(t, store, billing.NewMemoryEventStore(),
			billing.WithProvider(new(mockProvider)))

		_, err := svc.CreateCheckoutSession(ctx, acc.ID, account.PlanFreemium)
		assert.ErrorIs(t, err, billing.ErrInvalidPlan)

		_, err = svc.CreateCheckoutSession(ctx, acc.ID, account.Plan("enterprise"))
		assert.ErrorIs(t, err, billing.ErrInvalidPlan)
	})

	t.Run("creates customer and persists the ref", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := seedAccount(t, store, nil)

		provider := new(mockProvider)
		provider.On("EnsureCustomer", mock.Anything, mock.Anything).Return("cus_new", nil)
		provider.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req billing.CheckoutRequest) bool {
			return req.CustomerRef == "cus_new" &&
				req.AccountID == acc.ID &&
				req.Plan == account.PlanStandard &&
				req.SuccessURL == "https://app.test/billing/success"
		})).Return(&billing.CheckoutSession{ID: "cs_1", URL: "https://checkout.test/cs_1"}, nil)

		svc := newTestService(t, store, billing.NewMemoryEventStore(),
			billing.WithProvider(provider),
			billing.WithCheckoutURLs("https://app.test/billing/success", "https://app.test/billing/cancel"))

		sess, err := svc.CreateCheckoutSession(ctx, acc.ID, account.PlanStandard)
		require.NoError(t, err)
		assert.Equal(t, "https://checkout.test/cs_1", sess.URL)

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, "cus_new", got.BillingCustomerID)
		provider.AssertExpectations(t)
	})

	t.Run("provider failure propagates", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := seedAccount(t, store, nil)

		provider := new(mockProvider)
		provider.On("EnsureCustomer", mock.Anything, mock.Anything).
			Return("", billing.ErrProviderUnavailable)

		svc := newTestService(t, store, billing.NewMemoryEventStore(), billing.WithProvider(provider))
		_, err := svc.CreateCheckoutSession(ctx, acc.ID, account.PlanPremium)
		assert.ErrorIs(t, err, billing.ErrProviderUnavailable)
	})
}

func TestService_CreatePortalSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("requires a billing relationship", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := seedAccount(t, store, nil)

		svc := newTestService(t, store, billing.NewMemoryEventStore(),
			billing.WithProvider(new(mockProvider)))
		_, err := svc.CreatePortalSession(ctx, acc.ID)
		assert.ErrorIs(t, err, billing.ErrNoActiveSubscription)
	})

	t.Run("returns the portal URL", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := seedAccount(t, store, func(a *account.Account) {
			a.Activate(account.PlanStandard, "cus_1", time.Now())
		})

		provider := new(mockProvider)
		provider.On("CreatePortalSession", mock.Anything, "cus_1", "https://app.test/settings").
			Return(&billing.PortalSession{URL: "https://portal.test/p_1"}, nil)

		svc := newTestService(t, store, billing.NewMemoryEventStore(),
			billing.WithProvider(provider),
			billing.WithPortalReturnURL("https://app.test/settings"))

		sess, err := svc.CreatePortalSession(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://portal.test/p_1", sess.URL)
	})
}

func TestService_Cancel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("schedules cancellation at period end", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := seedAccount(t, store, func(a *account.Account) {
			a.Activate(account.PlanStandard, "cus_1", time.Now())
		})
		periodEnd := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

		provider := new(mockProvider)
		provider.On("CancelAtPeriodEnd", mock.Anything, "cus_1").Return(periodEnd, nil)

		svc := newTestService(t, store, billing.NewMemoryEventStore(), billing.WithProvider(provider))
		require.NoError(t, svc.Cancel(ctx, acc.ID))

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, account.StatusCancelAtPeriodEnd, got.Status)
		require.NotNil(t, got.PeriodEnd)
		assert.True(t, periodEnd.Equal(*got.PeriodEnd))
		// Paid access continues until the period closes.
		assert.Equal(t, account.PlanStandard, got.Plan)
	})

	t.Run("requires a billing relationship", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := seedAccount(t, store, nil)

		svc := newTestService(t, store, billing.NewMemoryEventStore(),
			billing.WithProvider(new(mockProvider)))
		assert.ErrorIs(t, svc.Cancel(ctx, acc.ID), billing.ErrNoActiveSubscription)
	})

	t.Run("rejected outside the active state", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := seedAccount(t, store, func(a *account.Account) {
			a.Activate(account.PlanStandard, "cus_1", time.Now())
			a.MarkPastDue()
		})

		provider := new(mockProvider)
		svc := newTestService(t, store, billing.NewMemoryEventStore(), billing.WithProvider(provider))

		assert.ErrorIs(t, svc.Cancel(ctx, acc.ID), billing.ErrInvalidState)
		provider.AssertNotCalled(t, "CancelAtPeriodEnd", mock.Anything, mock.Anything)
	})

	t.Run("provider failure leaves the account untouched", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := seedAccount(t, store, func(a *account.Account) {
			a.Activate(account.PlanStandard, "cus_1", time.Now())
		})

		provider := new(mockProvider)
		provider.On("CancelAtPeriodEnd", mock.Anything, "cus_1").
			Return(time.Time{}, billing.ErrProviderUnavailable)

		svc := newTestService(t, store, billing.NewMemoryEventStore(), billing.WithProvider(provider))
		assert.ErrorIs(t, svc.Cancel(ctx, acc.ID), billing.ErrProviderUnavailable)

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, account.StatusActive, got.Status)
	})
}

func TestService_Reactivate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("resumes a scheduled cancellation", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := seedAccount(t, store, func(a *account.Account) {
			a.Activate(account.PlanStandard, "cus_1", time.Now())
			a.ScheduleCancelAtPeriodEnd(time.Now().AddDate(0, 1, 0))
		})

		provider := new(mockProvider)
		provider.On("Resume", mock.Anything, "cus_1").Return(nil)

		svc := newTestService(t, store, billing.NewMemoryEventStore(), billing.WithProvider(provider))
		require.NoError(t, svc.Reactivate(ctx, acc.ID))

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, account.StatusActive, got.Status)
		assert.Nil(t, got.PeriodEnd)
	})

	t.Run("rejected when no cancellation is scheduled", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		acc := seedAccount(t, store, func(a *account.Account) {
			a.Activate(account.PlanStandard, "cus_1", time.Now())
		})

		svc := newTestService(t, store, billing.NewMemoryEventStore(),
			billing.WithProvider(new(mockProvider)))
		assert.ErrorIs(t, svc.Reactivate(ctx, acc.ID), billing.ErrInvalidState)
	})
}

func TestService_Status(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	acc := seedAccount(t, store, func(a *account.Account) {
		a.Activate(account.PlanStandard, "cus_1", time.Now())
		a.IncrementReports()
		a.IncrementReports()
	})

	svc := newTestService(t, store, billing.NewMemoryEventStore())

	summary, err := svc.Status(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusActive, summary.Status)
	assert.Equal(t, account.PlanStandard, summary.Plan.ID)
	assert.Equal(t, 50, summary.Plan.ReportsPerMonth)
	assert.Equal(t, 2, summary.ReportsUsed)
}
