package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bugtrackerhq/entitlements/pkg/statemachine"
	"github.com/bugtrackerhq/entitlements/svc/account"
)

// errNoTransition marks a webhook event whose precondition does not
// hold in the account's current state. Such deliveries are acknowledged
// without touching the account.
var errNoTransition = errors.New("no lifecycle transition for event")

// Service drives the subscription lifecycle: checkout and portal
// sessions, user-requested cancellation, and the webhook dispatcher
// that applies provider events to accounts.
type Service struct {
	accounts account.Store
	events   EventStore
	catalog  Catalog
	provider Provider
	log      *slog.Logger

	successURL      string
	cancelURL       string
	portalReturnURL string
	providerTimeout time.Duration
}

// NewService creates the billing service. The plan source and both
// stores are required; a nil provider is allowed and turns every
// provider-facing operation into ErrBillingUnconfigured.
func NewService(ctx context.Context, src PlanSource, accounts account.Store, events EventStore, opts ...Option) (*Service, error) {
	if src == nil {
		panic("billing: PlanSource is required")
	}
	if accounts == nil {
		panic("billing: account store is required")
	}
	if events == nil {
		panic("billing: event store is required")
	}

	catalog, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if err := catalog.validate(); err != nil {
		return nil, err
	}

	s := &Service{
		accounts:        accounts,
		events:          events,
		catalog:         catalog,
		log:             slog.Default(),
		providerTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Plans lists the purchasable plans, cheapest first.
func (s *Service) Plans() []Plan {
	return s.catalog.Paid()
}

// Catalog returns the full plan catalog including free tiers.
func (s *Service) Catalog() Catalog {
	return s.catalog
}

// CreateCheckoutSession opens a hosted checkout for the account to buy
// the given plan. A provider customer is created on first use and its
// reference persisted before the checkout page is returned.
func (s *Service) CreateCheckoutSession(ctx context.Context, accountID uuid.UUID, planID account.Plan) (*CheckoutSession, error) {
	if s.provider == nil {
		return nil, ErrBillingUnconfigured
	}
	plan, ok := s.catalog.Get(planID)
	if !ok || plan.PriceCents == 0 {
		return nil, ErrInvalidPlan
	}

	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	ref, err := s.provider.EnsureCustomer(ctx, acc)
	if err != nil {
		return nil, err
	}
	if acc.BillingCustomerID == "" {
		if _, err := s.accounts.UpdateTx(ctx, accountID, func(a *account.Account) error {
			if a.BillingCustomerID == "" {
				a.BillingCustomerID = ref
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	return s.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		CustomerRef: ref,
		AccountID:   accountID,
		Plan:        planID,
		SuccessURL:  s.successURL,
		CancelURL:   s.cancelURL,
	})
}

// CreatePortalSession opens the provider's billing management page for
// an account that already has a billing relationship.
func (s *Service) CreatePortalSession(ctx context.Context, accountID uuid.UUID) (*PortalSession, error) {
	if s.provider == nil {
		return nil, ErrBillingUnconfigured
	}

	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.BillingCustomerID == "" {
		return nil, ErrNoActiveSubscription
	}

	ctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	return s.provider.CreatePortalSession(ctx, acc.BillingCustomerID, s.portalReturnURL)
}

// Cancel schedules the account's subscription to end at the close of
// the current billing period. Paid access continues until then. The
// account is only updated after the provider confirms.
func (s *Service) Cancel(ctx context.Context, accountID uuid.UUID) error {
	if s.provider == nil {
		return ErrBillingUnconfigured
	}

	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if acc.BillingCustomerID == "" {
		return ErrNoActiveSubscription
	}
	if !canTransition(acc.Status, TriggerCancelRequested) {
		return ErrInvalidState
	}

	ctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	periodEnd, err := s.provider.CancelAtPeriodEnd(ctx, acc.BillingCustomerID)
	if err != nil {
		return err
	}

	_, err = s.accounts.UpdateTx(ctx, accountID, func(a *account.Account) error {
		if !canTransition(a.Status, TriggerCancelRequested) {
			return ErrInvalidState
		}
		a.ScheduleCancelAtPeriodEnd(periodEnd)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "subscription cancellation scheduled",
		slog.String("account_id", accountID.String()),
		slog.Time("period_end", periodEnd))
	return nil
}

// Reactivate removes a scheduled cancellation so the subscription
// continues to renew.
func (s *Service) Reactivate(ctx context.Context, accountID uuid.UUID) error {
	if s.provider == nil {
		return ErrBillingUnconfigured
	}

	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if acc.BillingCustomerID == "" {
		return ErrNoActiveSubscription
	}
	if !canTransition(acc.Status, TriggerReactivateRequested) {
		return ErrInvalidState
	}

	ctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	if err := s.provider.Resume(ctx, acc.BillingCustomerID); err != nil {
		return err
	}

	_, err = s.accounts.UpdateTx(ctx, accountID, func(a *account.Account) error {
		if !canTransition(a.Status, TriggerReactivateRequested) {
			return ErrInvalidState
		}
		a.Reactivate()
		return nil
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "subscription reactivated",
		slog.String("account_id", accountID.String()))
	return nil
}

// Status returns the account's subscription summary: lifecycle state,
// plan limits, and quota consumption.
func (s *Service) Status(ctx context.Context, accountID uuid.UUID) (*Summary, error) {
	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Status:      acc.Status,
		Plan:        s.catalog.For(acc.Plan),
		PeriodEnd:   acc.PeriodEnd,
		ReportsUsed: acc.ReportsThisMonth,
	}, nil
}

// HandleWebhook verifies, deduplicates, and applies a provider webhook
// delivery. A nil return means the delivery can be acknowledged; an
// ErrTransient return means the caller should signal the provider to
// redeliver. Signature and payload failures are terminal because a
// redelivery would fail the same way.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.provider == nil {
		return ErrBillingUnconfigured
	}

	ev, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	if ev == nil {
		return nil
	}

	seen, err := s.events.Seen(ctx, ev.ID)
	if err != nil {
		return errors.Join(ErrTransient, err)
	}
	if seen {
		s.log.InfoContext(ctx, "duplicate webhook delivery ignored",
			slog.String("event_id", ev.ID),
			slog.String("event_type", string(ev.Type)))
		return nil
	}

	if err := s.apply(ctx, ev); err != nil {
		if !errors.Is(err, errNoTransition) {
			return errors.Join(ErrTransient, err)
		}
		s.log.InfoContext(ctx, "webhook event is a no-op in current state",
			slog.String("event_id", ev.ID),
			slog.String("event_type", string(ev.Type)))
	}

	if err := s.events.Record(ctx, ev.ID); err != nil {
		return errors.Join(ErrTransient, err)
	}
	return nil
}

// apply runs the lifecycle transition for the event inside the account
// row lock. Quota resets are keyed to the event's billing period, so a
// replayed event can never grant a second reset.
func (s *Service) apply(ctx context.Context, ev *Event) error {
	fn := func(a *account.Account) error {
		to, ok := nextStatus(a.Status, statemachine.Event(ev.Type))
		if !ok {
			return errNoTransition
		}

		switch ev.Type {
		case EventCheckoutCompleted:
			a.Activate(ev.Plan, ev.CustomerRef, ev.PeriodStart)
		case EventInvoicePaid:
			if !a.QuotaResetAppliedFor(ev.PeriodStart) {
				a.ResetMonthlyQuota(ev.PeriodStart)
			}
			a.PeriodEnd = nil
		case EventInvoiceFailed:
			a.MarkPastDue()
		case EventSubscriptionDeleted:
			a.CancelImmediately()
		}
		a.Status = to
		return nil
	}

	var (
		acc *account.Account
		err error
	)
	if ev.Type == EventCheckoutCompleted && ev.AccountID != uuid.Nil {
		acc, err = s.accounts.UpdateTx(ctx, ev.AccountID, fn)
	} else {
		acc, err = s.accounts.UpdateTxByCustomerRef(ctx, ev.CustomerRef, fn)
	}
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "webhook event applied",
		slog.String("event_id", ev.ID),
		slog.String("event_type", string(ev.Type)),
		slog.String("account_id", acc.ID.String()),
		slog.String("status", string(acc.Status)))
	return nil
}
