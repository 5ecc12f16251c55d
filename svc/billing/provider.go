package billing

import (
	"context"
	"time"

	"github.com/bugtrackerhq/entitlements/svc/account"
)

// Provider abstracts the payment provider. Implementations must be safe
// for concurrent use.
type Provider interface {
	// EnsureCustomer returns the provider customer reference for the
	// account, creating a customer when none exists yet.
	EnsureCustomer(ctx context.Context, acc *account.Account) (string, error)

	// CreateCheckoutSession opens a hosted checkout for a paid plan.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// CreatePortalSession opens a hosted billing management page for an
	// existing customer.
	CreatePortalSession(ctx context.Context, customerRef, returnURL string) (*PortalSession, error)

	// CancelAtPeriodEnd schedules the customer's subscription to end at
	// the close of the current billing period and returns that moment.
	CancelAtPeriodEnd(ctx context.Context, customerRef string) (time.Time, error)

	// Resume removes a scheduled cancellation.
	Resume(ctx context.Context, customerRef string) error

	// ParseWebhook verifies the delivery signature and normalizes the
	// payload. It returns (nil, nil) for event types the lifecycle does
	// not react to.
	ParseWebhook(payload []byte, signature string) (*Event, error)
}
