package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/bugtrackerhq/entitlements/svc/account"
)

// EventType identifies a billing provider webhook event. The values
// match the provider's wire names so raw events map directly.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout.session.completed"
	EventInvoicePaid         EventType = "invoice.payment_succeeded"
	EventInvoiceFailed       EventType = "invoice.payment_failed"
	EventSubscriptionDeleted EventType = "customer.subscription.deleted"
)

// Event is a provider webhook delivery normalized to the fields the
// lifecycle dispatcher needs. AccountID and Plan are populated only for
// checkout events, where they come from the session metadata; the other
// events are routed by CustomerRef.
type Event struct {
	ID          string
	Type        EventType
	CustomerRef string
	AccountID   uuid.UUID
	Plan        account.Plan
	PeriodStart time.Time
}

// CheckoutRequest carries everything the provider needs to open a
// hosted checkout for a paid plan.
type CheckoutRequest struct {
	CustomerRef string
	AccountID   uuid.UUID
	Plan        account.Plan
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is a hosted checkout page the user is redirected to.
type CheckoutSession struct {
	ID  string
	URL string
}

// PortalSession is a hosted billing management page for an existing
// customer.
type PortalSession struct {
	URL string
}

// Summary is the subscription view returned to API clients: the current
// lifecycle state plus the limits of the plan the account sits on.
type Summary struct {
	Status      account.Status
	Plan        Plan
	PeriodEnd   *time.Time
	ReportsUsed int
}
