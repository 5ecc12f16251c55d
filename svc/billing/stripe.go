package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/bugtrackerhq/entitlements/svc/account"
)

// StripeConfig holds the Stripe credentials and the price IDs the paid
// plans map to. Billing stays disabled when no secret key is set.
type StripeConfig struct {
	SecretKey       string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret   string `env:"STRIPE_WEBHOOK_SECRET"`
	StandardPriceID string `env:"STRIPE_PRICE_STANDARD" envDefault:"price_standard_monthly"`
	PremiumPriceID  string `env:"STRIPE_PRICE_PREMIUM" envDefault:"price_premium_monthly"`
}

// Configured reports whether the config carries working credentials.
func (c StripeConfig) Configured() bool {
	return c.SecretKey != "" && c.WebhookSecret != ""
}

// StripeProvider implements Provider on top of the Stripe API.
type StripeProvider struct {
	webhookSecret string
	prices        map[account.Plan]string
}

// NewStripeProvider creates a Stripe-backed billing provider.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}
	stripe.Key = cfg.SecretKey
	return &StripeProvider{
		webhookSecret: cfg.WebhookSecret,
		prices: map[account.Plan]string{
			account.PlanStandard: cfg.StandardPriceID,
			account.PlanPremium:  cfg.PremiumPriceID,
		},
	}, nil
}

func (p *StripeProvider) EnsureCustomer(ctx context.Context, acc *account.Account) (string, error) {
	if acc.BillingCustomerID != "" {
		return acc.BillingCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(acc.Email),
		Metadata: map[string]string{
			"account_id": acc.ID.String(),
		},
	}
	params.Context = ctx

	c, err := customer.New(params)
	if err != nil {
		return "", errors.Join(ErrProviderUnavailable, err)
	}
	return c.ID, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	priceID, ok := p.prices[req.Plan]
	if !ok || priceID == "" {
		return nil, ErrInvalidPlan
	}

	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(req.CustomerRef),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		Metadata: map[string]string{
			"account_id": req.AccountID.String(),
			"plan":       string(req.Plan),
		},
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}
	if sess.URL == "" {
		return nil, ErrNoCheckoutURL
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (*PortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer: stripe.String(customerRef),
	}
	if returnURL != "" {
		params.ReturnURL = stripe.String(returnURL)
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}
	if sess.URL == "" {
		return nil, ErrNoPortalURL
	}
	return &PortalSession{URL: sess.URL}, nil
}

func (p *StripeProvider) CancelAtPeriodEnd(ctx context.Context, customerRef string) (time.Time, error) {
	sub, err := p.currentSubscription(ctx, customerRef)
	if err != nil {
		return time.Time{}, err
	}

	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx

	updated, err := subscription.Update(sub.ID, params)
	if err != nil {
		return time.Time{}, errors.Join(ErrProviderUnavailable, err)
	}
	return subscriptionPeriodEnd(updated), nil
}

func (p *StripeProvider) Resume(ctx context.Context, customerRef string) error {
	sub, err := p.currentSubscription(ctx, customerRef)
	if err != nil {
		return err
	}

	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(false)}
	params.Context = ctx

	if _, err := subscription.Update(sub.ID, params); err != nil {
		return errors.Join(ErrProviderUnavailable, err)
	}
	return nil
}

func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}

	switch EventType(ev.Type) {
	case EventCheckoutCompleted:
		var sess struct {
			Customer string            `json:"customer"`
			Metadata map[string]string `json:"metadata"`
		}
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		accountID, err := uuid.Parse(sess.Metadata["account_id"])
		if err != nil {
			return nil, fmt.Errorf("%w: checkout session %s has no account_id metadata", ErrMalformedEvent, ev.ID)
		}
		plan := account.Plan(sess.Metadata["plan"])
		if !plan.Valid() {
			return nil, fmt.Errorf("%w: checkout session %s names unknown plan %q", ErrMalformedEvent, ev.ID, sess.Metadata["plan"])
		}
		return &Event{
			ID:          ev.ID,
			Type:        EventCheckoutCompleted,
			CustomerRef: sess.Customer,
			AccountID:   accountID,
			Plan:        plan,
			PeriodStart: time.Unix(ev.Created, 0).UTC(),
		}, nil

	case EventInvoicePaid, EventInvoiceFailed:
		var inv struct {
			Customer    string `json:"customer"`
			PeriodStart int64  `json:"period_start"`
		}
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		if inv.Customer == "" {
			return nil, fmt.Errorf("%w: invoice event %s has no customer", ErrMalformedEvent, ev.ID)
		}
		return &Event{
			ID:          ev.ID,
			Type:        EventType(ev.Type),
			CustomerRef: inv.Customer,
			PeriodStart: time.Unix(inv.PeriodStart, 0).UTC(),
		}, nil

	case EventSubscriptionDeleted:
		var sub struct {
			Customer string `json:"customer"`
		}
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		if sub.Customer == "" {
			return nil, fmt.Errorf("%w: subscription event %s has no customer", ErrMalformedEvent, ev.ID)
		}
		return &Event{
			ID:          ev.ID,
			Type:        EventSubscriptionDeleted,
			CustomerRef: sub.Customer,
		}, nil

	default:
		return nil, nil
	}
}

// currentSubscription returns the customer's single active subscription.
// Subscriptions scheduled for cancellation still count as active until
// the period closes, so this also finds those.
func (p *StripeProvider) currentSubscription(ctx context.Context, customerRef string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerRef),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx

	iter := subscription.List(params)
	for iter.Next() {
		return iter.Subscription(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}
	return nil, ErrNoActiveSubscription
}

// subscriptionPeriodEnd extracts the close of the current billing
// period. Since the basil API the period window lives on the
// subscription item, with CancelAt as a fallback once a cancellation
// has been scheduled.
func subscriptionPeriodEnd(sub *stripe.Subscription) time.Time {
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].CurrentPeriodEnd > 0 {
		return time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0).UTC()
	}
	if sub.CancelAt > 0 {
		return time.Unix(sub.CancelAt, 0).UTC()
	}
	return time.Time{}
}
