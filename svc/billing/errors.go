package billing

import "errors"

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	ErrTransient        = errors.New("transient billing failure, redeliver")

	ErrBillingUnconfigured  = errors.New("billing provider is not configured")
	ErrInvalidPlan          = errors.New("unknown or non-purchasable plan")
	ErrNoActiveSubscription = errors.New("account has no billing relationship")
	ErrInvalidState         = errors.New("subscription state does not allow this action")
	ErrProviderUnavailable  = errors.New("billing provider request failed")

	ErrFailedToLoadPlans = errors.New("failed to load plan catalog")
	ErrNoCheckoutURL     = errors.New("no checkout URL returned from provider")
	ErrNoPortalURL       = errors.New("no portal URL returned from provider")

	ErrMissingAPIKey        = errors.New("billing provider API key is required")
	ErrMissingWebhookSecret = errors.New("webhook signing secret is required")
)
