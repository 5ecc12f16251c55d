package billing

import (
	"log/slog"
	"time"
)

// Option configures optional Service settings.
type Option func(*Service)

// WithProvider attaches a payment provider. Without one the service
// runs in entitlement-only mode and refuses provider-facing calls.
func WithProvider(p Provider) Option {
	return func(s *Service) {
		s.provider = p
	}
}

// WithLogger sets the structured logger. Panics on nil to fail fast
// during initialization.
func WithLogger(log *slog.Logger) Option {
	if log == nil {
		panic("billing: logger cannot be nil")
	}
	return func(s *Service) {
		s.log = log
	}
}

// WithCheckoutURLs sets where the provider sends the user back after a
// completed or abandoned checkout.
func WithCheckoutURLs(successURL, cancelURL string) Option {
	return func(s *Service) {
		s.successURL = successURL
		s.cancelURL = cancelURL
	}
}

// WithPortalReturnURL sets where the billing portal links back to.
func WithPortalReturnURL(url string) Option {
	return func(s *Service) {
		s.portalReturnURL = url
	}
}

// WithProviderTimeout bounds every outbound provider call. Panics on a
// non-positive duration.
func WithProviderTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("billing: provider timeout must be positive")
	}
	return func(s *Service) {
		s.providerTimeout = d
	}
}
