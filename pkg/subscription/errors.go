package subscription

import "errors"

var (
	ErrNotFound          = errors.New("subscription not found")
	ErrInvalidTransition = errors.New("invalid subscription status transition")
	ErrInvalidMoney      = errors.New("invalid monetary amount")
	ErrInvalidCycle      = errors.New("invalid billing cycle")
	ErrMissingProviderID = errors.New("provider subscription ID is required")

	// Provider errors
	ErrProviderError      = errors.New("billing provider error")
	ErrSignatureInvalid   = errors.New("webhook signature verification failed")
	ErrMalformedEvent     = errors.New("malformed webhook event payload")
	ErrMissingAPIKey      = errors.New("billing provider API key is required")
	ErrMissingSecret      = errors.New("billing provider webhook secret is required")
	ErrNoCheckoutURL      = errors.New("no checkout URL returned from provider")
	ErrNoPortalURL        = errors.New("no portal URL returned from provider")
	ErrInvalidEnvironment = errors.New("invalid billing provider environment")
)
