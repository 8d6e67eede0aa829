package billing

import "errors"

var (
	ErrPriceNotConfigured     = errors.New("billing: no price configured for tier and cycle")
	ErrNoProviderSubscription = errors.New("billing: account has no provider-backed subscription")
	ErrInvalidParams          = errors.New("billing: invalid parameters")
	ErrDuplicateInvitation    = errors.New("billing: pending invitation already exists for this email")
	ErrInvitationNotFound     = errors.New("billing: invitation not found")
	ErrStoreFailure           = errors.New("billing: store operation failed")
)
