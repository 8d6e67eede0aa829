package entitlement

import "errors"

var (
	ErrLimitExceeded       = errors.New("resource limit exceeded")
	ErrNoCounterRegistered = errors.New("no counter registered for resource")
	ErrFailedToCountUsage  = errors.New("failed to count resource usage")
	ErrFailedToResolveTier = errors.New("failed to resolve effective tier")
	ErrDowngradeBlocked    = errors.New("downgrade blocked by current usage")
)
