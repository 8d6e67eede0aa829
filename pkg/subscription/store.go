package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Store defines subscription persistence. It is the only component allowed to
// mutate subscription rows, and it enforces the status transition table on
// every write.
type Store interface {
	// LatestCounting returns the account's most recent subscription in a
	// counting status (active or trialing). Returns ErrNotFound when the
	// account has none; callers treat that as the free-tier floor.
	LatestCounting(ctx context.Context, accountID uuid.UUID) (*Subscription, error)

	// GetByProviderID returns the subscription with the given provider
	// subscription identifier, or ErrNotFound.
	GetByProviderID(ctx context.Context, providerSubID string) (*Subscription, error)

	// CreateLocal inserts a locally activated subscription (the free-tier
	// checkout path). Older counting rows for the account are superseded:
	// they are canceled inside the same transaction.
	CreateLocal(ctx context.Context, sub *Subscription) error

	// Upsert applies a provider-backed subscription keyed by ProviderSubID.
	// If absent, the row is inserted; if present, only status, period bounds,
	// the cancel-at-period-end flag and trial/cancellation timestamps are
	// updated - never tier, amount or currency. Invalid status transitions
	// are refused with ErrInvalidTransition.
	Upsert(ctx context.Context, sub *Subscription) error

	// SetStatusByProviderID forces a status change for invoice events and
	// deletions, subject to the transition table.
	SetStatusByProviderID(ctx context.Context, providerSubID string, status Status) error

	// HasAnyInStatus reports whether the account has any subscription row in
	// one of the given statuses, regardless of age.
	HasAnyInStatus(ctx context.Context, accountID uuid.UUID, statuses ...Status) (bool, error)
}
