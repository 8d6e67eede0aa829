package coupon

import (
	"context"

	"github.com/google/uuid"
)

// Store defines coupon persistence.
//
// Redeem is the authoritative operation: it must execute the usage-predicate
// re-checks and the writes (usage insert plus used_count increment) inside a
// single transaction scoped to the coupon row, so two concurrent redemptions
// racing for the last remaining global slot cannot both succeed. Validation
// done earlier is advisory only and is never trusted across the transaction
// boundary.
type Store interface {
	// FindByCode returns the coupon matching the normalized code, or a
	// *Rejection with ReasonNotFound.
	FindByCode(ctx context.Context, code string) (*Coupon, error)

	// CustomerUsageCount returns how many times the account has redeemed the
	// coupon.
	CustomerUsageCount(ctx context.Context, couponID, accountID uuid.UUID) (int64, error)

	// Redeem atomically re-validates the coupon's usage predicates and
	// records the redemption. On refusal it returns a *Rejection carrying
	// the losing predicate's reason (already_used, limit_reached, ...).
	Redeem(ctx context.Context, couponID, accountID, subscriptionID uuid.UUID) (*Usage, error)
}
