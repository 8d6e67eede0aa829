package coupon

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cataloghq/cataloghq/pkg/plans"
)

// DiscountType determines how a coupon's value is applied to an amount.
type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
)

// Coupon is a promotional code with eligibility rules and usage caps.
type Coupon struct {
	ID     uuid.UUID
	Code   string // stored normalized; comparisons are case-insensitive
	Type   DiscountType
	Value  int64 // percent for percentage coupons, smallest currency unit otherwise
	Active bool
	Public bool

	// LimitTotal caps redemptions across all customers; nil means unlimited.
	// UsedCount must never exceed it, even under concurrent redemption.
	LimitTotal       *int64
	LimitPerCustomer int64
	UsedCount        int64

	ValidFrom  *time.Time
	ValidUntil *time.Time

	// AllowedCycles restricts which billing cycles the coupon applies to.
	// Empty means all cycles.
	AllowedCycles []plans.BillingCycle

	CreatedAt time.Time
}

// NormalizeCode canonicalizes a user-supplied coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CycleAllowed reports whether the coupon may be applied to the given cycle.
func (c *Coupon) CycleAllowed(cycle plans.BillingCycle) bool {
	if len(c.AllowedCycles) == 0 {
		return true
	}
	return slices.Contains(c.AllowedCycles, cycle)
}

// DiscountFor computes the discount for a proposed amount, clamped to
// [0, amount] so the final charge can never go negative.
func (c *Coupon) DiscountFor(amount int64) int64 {
	var discount int64
	switch c.Type {
	case DiscountPercentage:
		discount = amount * c.Value / 100
	case DiscountFixedAmount:
		discount = c.Value
	}
	if discount < 0 {
		return 0
	}
	return min(discount, amount)
}

// Usage is the append-only record of one coupon redemption. The existence of
// a row is the source of truth for "has this account already used this
// coupon".
type Usage struct {
	ID             uuid.UUID
	CouponID       uuid.UUID
	AccountID      uuid.UUID
	SubscriptionID uuid.UUID
	CreatedAt      time.Time
}

// Quote is the result of a successful validation: the matched coupon and the
// discounted amounts.
type Quote struct {
	Coupon         *Coupon
	DiscountAmount int64
	FinalAmount    int64
}
