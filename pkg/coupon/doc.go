// Package coupon validates promotional codes and atomically records their
// redemption.
//
// Validation and redemption are deliberately split. Ledger.Validate is
// advisory pre-flight: it reports the highest-priority refusal (not_found,
// inactive, expired, not_yet_valid, wrong_billing_cycle, already_used,
// limit_reached, not_eligible) as a typed *Rejection with a stable reason
// code. Store.Redeem is authoritative: it re-checks the usage predicates
// inside its own transaction - a row lock on the coupon plus a conditional
// used_count increment whose affected-row count is verified - so two
// concurrent redemptions racing for the last remaining global slot can never
// both succeed.
//
// One-off business rules (such as a launch promo restricted to accounts
// younger than a day) attach to individual codes as EligibilityFunc
// predicates via WithEligibility; the generic validation path never learns
// about them.
package coupon
