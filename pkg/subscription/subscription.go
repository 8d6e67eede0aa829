package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/cataloghq/cataloghq/pkg/plans"
)

// Subscription is the local record of an account's subscription. At most one
// subscription per account is in a counting status at a time; that invariant
// is maintained by selecting the most recent counting row, so stale records
// are tolerated but ignored.
type Subscription struct {
	ID        uuid.UUID
	AccountID uuid.UUID

	// ProviderSubID is the payment provider's subscription identifier.
	// Empty until the subscription is provider-backed; unique when set.
	ProviderSubID string

	Status Status
	Tier   plans.Tier
	Cycle  plans.BillingCycle
	Amount Money

	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool

	TrialEndsAt *time.Time
	CanceledAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Counting reports whether this subscription counts toward entitlement.
func (s *Subscription) Counting() bool {
	return s.Status.Counting()
}

func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

func (s *Subscription) IsTrialing() bool {
	return s.Status == StatusTrialing
}

func (s *Subscription) IsCanceled() bool {
	return s.Status == StatusCanceled
}

// TrialDaysRemainingAt returns the number of days remaining in the trial at a
// given time. Returns 0 if not in trial or the trial has expired. Accepting
// the clock makes the computation testable with fixed times.
func (s *Subscription) TrialDaysRemainingAt(now time.Time) int {
	if !s.IsTrialing() || s.TrialEndsAt == nil {
		return 0
	}

	remaining := s.TrialEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}

	// Round up partial days to be user-friendly
	days := remaining.Hours() / 24
	return int(days + 0.5)
}

// NewLocal builds a free-tier subscription activated without the payment
// provider. The billing period is computed locally from now.
func NewLocal(accountID uuid.UUID, tier plans.Tier, cycle plans.BillingCycle, now time.Time) *Subscription {
	now = now.UTC()
	periodEnd := now.AddDate(0, 1, 0)
	if cycle == plans.CycleYearly {
		periodEnd = now.AddDate(1, 0, 0)
	}

	return &Subscription{
		ID:          uuid.New(),
		AccountID:   accountID,
		Status:      StatusActive,
		Tier:        tier,
		Cycle:       cycle,
		Amount:      Money{Amount: 0, Currency: "USD"},
		PeriodStart: now,
		PeriodEnd:   periodEnd,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
