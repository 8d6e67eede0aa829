package coupon

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store with the same redemption semantics as the
// Postgres implementation: the whole redeem runs under one lock, and the
// used_count increment is conditional on the global cap. Used by tests and
// local development.
type MemStore struct {
	mu      sync.Mutex
	coupons map[uuid.UUID]*Coupon
	usages  []Usage
}

// NewMemStore returns an in-memory store seeded with the given coupons.
func NewMemStore(coupons ...*Coupon) *MemStore {
	st := &MemStore{coupons: make(map[uuid.UUID]*Coupon, len(coupons))}
	for _, c := range coupons {
		cp := *c
		cp.Code = NormalizeCode(cp.Code)
		st.coupons[cp.ID] = &cp
	}
	return st
}

func (st *MemStore) FindByCode(_ context.Context, code string) (*Coupon, error) {
	normalized := NormalizeCode(code)

	st.mu.Lock()
	defer st.mu.Unlock()

	for _, c := range st.coupons {
		if c.Code == normalized {
			cp := *c
			return &cp, nil
		}
	}
	return nil, Reject(normalized, ReasonNotFound)
}

func (st *MemStore) CustomerUsageCount(_ context.Context, couponID, accountID uuid.UUID) (int64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.customerUsageCountLocked(couponID, accountID), nil
}

func (st *MemStore) customerUsageCountLocked(couponID, accountID uuid.UUID) int64 {
	var count int64
	for _, u := range st.usages {
		if u.CouponID == couponID && u.AccountID == accountID {
			count++
		}
	}
	return count
}

func (st *MemStore) Redeem(_ context.Context, couponID, accountID, subscriptionID uuid.UUID) (*Usage, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	c, ok := st.coupons[couponID]
	if !ok {
		return nil, Reject("", ReasonNotFound)
	}

	now := time.Now().UTC()
	switch {
	case !c.Active:
		return nil, Reject(c.Code, ReasonInactive)
	case c.ValidUntil != nil && c.ValidUntil.Before(now):
		return nil, Reject(c.Code, ReasonExpired)
	case c.ValidFrom != nil && c.ValidFrom.After(now):
		return nil, Reject(c.Code, ReasonNotYetValid)
	}

	if st.customerUsageCountLocked(couponID, accountID) >= c.LimitPerCustomer {
		return nil, Reject(c.Code, ReasonAlreadyUsed)
	}

	// Conditional increment, mirroring the SQL affected-row check.
	if c.LimitTotal != nil && c.UsedCount >= *c.LimitTotal {
		return nil, Reject(c.Code, ReasonLimitReached)
	}
	c.UsedCount++

	u := Usage{
		ID:             uuid.New(),
		CouponID:       couponID,
		AccountID:      accountID,
		SubscriptionID: subscriptionID,
		CreatedAt:      now,
	}
	st.usages = append(st.usages, u)

	cp := u
	return &cp, nil
}

// UsageCount reports the total recorded usages for a coupon, for assertions
// in tests.
func (st *MemStore) UsageCount(couponID uuid.UUID) int64 {
	st.mu.Lock()
	defer st.mu.Unlock()

	var count int64
	for _, u := range st.usages {
		if u.CouponID == couponID {
			count++
		}
	}
	return count
}

// Get returns a copy of the stored coupon, for assertions in tests.
func (st *MemStore) Get(couponID uuid.UUID) (*Coupon, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	c, ok := st.coupons[couponID]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}
