package subscription

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store with the same transition semantics as the
// Postgres implementation. Intended for tests and local development.
type MemStore struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*Subscription
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{subs: make(map[uuid.UUID]*Subscription)}
}

func (st *MemStore) clone(s *Subscription) *Subscription {
	cp := *s
	return &cp
}

func (st *MemStore) LatestCounting(_ context.Context, accountID uuid.UUID) (*Subscription, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	var latest *Subscription
	for _, s := range st.subs {
		if s.AccountID != accountID || !s.Counting() {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return st.clone(latest), nil
}

func (st *MemStore) GetByProviderID(_ context.Context, providerSubID string) (*Subscription, error) {
	if providerSubID == "" {
		return nil, ErrMissingProviderID
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if s := st.findByProviderID(providerSubID); s != nil {
		return st.clone(s), nil
	}
	return nil, ErrNotFound
}

func (st *MemStore) findByProviderID(providerSubID string) *Subscription {
	for _, s := range st.subs {
		if s.ProviderSubID == providerSubID {
			return s
		}
	}
	return nil
}

func (st *MemStore) HasAnyInStatus(_ context.Context, accountID uuid.UUID, statuses ...Status) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, s := range st.subs {
		if s.AccountID == accountID && slices.Contains(statuses, s.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (st *MemStore) CreateLocal(_ context.Context, sub *Subscription) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now().UTC()
	for _, s := range st.subs {
		if s.AccountID == sub.AccountID && s.Counting() {
			s.Status = StatusCanceled
			s.CanceledAt = &now
			s.UpdatedAt = now
		}
	}

	st.subs[sub.ID] = st.clone(sub)
	return nil
}

func (st *MemStore) Upsert(_ context.Context, sub *Subscription) error {
	if sub.ProviderSubID == "" {
		return ErrMissingProviderID
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now().UTC()
	current := st.findByProviderID(sub.ProviderSubID)
	if current == nil {
		cp := st.clone(sub)
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now
		st.subs[cp.ID] = cp
		return nil
	}

	if !current.Status.CanTransitionTo(sub.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, sub.Status)
	}

	current.Status = sub.Status
	if !sub.PeriodStart.IsZero() {
		current.PeriodStart = sub.PeriodStart
	}
	if !sub.PeriodEnd.IsZero() {
		current.PeriodEnd = sub.PeriodEnd
	}
	current.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	if sub.Status == StatusCanceled && current.CanceledAt == nil {
		current.CanceledAt = &now
	}
	current.UpdatedAt = now
	return nil
}

func (st *MemStore) SetStatusByProviderID(_ context.Context, providerSubID string, status Status) error {
	if providerSubID == "" {
		return ErrMissingProviderID
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	current := st.findByProviderID(providerSubID)
	if current == nil {
		return ErrNotFound
	}
	if !current.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	now := time.Now().UTC()
	current.Status = status
	if status == StatusCanceled && current.CanceledAt == nil {
		current.CanceledAt = &now
	}
	current.UpdatedAt = now
	return nil
}
