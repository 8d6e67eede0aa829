package audit

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store for tests and local development.
type MemStore struct {
	mu     sync.Mutex
	events []Event
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (st *MemStore) Append(_ context.Context, event Event) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.events = append(st.events, event)
	return nil
}

func (st *MemStore) Recent(_ context.Context, provider string, limit int) ([]Event, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	var events []Event
	for i := len(st.events) - 1; i >= 0 && len(events) < limit; i-- {
		if st.events[i].Provider == provider {
			events = append(events, st.events[i])
		}
	}
	return events, nil
}

// All returns every recorded event in insertion order, for assertions in
// tests.
func (st *MemStore) All() []Event {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]Event(nil), st.events...)
}
