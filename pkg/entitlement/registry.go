package entitlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cataloghq/cataloghq/pkg/plans"
)

// CounterFunc returns the current usage of a resource for an account. The
// scope narrows the count where the resource is nested (products and
// categories are counted per catalogue); pass uuid.Nil for account-wide
// resources. Counters should be fast: aggregate at the repository level or
// wrap with CachedCounter.
type CounterFunc func(ctx context.Context, accountID, scope uuid.UUID) (int64, error)

// CounterRegistry maps a resource to its CounterFunc.
// Not thread-safe: register all counters at startup only.
type CounterRegistry map[plans.Resource]CounterFunc

// NewRegistry returns a new, empty CounterRegistry.
func NewRegistry() CounterRegistry {
	return make(CounterRegistry)
}

// Register sets or replaces the CounterFunc for the given resource.
// Panics if fn is nil.
func (r CounterRegistry) Register(res plans.Resource, fn CounterFunc) {
	if fn == nil {
		panic(fmt.Sprintf("entitlement: CounterFunc for resource %q cannot be nil", res))
	}
	r[res] = fn
}
