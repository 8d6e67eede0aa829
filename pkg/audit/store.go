package audit

import "context"

// Store persists webhook events. Append is insert-only; implementations must
// not expose any mutation of recorded events.
type Store interface {
	Append(ctx context.Context, event Event) error

	// Recent returns the newest events for a provider, most recent first.
	Recent(ctx context.Context, provider string, limit int) ([]Event, error)
}
