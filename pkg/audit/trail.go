package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Trail records webhook events best-effort: a failed append is logged and
// swallowed so an audit outage never blocks webhook processing. The
// reconciler's own idempotency does not depend on this trail.
type Trail struct {
	store Store
	log   *slog.Logger
}

// NewTrail creates a Trail over the given store.
// Panics on a nil store to fail fast during initialization.
func NewTrail(store Store, log *slog.Logger) *Trail {
	if store == nil {
		panic("audit: Store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Trail{store: store, log: log}
}

// Record appends one received webhook delivery.
func (t *Trail) Record(ctx context.Context, provider, eventType, externalID string, processed bool, payload []byte) {
	event := Event{
		ID:         uuid.New(),
		Provider:   provider,
		EventType:  eventType,
		ExternalID: externalID,
		Processed:  processed,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}

	if err := t.store.Append(ctx, event); err != nil {
		t.log.ErrorContext(ctx, "failed to record webhook event",
			slog.String("provider", provider),
			slog.String("event_type", eventType),
			slog.String("external_id", externalID),
			slog.Any("error", err),
		)
	}
}
