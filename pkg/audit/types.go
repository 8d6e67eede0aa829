package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is one received webhook delivery, recorded verbatim for idempotency
// auditing. Rows are write-once: nothing in the system updates or deletes
// them, and they are never consulted as the idempotency key itself. The
// reconciler stays idempotent through its upserts; this trail exists so an
// operator can answer "what did the provider actually send us".
type Event struct {
	ID         uuid.UUID `bson:"_id"`
	Provider   string    `bson:"provider"`
	EventType  string    `bson:"event_type"`
	ExternalID string    `bson:"external_id"` // provider's event ID, empty when absent
	Processed  bool      `bson:"processed"`   // false when the reconciler rejected or skipped the event
	Payload    []byte    `bson:"payload"`     // raw request body as delivered
	CreatedAt  time.Time `bson:"created_at"`
}
