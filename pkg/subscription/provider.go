package subscription

import (
	"context"
	"time"

	"github.com/cataloghq/cataloghq/pkg/plans"
)

// Provider defines the minimal interface for payment provider integrations.
// The provider handles payment complexity through hosted checkouts and
// customer portals; this core only consumes its event stream.
//
// ParseWebhook must verify the event envelope's cryptographic signature and
// return ErrSignatureInvalid when verification fails, before any parsing of
// the business payload.
type Provider interface {
	// CreateCheckoutLink creates a hosted checkout session for a paid tier.
	CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error)

	// GetCustomerPortalLink returns a temporary link to the provider's
	// customer portal where users manage payment methods and cancellation.
	GetCustomerPortalLink(ctx context.Context, sub *Subscription) (*PortalLink, error)

	// ParseWebhook verifies and parses an incoming webhook delivery into a
	// normalized Event.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error)
}

// CheckoutRequest contains the data needed to create a checkout session.
type CheckoutRequest struct {
	PriceID    string // provider's price identifier for the tier+cycle
	AccountID  string // local account ID, carried through provider metadata
	Email      string
	CouponCode string // optional promotional code attached to the session
	SuccessURL string
	CancelURL  string
}

// CheckoutLink represents a hosted checkout session.
type CheckoutLink struct {
	URL       string
	SessionID string
	ExpiresAt time.Time
}

// PortalLink represents a customer portal session.
type PortalLink struct {
	URL       string
	ExpiresAt time.Time
}

// EventType is the normalized billing event type. Each provider maps its own
// event names onto these.
type EventType string

const (
	EventCheckoutCompleted       EventType = "checkout_completed"
	EventSubscriptionCreated     EventType = "subscription_created"
	EventSubscriptionUpdated     EventType = "subscription_updated"
	EventSubscriptionDeleted     EventType = "subscription_deleted"
	EventInvoicePaymentSucceeded EventType = "invoice_payment_succeeded"
	EventInvoicePaymentFailed    EventType = "invoice_payment_failed"
	EventUnknown                 EventType = "unknown"
)

// Event is a normalized webhook event from the billing provider.
type Event struct {
	Type          EventType
	ProviderEvent string // original provider event name
	EventID       string // provider's event identifier, used for audit only

	SubscriptionID string // provider's stable subscription identifier
	SessionID      string // checkout session identifier, set on checkout events
	AccountID      string // local account ID recovered from provider metadata

	Status string // provider status vocabulary; see MapProviderStatus

	Tier              plans.Tier
	Cycle             plans.BillingCycle
	Amount            Money
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
	TrialEnd          *time.Time

	// CouponCode is the promotional code attached to a checkout session,
	// empty when none was used.
	CouponCode string

	Raw map[string]any // full provider payload for auditing
}
