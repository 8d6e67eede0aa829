package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cataloghq/cataloghq/pkg/plans"
	"github.com/cataloghq/cataloghq/pkg/webhook"
)

// GenericConfig configures the HMAC-signed generic billing provider.
type GenericConfig struct {
	WebhookSecret string        `env:"BILLING_WEBHOOK_SECRET,required"`
	MaxEventAge   time.Duration `env:"BILLING_WEBHOOK_MAX_AGE" envDefault:"5m"`
}

// GenericProvider consumes webhook events signed with a shared HMAC secret.
// It covers self-hosted deployments and the test harness, where events are
// produced by trusted infrastructure rather than a hosted payment processor.
// Checkout and portal sessions are not available through it.
type GenericProvider struct {
	config GenericConfig
}

// NewGenericProvider returns a Provider verifying events with cfg.WebhookSecret.
func NewGenericProvider(cfg GenericConfig) (*GenericProvider, error) {
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingSecret
	}
	return &GenericProvider{config: cfg}, nil
}

func (p *GenericProvider) CreateCheckoutLink(context.Context, CheckoutRequest) (*CheckoutLink, error) {
	return nil, errors.Join(ErrProviderError, errors.New("generic provider has no hosted checkout"))
}

func (p *GenericProvider) GetCustomerPortalLink(context.Context, *Subscription) (*PortalLink, error) {
	return nil, errors.Join(ErrProviderError, errors.New("generic provider has no customer portal"))
}

// genericEnvelope is the wire format accepted by the generic provider.
type genericEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		SubscriptionID    string             `json:"subscription_id"`
		SessionID         string             `json:"session_id"`
		AccountID         string             `json:"account_id"`
		Status            string             `json:"status"`
		Tier              plans.Tier         `json:"tier"`
		Cycle             plans.BillingCycle `json:"cycle"`
		Amount            int64              `json:"amount"`
		Currency          string             `json:"currency"`
		PeriodStart       *time.Time         `json:"period_start"`
		PeriodEnd         *time.Time         `json:"period_end"`
		CancelAtPeriodEnd bool               `json:"cancel_at_period_end"`
		TrialEnd          *time.Time         `json:"trial_end"`
		CouponCode        string             `json:"coupon_code"`
	} `json:"data"`
}

func (p *GenericProvider) ParseWebhook(_ context.Context, payload []byte, signature string) (*Event, error) {
	if err := webhook.Verify(p.config.WebhookSecret, payload, signature, p.config.MaxEventAge); err != nil {
		return nil, errors.Join(ErrSignatureInvalid, err)
	}

	var envelope genericEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}

	var raw map[string]any
	_ = json.Unmarshal(payload, &raw)

	return &Event{
		Type:              mapGenericEventType(envelope.Type),
		ProviderEvent:     envelope.Type,
		EventID:           envelope.ID,
		SubscriptionID:    envelope.Data.SubscriptionID,
		SessionID:         envelope.Data.SessionID,
		AccountID:         envelope.Data.AccountID,
		Status:            envelope.Data.Status,
		Tier:              envelope.Data.Tier,
		Cycle:             envelope.Data.Cycle,
		Amount:            Money{Amount: envelope.Data.Amount, Currency: envelope.Data.Currency},
		PeriodStart:       envelope.Data.PeriodStart,
		PeriodEnd:         envelope.Data.PeriodEnd,
		CancelAtPeriodEnd: envelope.Data.CancelAtPeriodEnd,
		TrialEnd:          envelope.Data.TrialEnd,
		CouponCode:        envelope.Data.CouponCode,
		Raw:               raw,
	}, nil
}

func mapGenericEventType(providerEvent string) EventType {
	switch providerEvent {
	case "checkout.completed":
		return EventCheckoutCompleted
	case "subscription.created":
		return EventSubscriptionCreated
	case "subscription.updated":
		return EventSubscriptionUpdated
	case "subscription.deleted":
		return EventSubscriptionDeleted
	case "invoice.payment_succeeded":
		return EventInvoicePaymentSucceeded
	case "invoice.payment_failed":
		return EventInvoicePaymentFailed
	default:
		return EventUnknown
	}
}
