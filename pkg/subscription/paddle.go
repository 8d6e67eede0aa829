package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/cataloghq/cataloghq/pkg/plans"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`

	// PriceIDs maps the provider's price identifiers to local tiers so
	// webhook events can be resolved to a plan without extra API calls.
	// Populated from config at startup.
	PriceIDs map[string]plans.Tier
}

// PaddleProvider implements Provider for Paddle.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	config   PaddleConfig
}

// NewPaddleProvider creates a Paddle-backed billing provider.
func NewPaddleProvider(config PaddleConfig) (*PaddleProvider, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.WebhookSecret == "" {
		return nil, ErrMissingSecret
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(config.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvironment, config.Environment)
	}
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(config.WebhookSecret),
		config:   config,
	}, nil
}

// CreateCheckoutLink creates a hosted checkout session in Paddle. The local
// account ID travels through custom data so webhook events can be linked back.
func (p *PaddleProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if req.PriceID == "" {
		return nil, errors.New("price ID is required")
	}
	if req.AccountID == "" {
		return nil, errors.New("account ID is required")
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceID,
		Quantity: 1,
	})

	transactionReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"account_id": req.AccountID,
		},
	}
	if req.Email != "" {
		transactionReq.CustomData["email"] = req.Email
	}
	if req.CouponCode != "" {
		transactionReq.CustomData["coupon_code"] = req.CouponCode
	}
	if req.SuccessURL != "" {
		transactionReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, transactionReq)
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	if transaction.Checkout == nil || transaction.Checkout.URL == nil {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutLink{
		URL:       *transaction.Checkout.URL,
		SessionID: transaction.ID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

// GetCustomerPortalLink returns a link to Paddle's customer portal.
func (p *PaddleProvider) GetCustomerPortalLink(ctx context.Context, sub *Subscription) (*PortalLink, error) {
	if sub == nil || sub.ProviderSubID == "" {
		return nil, ErrMissingProviderID
	}

	portalSession, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, &paddle.CreateCustomerPortalSessionRequest{
		CustomerID:      sub.AccountID.String(),
		SubscriptionIDs: []string{sub.ProviderSubID},
	})
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	if portalSession.URLs.General.Overview == "" {
		return nil, ErrNoPortalURL
	}

	return &PortalLink{
		URL:       portalSession.URLs.General.Overview,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

// ParseWebhook verifies the Paddle signature and normalizes the event.
// Signature failure is reported as ErrSignatureInvalid before any parsing.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrSignatureInvalid, err)
	}
	if !valid {
		return nil, ErrSignatureInvalid
	}

	var envelope struct {
		EventID   string         `json:"event_id"`
		EventType string         `json:"event_type"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}

	event := &Event{
		Type:          mapPaddleEventType(envelope.EventType),
		ProviderEvent: envelope.EventType,
		EventID:       envelope.EventID,
		Raw:           envelope.Data,
	}
	p.extractPaddleData(event, envelope.Data)
	return event, nil
}

// extractPaddleData pulls the normalized fields out of Paddle's loosely typed
// event data. Missing fields are left zero; the reconciler decides what is
// required per event type.
func (p *PaddleProvider) extractPaddleData(event *Event, data map[string]any) {
	if id, ok := data["id"].(string); ok {
		event.SessionID = id
		event.SubscriptionID = id
	}
	// Transaction events reference the subscription they belong to.
	if subID, ok := data["subscription_id"].(string); ok && subID != "" {
		event.SubscriptionID = subID
	}
	if status, ok := data["status"].(string); ok {
		event.Status = status
	}

	if customData, ok := data["custom_data"].(map[string]any); ok {
		if accountID, ok := customData["account_id"].(string); ok {
			event.AccountID = accountID
		}
		if code, ok := customData["coupon_code"].(string); ok {
			event.CouponCode = code
		}
	}

	if billingCycle, ok := data["billing_cycle"].(map[string]any); ok {
		if interval, ok := billingCycle["interval"].(string); ok {
			switch interval {
			case "month":
				event.Cycle = plans.CycleMonthly
			case "year":
				event.Cycle = plans.CycleYearly
			}
		}
	}

	if period, ok := data["current_billing_period"].(map[string]any); ok {
		event.PeriodStart = parsePaddleTime(period["starts_at"])
		event.PeriodEnd = parsePaddleTime(period["ends_at"])
	}
	event.TrialEnd = parsePaddleTime(data["trial_dates_ends_at"])
	if scheduled, ok := data["scheduled_change"].(map[string]any); ok {
		if action, ok := scheduled["action"].(string); ok && action == "cancel" {
			event.CancelAtPeriodEnd = true
		}
	}

	if items, ok := data["items"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			priceID := ""
			if id, ok := item["price_id"].(string); ok {
				priceID = id
			} else if price, ok := item["price"].(map[string]any); ok {
				if id, ok := price["id"].(string); ok {
					priceID = id
				}
			}
			if tier, ok := p.config.PriceIDs[priceID]; ok {
				event.Tier = tier
			}
		}
	}

	if totals, ok := data["details"].(map[string]any); ok {
		if t, ok := totals["totals"].(map[string]any); ok {
			if total, ok := t["total"].(string); ok {
				var amount int64
				if _, err := fmt.Sscan(total, &amount); err == nil {
					event.Amount.Amount = amount
				}
			}
		}
	}
	if cur, ok := data["currency_code"].(string); ok {
		event.Amount.Currency = cur
	}
}

func parsePaddleTime(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func mapPaddleEventType(providerEvent string) EventType {
	switch providerEvent {
	case "transaction.completed":
		return EventCheckoutCompleted
	case "subscription.created":
		return EventSubscriptionCreated
	case "subscription.updated":
		return EventSubscriptionUpdated
	case "subscription.canceled":
		return EventSubscriptionDeleted
	case "transaction.payment_succeeded":
		return EventInvoicePaymentSucceeded
	case "transaction.payment_failed":
		return EventInvoicePaymentFailed
	default:
		return EventUnknown
	}
}
