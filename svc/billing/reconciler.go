package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cataloghq/cataloghq/pkg/coupon"
	"github.com/cataloghq/cataloghq/pkg/subscription"
)

// ApplyWebhookEvent verifies, parses and applies one webhook delivery from
// the payment provider.
//
// Only a signature verification failure is returned to the caller; the
// transport rejects those deliveries outright. Every other failure is logged
// and swallowed so the provider gets its acknowledgement and does not retry
// an event the local state machine has already refused. Replayed deliveries
// are safe: subscription writes are upserts keyed by the provider's
// subscription ID and coupon redemption is guarded by usage-row existence.
func (s *Service) ApplyWebhookEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		if errors.Is(err, subscription.ErrSignatureInvalid) {
			return err
		}
		s.log.ErrorContext(ctx, "discarding unparseable webhook event", slog.Any("error", err))
		s.record(ctx, "unparseable", "", false, payload)
		return nil
	}

	handleErr := s.handleEvent(ctx, event)
	if handleErr != nil {
		s.log.ErrorContext(ctx, "webhook event not applied",
			slog.String("event_type", string(event.Type)),
			slog.String("provider_event", event.ProviderEvent),
			slog.String("event_id", event.EventID),
			slog.Any("error", handleErr))
	}
	s.record(ctx, string(event.Type), event.EventID, handleErr == nil, payload)
	return nil
}

// record appends to the audit trail when one is configured. Best effort; the
// trail itself swallows and logs append failures.
func (s *Service) record(ctx context.Context, eventType, externalID string, processed bool, payload []byte) {
	if s.trail == nil {
		return
	}
	s.trail.Record(ctx, s.config.ProviderName, eventType, externalID, processed, payload)
}

func (s *Service) handleEvent(ctx context.Context, event *subscription.Event) error {
	switch event.Type {
	case subscription.EventCheckoutCompleted:
		return s.applyCheckoutCompleted(ctx, event)
	case subscription.EventSubscriptionCreated:
		// The authoritative state arrives with checkout completion and the
		// first update; creation is informational.
		s.log.InfoContext(ctx, "subscription created at provider",
			slog.String("provider_sub_id", event.SubscriptionID))
		return nil
	case subscription.EventSubscriptionUpdated:
		return s.applySubscriptionUpdate(ctx, event)
	case subscription.EventSubscriptionDeleted:
		return s.subs.SetStatusByProviderID(ctx, event.SubscriptionID, subscription.StatusCanceled)
	case subscription.EventInvoicePaymentSucceeded:
		return s.subs.SetStatusByProviderID(ctx, event.SubscriptionID, subscription.StatusActive)
	case subscription.EventInvoicePaymentFailed:
		return s.subs.SetStatusByProviderID(ctx, event.SubscriptionID, subscription.StatusPastDue)
	default:
		s.log.WarnContext(ctx, "ignoring unrecognized webhook event",
			slog.String("provider_event", event.ProviderEvent))
		return nil
	}
}

// applyCheckoutCompleted upserts the provider-backed subscription and, when
// a coupon rode along on the checkout session, records its redemption
// exactly once. A usage row already existing for this account and coupon
// means an earlier delivery won; the replay is a no-op.
func (s *Service) applyCheckoutCompleted(ctx context.Context, event *subscription.Event) error {
	sub, err := subscriptionFromEvent(event, s.now())
	if err != nil {
		return err
	}

	if err := s.subs.Upsert(ctx, sub); err != nil {
		return err
	}

	if event.CouponCode == "" {
		return nil
	}
	return s.redeemFromCheckout(ctx, event, sub)
}

func (s *Service) redeemFromCheckout(ctx context.Context, event *subscription.Event, sub *subscription.Subscription) error {
	// Resolve the stored row: Upsert may have matched an existing local ID
	// from an earlier delivery of the same checkout.
	stored, err := s.subs.GetByProviderID(ctx, event.SubscriptionID)
	if err != nil {
		return err
	}

	c, err := s.coupons.Lookup(ctx, event.CouponCode)
	if err != nil {
		return err
	}

	used, err := s.coupons.CustomerUsage(ctx, c.ID, sub.AccountID)
	if err != nil {
		return err
	}
	if used > 0 {
		s.log.InfoContext(ctx, "coupon already redeemed for this account, skipping",
			slog.String("coupon_code", c.Code),
			slog.String("account_id", sub.AccountID.String()))
		return nil
	}

	if _, err := s.coupons.Redeem(ctx, c.ID, sub.AccountID, stored.ID); err != nil {
		// A concurrent delivery may have redeemed between the existence
		// check and the transaction; its rejection is the same no-op.
		var rejection *coupon.Rejection
		if errors.As(err, &rejection) && rejection.Reason == coupon.ReasonAlreadyUsed {
			return nil
		}
		return err
	}
	s.log.InfoContext(ctx, "coupon redeemed from checkout",
		slog.String("coupon_code", c.Code),
		slog.String("subscription_id", stored.ID.String()))
	return nil
}

func (s *Service) applySubscriptionUpdate(ctx context.Context, event *subscription.Event) error {
	sub, err := subscriptionFromEvent(event, s.now())
	if err != nil {
		return err
	}
	return s.subs.Upsert(ctx, sub)
}

// subscriptionFromEvent builds the upsert payload from a normalized provider
// event. Checkout events may omit an explicit status; they activate.
func subscriptionFromEvent(event *subscription.Event, now time.Time) (*subscription.Subscription, error) {
	if event.SubscriptionID == "" {
		return nil, subscription.ErrMissingProviderID
	}
	accountID, err := uuid.Parse(event.AccountID)
	if err != nil {
		return nil, errors.Join(subscription.ErrMalformedEvent, err)
	}

	status := subscription.MapProviderStatus(event.Status)
	if event.Status == "" && event.Type == subscription.EventCheckoutCompleted {
		status = subscription.StatusActive
	}

	sub := &subscription.Subscription{
		ID:                uuid.New(),
		AccountID:         accountID,
		ProviderSubID:     event.SubscriptionID,
		Status:            status,
		Tier:              event.Tier,
		Cycle:             event.Cycle,
		Amount:            event.Amount,
		CancelAtPeriodEnd: event.CancelAtPeriodEnd,
		TrialEndsAt:       event.TrialEnd,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if event.PeriodStart != nil {
		sub.PeriodStart = *event.PeriodStart
	}
	if event.PeriodEnd != nil {
		sub.PeriodEnd = *event.PeriodEnd
	}
	return sub, nil
}
