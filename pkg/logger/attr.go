package logger

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Attribute helpers keep log field names consistent across the billing
// services.

// Error records a single error under "error"; nil yields an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// AccountID records the account identifier under "account_id".
func AccountID(id uuid.UUID) slog.Attr {
	return slog.String("account_id", id.String())
}

// Provider records the payment provider name under "provider".
func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// EventType records a webhook event type under "event_type".
func EventType(t string) slog.Attr {
	return slog.String("event_type", t)
}

// CouponCode records a coupon code under "coupon_code".
func CouponCode(code string) slog.Attr {
	return slog.String("coupon_code", code)
}

// Component records the emitting component under "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration records an elapsed time under "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
