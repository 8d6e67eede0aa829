package subscription

import (
	"errors"
	"fmt"

	"golang.org/x/text/currency"
)

// Status represents the current state of a subscription. Transitions between
// statuses are restricted to the table below; the store refuses anything else.
type Status string

const (
	StatusIncomplete Status = "incomplete"
	StatusActive     Status = "active"
	StatusTrialing   Status = "trialing"
	StatusPastDue    Status = "past_due"
	StatusUnpaid     Status = "unpaid"
	StatusCanceled   Status = "canceled" // terminal
)

// transitions is the allowed state change table. Trialing and incomplete are
// entry states set at creation; they have no inbound transitions.
var transitions = map[Status]map[Status]bool{
	StatusIncomplete: {StatusActive: true, StatusCanceled: true},
	StatusActive:     {StatusPastDue: true, StatusCanceled: true, StatusUnpaid: true},
	StatusPastDue:    {StatusActive: true, StatusCanceled: true, StatusUnpaid: true},
	StatusTrialing:   {StatusActive: true, StatusCanceled: true, StatusPastDue: true},
	StatusUnpaid:     {StatusActive: true, StatusCanceled: true},
	StatusCanceled:   {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether moving from s to target is allowed.
// A same-status transition is always a permitted no-op so that replayed
// provider events stay idempotent.
func (s Status) CanTransitionTo(target Status) bool {
	if s == target {
		return true
	}
	return transitions[s][target]
}

// Counting reports whether the status counts toward entitlement.
// Exactly active and trialing do.
func (s Status) Counting() bool {
	return s == StatusActive || s == StatusTrialing
}

// MapProviderStatus translates the payment provider's status vocabulary into
// a local Status. Unrecognized values map to incomplete rather than being
// silently dropped.
func MapProviderStatus(providerStatus string) Status {
	switch providerStatus {
	case "active":
		return StatusActive
	case "trialing":
		return StatusTrialing
	case "past_due":
		return StatusPastDue
	case "canceled":
		return StatusCanceled
	case "unpaid":
		return StatusUnpaid
	case "incomplete", "incomplete_expired":
		return StatusIncomplete
	default:
		return StatusIncomplete
	}
}

// Money represents a monetary amount in the smallest currency unit.
type Money struct {
	Amount   int64
	Currency string // ISO 4217 code
}

// Validate checks the amount sign and that the currency is a real ISO 4217 code.
func (m Money) Validate() error {
	if m.Amount < 0 {
		return fmt.Errorf("%w: negative amount %d", ErrInvalidMoney, m.Amount)
	}
	if _, err := currency.ParseISO(m.Currency); err != nil {
		return errors.Join(ErrInvalidMoney, fmt.Errorf("currency %q: %w", m.Currency, err))
	}
	return nil
}
