package subscription_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cataloghq/cataloghq/pkg/subscription"
)

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to subscription.Status }{
		{subscription.StatusIncomplete, subscription.StatusActive},
		{subscription.StatusIncomplete, subscription.StatusCanceled},
		{subscription.StatusActive, subscription.StatusPastDue},
		{subscription.StatusActive, subscription.StatusCanceled},
		{subscription.StatusActive, subscription.StatusUnpaid},
		{subscription.StatusPastDue, subscription.StatusActive},
		{subscription.StatusPastDue, subscription.StatusCanceled},
		{subscription.StatusPastDue, subscription.StatusUnpaid},
		{subscription.StatusTrialing, subscription.StatusActive},
		{subscription.StatusTrialing, subscription.StatusCanceled},
		{subscription.StatusTrialing, subscription.StatusPastDue},
		{subscription.StatusUnpaid, subscription.StatusActive},
		{subscription.StatusUnpaid, subscription.StatusCanceled},
	}
	for _, tt := range allowed {
		assert.True(t, tt.from.CanTransitionTo(tt.to), "%s -> %s should be allowed", tt.from, tt.to)
	}

	denied := []struct{ from, to subscription.Status }{
		{subscription.StatusCanceled, subscription.StatusActive},
		{subscription.StatusCanceled, subscription.StatusPastDue},
		{subscription.StatusActive, subscription.StatusTrialing},
		{subscription.StatusActive, subscription.StatusIncomplete},
		{subscription.StatusUnpaid, subscription.StatusPastDue},
	}
	for _, tt := range denied {
		assert.False(t, tt.from.CanTransitionTo(tt.to), "%s -> %s should be denied", tt.from, tt.to)
	}
}

func TestStatusSelfTransitionIsNoOp(t *testing.T) {
	t.Parallel()

	// Replayed provider events re-apply the same status; that must be legal
	// even for terminal states.
	for _, s := range []subscription.Status{
		subscription.StatusIncomplete,
		subscription.StatusActive,
		subscription.StatusTrialing,
		subscription.StatusPastDue,
		subscription.StatusUnpaid,
		subscription.StatusCanceled,
	} {
		assert.True(t, s.CanTransitionTo(s), "%s -> %s", s, s)
	}
}

func TestStatusCounting(t *testing.T) {
	t.Parallel()

	assert.True(t, subscription.StatusActive.Counting())
	assert.True(t, subscription.StatusTrialing.Counting())
	assert.False(t, subscription.StatusPastDue.Counting())
	assert.False(t, subscription.StatusUnpaid.Counting())
	assert.False(t, subscription.StatusCanceled.Counting())
	assert.False(t, subscription.StatusIncomplete.Counting())
}

func TestMapProviderStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		provider string
		want     subscription.Status
	}{
		{"active", subscription.StatusActive},
		{"trialing", subscription.StatusTrialing},
		{"past_due", subscription.StatusPastDue},
		{"canceled", subscription.StatusCanceled},
		{"unpaid", subscription.StatusUnpaid},
		{"incomplete", subscription.StatusIncomplete},
		{"incomplete_expired", subscription.StatusIncomplete},
		// Unknown vocabulary is mapped, never dropped.
		{"paused", subscription.StatusIncomplete},
		{"", subscription.StatusIncomplete},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, subscription.MapProviderStatus(tt.provider), "provider status %q", tt.provider)
	}
}

func TestMoneyValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, subscription.Money{Amount: 1900, Currency: "USD"}.Validate())
	require.NoError(t, subscription.Money{Amount: 0, Currency: "EUR"}.Validate())

	err := subscription.Money{Amount: -1, Currency: "USD"}.Validate()
	require.ErrorIs(t, err, subscription.ErrInvalidMoney)

	err = subscription.Money{Amount: 100, Currency: "DOGE"}.Validate()
	require.ErrorIs(t, err, subscription.ErrInvalidMoney)
}
