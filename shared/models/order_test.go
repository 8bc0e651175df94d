package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"pending to confirmed", OrderStatusPending, OrderStatusConfirmed, true},
		{"pending to cancelled", OrderStatusPending, OrderStatusCancelled, true},
		{"confirmed to processing", OrderStatusConfirmed, OrderStatusProcessing, true},
		{"confirmed to cancelled", OrderStatusConfirmed, OrderStatusCancelled, true},
		{"processing to shipped", OrderStatusProcessing, OrderStatusShipped, true},
		{"processing to returned", OrderStatusProcessing, OrderStatusReturned, true},
		{"processing to cancelled", OrderStatusProcessing, OrderStatusCancelled, true},
		{"shipped to delivered", OrderStatusShipped, OrderStatusDelivered, true},
		{"shipped to cancelled", OrderStatusShipped, OrderStatusCancelled, false},
		{"delivered to cancelled", OrderStatusDelivered, OrderStatusCancelled, false},
		{"cancelled to cancelled", OrderStatusCancelled, OrderStatusCancelled, false},
		{"pending to shipped skips confirmation", OrderStatusPending, OrderStatusShipped, false},
		{"delivered is terminal", OrderStatusDelivered, OrderStatusProcessing, false},
		{"returned is terminal", OrderStatusReturned, OrderStatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCanTransitionPayment(t *testing.T) {
	assert.True(t, CanTransitionPayment(PaymentStatusPending, PaymentStatusPaid))
	assert.True(t, CanTransitionPayment(PaymentStatusPending, PaymentStatusFailed))
	assert.True(t, CanTransitionPayment(PaymentStatusPaid, PaymentStatusRefunded))
	assert.False(t, CanTransitionPayment(PaymentStatusFailed, PaymentStatusPaid))
	assert.False(t, CanTransitionPayment(PaymentStatusRefunded, PaymentStatusPaid))
	assert.False(t, CanTransitionPayment(PaymentStatusPaid, PaymentStatusPending))
}

func TestTransitionNoteRequired(t *testing.T) {
	assert.True(t, TransitionNoteRequired(OrderStatusCancelled))
	assert.True(t, TransitionNoteRequired(OrderStatusReturned))
	assert.False(t, TransitionNoteRequired(OrderStatusConfirmed))
	assert.False(t, TransitionNoteRequired(OrderStatusShipped))
}

func TestOwnerValidate(t *testing.T) {
	require.NoError(t, NewUserOwner("user-1").Validate())
	require.NoError(t, NewGuestOwner(GuestContact{Name: "A", Email: "a@example.com"}).Validate())

	var verr *ValidationError

	err := Owner{}.Validate()
	require.Error(t, err)
	require.ErrorAs(t, err, &verr)

	both := Owner{UserID: "user-1", Guest: &GuestContact{Name: "A", Email: "a@example.com"}}
	err = both.Validate()
	require.Error(t, err)
	require.ErrorAs(t, err, &verr)

	err = NewGuestOwner(GuestContact{Name: "A"}).Validate()
	require.Error(t, err)
}

func TestOwnerKey(t *testing.T) {
	assert.Equal(t, "user-1", NewUserOwner("user-1").Key())
	assert.Equal(t, "a@example.com", NewGuestOwner(GuestContact{Name: "A", Email: "a@example.com"}).Key())
}

func TestGatewayForMethod(t *testing.T) {
	assert.Equal(t, "", GatewayForMethod(PaymentMethodCOD))
	assert.Equal(t, GatewayIntent, GatewayForMethod(PaymentMethodCard))
	assert.Equal(t, GatewayOrder, GatewayForMethod(PaymentMethodUPI))
	assert.Equal(t, GatewayOrder, GatewayForMethod(PaymentMethodNetbanking))
	assert.Equal(t, GatewayOrder, GatewayForMethod(PaymentMethodWallet))
	assert.Equal(t, GatewayOrder, GatewayForMethod(PaymentMethodGatewayB))
}
