// Package gateway is a uniform adapter over the two payment provider
// shapes: an intent-based provider confirmed by re-fetching the remote
// object, and an order-based provider confirmed by a client-supplied
// HMAC signature.
package gateway

import (
	"context"
)

// PaymentHandle is the server-side reference to a remote payment object.
// ClientReference is handed to the client to complete payment: a client
// secret for the intent shape, the remote order id for the order shape.
type PaymentHandle struct {
	HandleID        string `json:"handle_id"`
	ClientReference string `json:"client_reference"`
}

// ClientProof carries the client-supplied completion evidence. Only the
// order-based shape uses it; the intent shape re-fetches by id instead.
type ClientProof struct {
	OrderRef   string `json:"order_ref,omitempty"`
	PaymentRef string `json:"payment_ref,omitempty"`
	Signature  string `json:"signature,omitempty"`
}

// VerifiedPayment is the result of checking a payment's completion with
// the provider.
type VerifiedPayment struct {
	Succeeded     bool
	TransactionID string
	RawStatus     string
}

type RefundResult struct {
	RefundID string
	Status   string
}

// Gateway is implemented once per provider shape. Refund amount 0 means a
// full refund.
type Gateway interface {
	Name() string
	CreatePaymentHandle(ctx context.Context, amount int64, currency string, metadata map[string]string) (PaymentHandle, error)
	VerifyAndRetrieve(ctx context.Context, handleID string, proof ClientProof) (VerifiedPayment, error)
	Refund(ctx context.Context, transactionID string, amount int64) (RefundResult, error)
}
