package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrSignatureInvalid   = errors.New("signature verification failed")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrPaymentFailed      = errors.New("payment failed")

	// ErrStaleState is returned by conditional store updates when the order
	// was no longer in the expected prior state. Callers re-read and decide.
	ErrStaleState = errors.New("order state changed concurrently")
)

// ValidationError represents a bad input shape that should not be retried
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// InsufficientStockError names the offending product and what was available.
type InsufficientStockError struct {
	ProductID string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// ProductInactiveError is returned when reserving stock for a delisted product.
type ProductInactiveError struct {
	ProductID string
}

func (e *ProductInactiveError) Error() string {
	return fmt.Sprintf("product %s is not active", e.ProductID)
}

// AmountMismatchError reports a disagreement between the client-submitted
// total and the server-computed total.
type AmountMismatchError struct {
	ClientTotal int64
	ServerTotal int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch: client submitted %d, server computed %d",
		e.ClientTotal, e.ServerTotal)
}

// InvalidTransitionError reports an illegal status change.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}
