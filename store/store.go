package store

import (
	"context"

	"github.com/kanishkmehta29/storefront-checkout/shared/models"
)

// ProductStore handles persistence for Products. Stock mutations are
// per-product atomic: DecrementStock only succeeds if the product is active
// and has at least qty units, as a single conditional update.
type ProductStore interface {
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
	DecrementStock(ctx context.Context, productID string, qty int64) error
	IncrementStock(ctx context.Context, productID string, qty int64) error
}

// OrderStore handles persistence for Orders. Every status mutation is
// conditional on the previously observed state; a losing writer gets
// models.ErrStaleState (or applied=false) instead of overwriting newer state.
type OrderStore interface {
	InsertOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	FindByPaymentHandle(ctx context.Context, handleID string) (*models.Order, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error)
	ListOrders(ctx context.Context, ownerKey string, page, pageSize int) ([]models.Order, error)

	// TransitionOrder moves order_status from the expected prior status to
	// the new one and appends a history entry. Returns models.ErrStaleState
	// when the order was not in the expected status anymore.
	TransitionOrder(ctx context.Context, orderID string, from, to models.OrderStatus, note string) (*models.Order, error)

	// SetPaymentHandle records the gateway handle created for this order so
	// the confirmation path and webhooks can find it again.
	SetPaymentHandle(ctx context.Context, orderID string, handleID string) error

	// MarkPaid moves payment_status pending -> paid and stamps payment
	// details. applied is false when the order was already paid; that is a
	// no-op, not an error, when the stored transaction id matches.
	MarkPaid(ctx context.Context, orderID string, details models.PaymentDetails) (order *models.Order, applied bool, err error)

	// MarkPaymentFailed moves payment_status pending -> failed.
	MarkPaymentFailed(ctx context.Context, orderID string, note string) (order *models.Order, applied bool, err error)

	// MarkRefunded moves payment_status paid -> refunded.
	MarkRefunded(ctx context.Context, orderID string, refundID string, note string) (*models.Order, error)

	// ClaimStockRelease flips stock_released false -> true exactly once for
	// an order whose stock was reserved. The claimer owns the release.
	ClaimStockRelease(ctx context.Context, orderID string) (bool, error)

	// AppendHistory records an informational entry (e.g. a dispute) without
	// touching either status field.
	AppendHistory(ctx context.Context, orderID string, entry models.StatusEntry) error
}

// CartStore is the cart collaborator boundary: the engine only ever clears
// a cart after a confirmed purchase.
type CartStore interface {
	Clear(ctx context.Context, ownerKey string) error
}
