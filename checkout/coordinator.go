// Package checkout orchestrates pricing, inventory, order persistence and
// the payment gateways to turn a validated cart into an order, and owns the
// synchronous confirmation path.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kanishkmehta29/storefront-checkout/gateway"
	"github.com/kanishkmehta29/storefront-checkout/inventory"
	"github.com/kanishkmehta29/storefront-checkout/pricing"
	"github.com/kanishkmehta29/storefront-checkout/shared/kafka"
	"github.com/kanishkmehta29/storefront-checkout/shared/metrics"
	"github.com/kanishkmehta29/storefront-checkout/shared/models"
	"github.com/kanishkmehta29/storefront-checkout/store"
)

// transitionRetries bounds the optimistic retry loop on status updates.
const transitionRetries = 3

type Coordinator struct {
	orders    store.OrderStore
	products  store.ProductStore
	carts     store.CartStore
	ledger    *inventory.Ledger
	calc      *pricing.Calculator
	gateways  map[string]gateway.Gateway
	publisher kafka.Publisher
	metrics   *metrics.EngineMetrics
	currency  string
}

// Deps are injected explicitly; the coordinator holds no globals.
type Deps struct {
	Orders    store.OrderStore
	Products  store.ProductStore
	Carts     store.CartStore
	Ledger    *inventory.Ledger
	Calc      *pricing.Calculator
	Gateways  map[string]gateway.Gateway
	Publisher kafka.Publisher
	Metrics   *metrics.EngineMetrics
	Currency  string
}

func NewCoordinator(deps Deps) *Coordinator {
	return &Coordinator{
		orders:    deps.Orders,
		products:  deps.Products,
		carts:     deps.Carts,
		ledger:    deps.Ledger,
		calc:      deps.Calc,
		gateways:  deps.Gateways,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		currency:  deps.Currency,
	}
}

// CartItem is a requested line item; the server ignores any client-side
// price and snapshots the product's recorded one.
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Variant   string `json:"variant,omitempty"`
}

type CheckoutInput struct {
	Owner           models.Owner
	Items           []CartItem
	ShippingAddress models.Address
	PaymentMethod   models.PaymentMethod
	// ExpectedTotal is the total the client saw in its price preview, if it
	// supplied one. Nil skips verification.
	ExpectedTotal *int64
}

type CheckoutResult struct {
	Order *models.Order
	// PaymentHandle is nil for cash on delivery; otherwise the client
	// completes payment against it and then calls ConfirmPayment.
	PaymentHandle *gateway.PaymentHandle
}

// Checkout validates the cart, reserves stock and creates the order. Cash
// on delivery confirms immediately; gateway methods leave the order pending
// until ConfirmPayment (or the webhook reconciler) settles it.
func (c *Coordinator) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if err := c.validateInput(input); err != nil {
		c.metrics.CountOperation("checkout", "validation_error")
		return nil, err
	}

	var gw gateway.Gateway
	if input.PaymentMethod != models.PaymentMethodCOD {
		var ok bool
		gw, ok = c.gateways[models.GatewayForMethod(input.PaymentMethod)]
		if !ok {
			return nil, fmt.Errorf("no gateway configured for payment method %s", input.PaymentMethod)
		}
	}

	items, err := c.snapshotItems(ctx, input.Items)
	if err != nil {
		c.metrics.CountOperation("checkout", "invalid_item")
		return nil, err
	}

	var priced models.Pricing
	if input.ExpectedTotal != nil {
		priced, err = c.calc.ComputeAndVerify(items, *input.ExpectedTotal)
		if err != nil {
			c.metrics.CountOperation("checkout", "amount_mismatch")
			return nil, err
		}
	} else {
		priced = c.calc.Compute(items)
	}

	if err := c.ledger.ReserveItems(ctx, items); err != nil {
		c.metrics.CountOperation("checkout", "insufficient_stock")
		return nil, err
	}

	now := time.Now()
	order := &models.Order{
		Owner:           input.Owner,
		Items:           items,
		ShippingAddress: input.ShippingAddress,
		Pricing:         priced,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		OrderStatus:     models.OrderStatusPending,
		Gateway:         models.GatewayForMethod(input.PaymentMethod),
		StockReserved:   true,
		StatusHistory: []models.StatusEntry{
			{Status: string(models.OrderStatusPending), Note: "order created", Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if input.PaymentMethod == models.PaymentMethodCOD {
		order.OrderStatus = models.OrderStatusConfirmed
		order.StatusHistory = append(order.StatusHistory, models.StatusEntry{
			Status: string(models.OrderStatusConfirmed), Note: "cash on delivery", Timestamp: now,
		})
	}

	if err := c.orders.InsertOrder(ctx, order); err != nil {
		// The reservation has no order to anchor it; compensate right away.
		c.ledger.ReleaseItems(ctx, items)
		c.metrics.CountOperation("checkout", "error")
		return nil, err
	}
	orderID := order.ID.Hex()
	log.Printf("Checkout: created order %s (%s, %s)", orderID, order.PaymentMethod, order.OrderStatus)

	if input.PaymentMethod == models.PaymentMethodCOD {
		if err := c.carts.Clear(ctx, input.Owner.Key()); err != nil {
			log.Printf("Failed to clear cart for %s: %v", input.Owner.Key(), err)
		}
		c.publisher.Publish(ctx, kafka.TopicOrderConfirmed, orderID, order)
		c.metrics.CountOperation("checkout", "ok")
		return &CheckoutResult{Order: order}, nil
	}

	handle, err := gw.CreatePaymentHandle(ctx, priced.TotalAmount, c.currency, map[string]string{"order_id": orderID})
	if err != nil {
		// No remote handle exists, so nothing can settle this attempt later:
		// fail it and give the stock back.
		if _, _, failErr := c.ApplyPaymentFailure(ctx, orderID, "gateway unreachable while creating payment"); failErr != nil {
			log.Printf("Failed to mark order %s failed after gateway error: %v", orderID, failErr)
		}
		c.metrics.CountOperation("checkout", "gateway_error")
		return nil, err
	}

	if err := c.attachHandle(ctx, orderID, handle.HandleID); err != nil {
		c.metrics.CountOperation("checkout", "error")
		return nil, err
	}
	order.PaymentHandleID = handle.HandleID

	c.metrics.CountOperation("checkout", "ok")
	return &CheckoutResult{Order: order, PaymentHandle: &handle}, nil
}

// ConfirmPayment settles a gateway payment after the client completed it.
// Calling it again for an already-paid order is a no-op returning the same
// final state.
func (c *Coordinator) ConfirmPayment(ctx context.Context, handleID string, proof gateway.ClientProof) (*models.Order, error) {
	order, err := c.orders.FindByPaymentHandle(ctx, handleID)
	if err != nil {
		return nil, err
	}
	orderID := order.ID.Hex()

	switch order.PaymentStatus {
	case models.PaymentStatusPaid:
		c.metrics.CountOperation("confirm", "already_paid")
		return order, nil
	case models.PaymentStatusPending:
		// fall through to verification
	default:
		c.metrics.CountOperation("confirm", "invalid_state")
		return nil, &models.InvalidTransitionError{
			From: "payment:" + string(order.PaymentStatus),
			To:   "payment:" + string(models.PaymentStatusPaid),
		}
	}

	gw, ok := c.gateways[order.Gateway]
	if !ok {
		return nil, fmt.Errorf("no gateway configured for order %s", orderID)
	}

	verified, err := gw.VerifyAndRetrieve(ctx, handleID, proof)
	if err != nil {
		if errors.Is(err, models.ErrSignatureInvalid) {
			// Fail closed with no state change.
			c.metrics.CountOperation("confirm", "signature_invalid")
			return nil, err
		}
		if errors.Is(err, models.ErrGatewayUnavailable) {
			// The payment may have succeeded upstream; leave the order
			// pending for the webhook reconciler instead of guessing.
			log.Printf("Gateway unavailable confirming order %s; leaving pending", orderID)
			c.metrics.CountOperation("confirm", "gateway_unavailable")
			return nil, err
		}
		return nil, err
	}

	if !verified.Succeeded {
		updated, _, failErr := c.ApplyPaymentFailure(ctx, orderID, "gateway reported status "+verified.RawStatus)
		if failErr != nil {
			return nil, failErr
		}
		c.metrics.CountOperation("confirm", "payment_failed")
		return updated, models.ErrPaymentFailed
	}

	updated, _, err := c.ApplyPaymentSuccess(ctx, orderID, verified.TransactionID, gw.Name())
	if err != nil {
		return nil, err
	}
	c.metrics.CountOperation("confirm", "ok")
	return updated, nil
}

// ApplyPaymentSuccess marks the order paid, confirms it, clears the cart
// and publishes the event. It is idempotent on the transaction id and is
// shared with the webhook reconciler, so both entry points converge on the
// same state machine.
func (c *Coordinator) ApplyPaymentSuccess(ctx context.Context, orderID, transactionID, gatewayName string) (*models.Order, bool, error) {
	details := models.PaymentDetails{
		TransactionID: transactionID,
		Gateway:       gatewayName,
		PaidAt:        time.Now(),
	}

	updated, applied, err := c.orders.MarkPaid(ctx, orderID, details)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		if updated.PaymentDetails == nil || updated.PaymentDetails.TransactionID != transactionID {
			log.Printf("Order %s already settled with a different transaction (incoming %s)", orderID, transactionID)
		}
		return updated, false, nil
	}

	log.Printf("Order %s paid (transaction %s via %s)", orderID, transactionID, gatewayName)

	confirmed, err := c.orders.TransitionOrder(ctx, orderID, models.OrderStatusPending, models.OrderStatusConfirmed, "payment received")
	if err == nil {
		updated = confirmed
	} else if !errors.Is(err, models.ErrStaleState) {
		return nil, false, err
	}

	if err := c.carts.Clear(ctx, updated.Owner.Key()); err != nil {
		log.Printf("Failed to clear cart for %s: %v", updated.Owner.Key(), err)
	}
	c.publisher.Publish(ctx, kafka.TopicPaymentProcessed, orderID, updated)
	return updated, true, nil
}

// ApplyPaymentFailure marks the payment failed and releases reserved stock
// exactly once. A no-op when the order already left pending (in particular
// when it is already paid: success wins over a late failure).
func (c *Coordinator) ApplyPaymentFailure(ctx context.Context, orderID, reason string) (*models.Order, bool, error) {
	updated, applied, err := c.orders.MarkPaymentFailed(ctx, orderID, reason)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return updated, false, nil
	}

	log.Printf("Order %s payment failed: %s", orderID, reason)
	c.releaseStock(ctx, updated)

	event := struct {
		Order  *models.Order `json:"order"`
		Reason string        `json:"reason"`
	}{Order: updated, Reason: reason}
	c.publisher.Publish(ctx, kafka.TopicPaymentFailed, orderID, event)
	return updated, true, nil
}

// CancelOrder cancels an order that has not shipped. The reason is
// mandatory and lands in both the cancellation field and the history.
func (c *Coordinator) CancelOrder(ctx context.Context, orderID, reason string) (*models.Order, error) {
	if reason == "" {
		return nil, &models.ValidationError{Msg: "cancellation reason is required"}
	}

	for attempt := 0; attempt < transitionRetries; attempt++ {
		order, err := c.orders.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !order.OrderStatus.Cancellable() {
			c.metrics.CountOperation("cancel", "invalid_transition")
			return nil, &models.InvalidTransitionError{
				From: string(order.OrderStatus),
				To:   string(models.OrderStatusCancelled),
			}
		}

		updated, err := c.orders.TransitionOrder(ctx, orderID, order.OrderStatus, models.OrderStatusCancelled, reason)
		if errors.Is(err, models.ErrStaleState) {
			continue // someone moved the order first; re-read and re-check
		}
		if err != nil {
			return nil, err
		}

		log.Printf("Order %s cancelled: %s", orderID, reason)
		c.releaseStock(ctx, updated)
		c.publisher.Publish(ctx, kafka.TopicOrderCancelled, orderID, updated)
		c.metrics.CountOperation("cancel", "ok")
		return updated, nil
	}
	return nil, models.ErrStaleState
}

// UpdateStatus drives the fulfilment transitions (confirmed, processing,
// shipped, delivered, returned). Cancellation goes through CancelOrder so
// stock release stays in one place; returns refund the payment when paid.
func (c *Coordinator) UpdateStatus(ctx context.Context, orderID string, newStatus models.OrderStatus, note string) (*models.Order, error) {
	if newStatus == models.OrderStatusCancelled {
		return c.CancelOrder(ctx, orderID, note)
	}
	if models.TransitionNoteRequired(newStatus) && note == "" {
		return nil, &models.ValidationError{Msg: "a note is required for status " + string(newStatus)}
	}

	for attempt := 0; attempt < transitionRetries; attempt++ {
		order, err := c.orders.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !models.CanTransition(order.OrderStatus, newStatus) {
			return nil, &models.InvalidTransitionError{From: string(order.OrderStatus), To: string(newStatus)}
		}

		updated, err := c.orders.TransitionOrder(ctx, orderID, order.OrderStatus, newStatus, note)
		if errors.Is(err, models.ErrStaleState) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if newStatus == models.OrderStatusReturned && updated.PaymentStatus == models.PaymentStatusPaid {
			refunded, err := c.Refund(ctx, orderID, 0)
			if err != nil {
				log.Printf("Refund for returned order %s failed: %v", orderID, err)
			} else {
				updated = refunded
			}
		}

		topic := kafka.TopicOrderStatusUpdated
		if newStatus == models.OrderStatusConfirmed {
			topic = kafka.TopicOrderConfirmed
		}
		c.publisher.Publish(ctx, topic, orderID, updated)
		return updated, nil
	}
	return nil, models.ErrStaleState
}

// Refund issues a gateway refund for a paid order. Amount 0 refunds the
// full total. Repeated calls are idempotent: an already-refunded order is
// returned as-is.
func (c *Coordinator) Refund(ctx context.Context, orderID string, amount int64) (*models.Order, error) {
	order, err := c.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.PaymentStatus {
	case models.PaymentStatusRefunded:
		c.metrics.CountOperation("refund", "already_refunded")
		return order, nil
	case models.PaymentStatusPaid:
		// fall through
	default:
		c.metrics.CountOperation("refund", "invalid_state")
		return nil, &models.InvalidTransitionError{
			From: "payment:" + string(order.PaymentStatus),
			To:   "payment:" + string(models.PaymentStatusRefunded),
		}
	}

	if amount < 0 || amount > order.Pricing.TotalAmount {
		return nil, &models.ValidationError{Msg: "refund amount out of range"}
	}

	gw, ok := c.gateways[order.PaymentDetails.Gateway]
	if !ok {
		return nil, fmt.Errorf("no gateway configured for order %s", orderID)
	}

	result, err := gw.Refund(ctx, order.PaymentDetails.TransactionID, amount)
	if err != nil {
		c.metrics.CountOperation("refund", "gateway_error")
		return nil, err
	}
	log.Printf("Order %s: refund %s issued for transaction %s (amount %d of %d)",
		orderID, result.RefundID, order.PaymentDetails.TransactionID, amount, order.Pricing.TotalAmount)

	note := "refund " + result.RefundID
	updated, err := c.orders.MarkRefunded(ctx, orderID, result.RefundID, note)
	if errors.Is(err, models.ErrStaleState) {
		// A concurrent refund won; the gateway call was idempotent on the
		// transaction id, so just report the settled order.
		return c.orders.GetOrder(ctx, orderID)
	}
	if err != nil {
		return nil, err
	}

	c.publisher.Publish(ctx, kafka.TopicOrderRefunded, orderID, updated)
	c.metrics.CountOperation("refund", "ok")
	return updated, nil
}

func (c *Coordinator) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return c.orders.GetOrder(ctx, orderID)
}

func (c *Coordinator) ListOrders(ctx context.Context, ownerKey string, page, pageSize int) ([]models.Order, error) {
	return c.orders.ListOrders(ctx, ownerKey, page, pageSize)
}

func (c *Coordinator) validateInput(input CheckoutInput) error {
	if err := input.Owner.Validate(); err != nil {
		return err
	}
	if len(input.Items) == 0 {
		return &models.ValidationError{Msg: "order must have at least one item"}
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return &models.ValidationError{Msg: "item quantity must be positive"}
		}
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return err
	}
	switch input.PaymentMethod {
	case models.PaymentMethodCOD, models.PaymentMethodCard, models.PaymentMethodUPI,
		models.PaymentMethodNetbanking, models.PaymentMethodWallet, models.PaymentMethodGatewayB:
		return nil
	default:
		return &models.ValidationError{Msg: "unknown payment method"}
	}
}

// snapshotItems loads every product and freezes its name, image and price
// onto the order line. Client-supplied prices never enter here.
func (c *Coordinator) snapshotItems(ctx context.Context, items []CartItem) ([]models.OrderItem, error) {
	out := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		product, err := c.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if !product.IsActive {
			return nil, &models.ProductInactiveError{ProductID: item.ProductID}
		}
		out = append(out, models.OrderItem{
			ProductID:     item.ProductID,
			NameSnapshot:  product.Name,
			ImageSnapshot: product.Image,
			UnitPrice:     product.UnitPrice,
			Quantity:      item.Quantity,
			Variant:       item.Variant,
		})
	}
	return out, nil
}

func (c *Coordinator) releaseStock(ctx context.Context, order *models.Order) {
	claimed, err := c.orders.ClaimStockRelease(ctx, order.ID.Hex())
	if err != nil {
		log.Printf("Failed to claim stock release for order %s: %v", order.ID.Hex(), err)
		return
	}
	if !claimed {
		return // never reserved, or another path already released
	}
	c.ledger.ReleaseItems(ctx, order.Items)
}

func (c *Coordinator) attachHandle(ctx context.Context, orderID, handleID string) error {
	return c.orders.SetPaymentHandle(ctx, orderID, handleID)
}
