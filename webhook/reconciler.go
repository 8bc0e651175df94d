// Package webhook reconciles asynchronous gateway notifications with
// locally recorded order state. Events may arrive more than once, out of
// order, and concurrently with the synchronous confirmation path; the
// transaction id is the sole idempotency key.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/kanishkmehta29/storefront-checkout/checkout"
	"github.com/kanishkmehta29/storefront-checkout/shared/metrics"
	"github.com/kanishkmehta29/storefront-checkout/shared/models"
	"github.com/kanishkmehta29/storefront-checkout/store"
)

type Reconciler struct {
	orders  store.OrderStore
	coord   *checkout.Coordinator
	secrets map[string]string // gateway name -> webhook secret
	metrics *metrics.EngineMetrics
}

func NewReconciler(orders store.OrderStore, coord *checkout.Coordinator, secrets map[string]string, m *metrics.EngineMetrics) *Reconciler {
	return &Reconciler{orders: orders, coord: coord, secrets: secrets, metrics: m}
}

// envelope covers both provider shapes; exactly one of Type/Event is set.
type envelope struct {
	// intent shape
	Type string `json:"type,omitempty"`
	Data struct {
		Object struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"object"`
	} `json:"data,omitempty"`

	// order shape
	Event   string `json:"event,omitempty"`
	Payload struct {
		Payment struct {
			ID      string `json:"id"`
			OrderID string `json:"order_id"`
		} `json:"payment"`
	} `json:"payload,omitempty"`
}

type eventKind int

const (
	kindUnknown eventKind = iota
	kindSuccess
	kindFailure
	kindDispute
)

// Handle verifies and applies one raw gateway event. A nil return is an
// acknowledgement; an error tells the caller to reject the delivery.
func (r *Reconciler) Handle(ctx context.Context, rawEvent []byte, signatureHeader string) error {
	var env envelope
	if err := json.Unmarshal(rawEvent, &env); err != nil {
		r.metrics.CountWebhookEvent("malformed", "rejected")
		return &models.ValidationError{Msg: "malformed webhook payload"}
	}

	gatewayName, eventType := dispatch(env)
	if gatewayName == "" {
		r.metrics.CountWebhookEvent("unrecognized", "rejected")
		return &models.ValidationError{Msg: "unrecognized webhook payload shape"}
	}

	secret, ok := r.secrets[gatewayName]
	if !ok || !verifySignature(secret, rawEvent, signatureHeader) {
		r.metrics.CountWebhookEvent(eventType, "rejected_signature")
		return models.ErrSignatureInvalid
	}

	transactionID, handleRef := references(gatewayName, env)

	switch classify(eventType) {
	case kindSuccess:
		return r.applySuccess(ctx, gatewayName, eventType, transactionID, handleRef)
	case kindFailure:
		return r.applyFailure(ctx, eventType, transactionID, handleRef)
	case kindDispute:
		return r.recordDispute(ctx, eventType, transactionID)
	default:
		log.Printf("Webhook: ignoring event type %s", eventType)
		r.metrics.CountWebhookEvent(eventType, "skipped")
		return nil
	}
}

func (r *Reconciler) applySuccess(ctx context.Context, gatewayName, eventType, transactionID, handleRef string) error {
	order, err := r.findOrder(ctx, transactionID, handleRef)
	if errors.Is(err, models.ErrNotFound) {
		// The event may have raced ahead of the synchronous confirmation;
		// acknowledge without fabricating an order.
		log.Printf("Webhook: no order for transaction %s, acknowledging", transactionID)
		r.metrics.CountWebhookEvent(eventType, "unknown_order")
		return nil
	}
	if err != nil {
		return err
	}

	orderID := order.ID.Hex()
	if order.PaymentStatus == models.PaymentStatusPaid {
		r.metrics.CountWebhookEvent(eventType, "duplicate")
		return nil
	}

	_, applied, err := r.coord.ApplyPaymentSuccess(ctx, orderID, transactionID, gatewayName)
	if err != nil {
		return err
	}
	if applied {
		log.Printf("Webhook: settled order %s from event %s", orderID, eventType)
		r.metrics.CountWebhookEvent(eventType, "applied")
	} else {
		r.metrics.CountWebhookEvent(eventType, "duplicate")
	}
	return nil
}

func (r *Reconciler) applyFailure(ctx context.Context, eventType, transactionID, handleRef string) error {
	order, err := r.findOrder(ctx, transactionID, handleRef)
	if errors.Is(err, models.ErrNotFound) {
		r.metrics.CountWebhookEvent(eventType, "unknown_order")
		return nil
	}
	if err != nil {
		return err
	}

	// Success always wins over a late failure event for the same transaction.
	if order.PaymentStatus == models.PaymentStatusPaid {
		log.Printf("Webhook: ignoring failure event %s for already-paid order %s", eventType, order.ID.Hex())
		r.metrics.CountWebhookEvent(eventType, "ignored_paid")
		return nil
	}

	_, applied, err := r.coord.ApplyPaymentFailure(ctx, order.ID.Hex(), "gateway event "+eventType)
	if err != nil {
		return err
	}
	if applied {
		r.metrics.CountWebhookEvent(eventType, "applied")
	} else {
		r.metrics.CountWebhookEvent(eventType, "duplicate")
	}
	return nil
}

// recordDispute surfaces a dispute for manual handling without touching
// the payment status.
func (r *Reconciler) recordDispute(ctx context.Context, eventType, transactionID string) error {
	order, err := r.orders.FindByTransactionID(ctx, transactionID)
	if errors.Is(err, models.ErrNotFound) {
		r.metrics.CountWebhookEvent(eventType, "unknown_order")
		return nil
	}
	if err != nil {
		return err
	}

	entry := models.StatusEntry{
		Status:    "disputed",
		Note:      eventType + " for transaction " + transactionID,
		Timestamp: time.Now(),
	}
	if err := r.orders.AppendHistory(ctx, order.ID.Hex(), entry); err != nil {
		return err
	}
	log.Printf("Webhook: recorded dispute on order %s (%s)", order.ID.Hex(), eventType)
	r.metrics.CountWebhookEvent(eventType, "recorded")
	return nil
}

// findOrder looks up by transaction id first and falls back to the payment
// handle the event references, since an order is only indexed by
// transaction id after it has been settled.
func (r *Reconciler) findOrder(ctx context.Context, transactionID, handleRef string) (*models.Order, error) {
	order, err := r.orders.FindByTransactionID(ctx, transactionID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	return r.orders.FindByPaymentHandle(ctx, handleRef)
}

func dispatch(env envelope) (gatewayName, eventType string) {
	switch {
	case env.Type != "":
		return models.GatewayIntent, env.Type
	case env.Event != "":
		return models.GatewayOrder, env.Event
	default:
		return "", ""
	}
}

func references(gatewayName string, env envelope) (transactionID, handleRef string) {
	if gatewayName == models.GatewayIntent {
		// The intent id is both the transaction id and the payment handle.
		return env.Data.Object.ID, env.Data.Object.ID
	}
	return env.Payload.Payment.ID, env.Payload.Payment.OrderID
}

func classify(eventType string) eventKind {
	switch eventType {
	case "payment_intent.succeeded", "charge.succeeded", "payment.captured", "order.paid":
		return kindSuccess
	case "payment_intent.payment_failed", "charge.failed", "payment.failed":
		return kindFailure
	case "charge.dispute.created", "payment.dispute.created":
		return kindDispute
	default:
		return kindUnknown
	}
}

func verifySignature(secret string, rawEvent []byte, signatureHeader string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawEvent)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

// Sign computes the signature a gateway would attach to rawEvent. Exported
// for tests and local tooling.
func Sign(secret string, rawEvent []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawEvent)
	return hex.EncodeToString(mac.Sum(nil))
}
