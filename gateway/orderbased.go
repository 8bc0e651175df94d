package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kanishkmehta29/storefront-checkout/shared/metrics"
	"github.com/kanishkmehta29/storefront-checkout/shared/models"
)

// OrderGateway talks to the order-shaped provider: the server pre-creates
// a remote order, the client completes payment against it, and completion
// arrives as (orderRef, paymentRef, signature). The signature is an
// HMAC-SHA256 over "orderRef|paymentRef" with the server-held key secret;
// this is the only path with client-supplied cryptographic proof, and a
// mismatch fails closed.
type OrderGateway struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
	metrics   *metrics.EngineMetrics
}

func NewOrderGateway(baseURL, keyID, keySecret string, timeout time.Duration, m *metrics.EngineMetrics) *OrderGateway {
	return &OrderGateway{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		client:    &http.Client{Timeout: timeout},
		metrics:   m,
	}
}

func (g *OrderGateway) Name() string { return models.GatewayOrder }

func (g *OrderGateway) CreatePaymentHandle(ctx context.Context, amount int64, currency string, metadata map[string]string) (PaymentHandle, error) {
	body := map[string]any{
		"amount":   amount,
		"currency": currency,
		"receipt":  uuid.NewString(),
		"notes":    metadata,
	}

	var remote struct {
		ID string `json:"id"`
	}
	if err := g.do(ctx, http.MethodPost, "/v1/orders", body, &remote, "create"); err != nil {
		return PaymentHandle{}, err
	}

	log.Printf("Order gateway: created remote order %s for amount %d", remote.ID, amount)
	return PaymentHandle{HandleID: remote.ID, ClientReference: remote.ID}, nil
}

// VerifyAndRetrieve recomputes the signature over the client-supplied
// references and compares it constant-time. No remote call is needed; the
// secret never left the server, so a valid signature proves completion.
func (g *OrderGateway) VerifyAndRetrieve(ctx context.Context, handleID string, proof ClientProof) (VerifiedPayment, error) {
	if proof.OrderRef == "" || proof.PaymentRef == "" || proof.Signature == "" {
		return VerifiedPayment{}, models.ErrSignatureInvalid
	}
	if proof.OrderRef != handleID {
		return VerifiedPayment{}, models.ErrSignatureInvalid
	}
	if !g.VerifySignature(proof.OrderRef, proof.PaymentRef, proof.Signature) {
		return VerifiedPayment{}, models.ErrSignatureInvalid
	}

	return VerifiedPayment{
		Succeeded:     true,
		TransactionID: proof.PaymentRef,
		RawStatus:     "captured",
	}, nil
}

// VerifySignature checks an HMAC-SHA256 signature over "orderRef|paymentRef".
func (g *OrderGateway) VerifySignature(orderRef, paymentRef, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.keySecret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (g *OrderGateway) Refund(ctx context.Context, transactionID string, amount int64) (RefundResult, error) {
	body := map[string]any{}
	if amount > 0 {
		body["amount"] = amount
	}

	var refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := g.do(ctx, http.MethodPost, "/v1/payments/"+transactionID+"/refund", body, &refund, "refund"); err != nil {
		return RefundResult{}, err
	}

	log.Printf("Order gateway: refund %s (%s) for payment %s", refund.ID, refund.Status, transactionID)
	return RefundResult{RefundID: refund.ID, Status: refund.Status}, nil
}

func (g *OrderGateway) do(ctx context.Context, method, path string, body any, out any, call string) error {
	start := time.Now()
	defer func() {
		g.metrics.ObserveGatewayMS(g.Name(), call, float64(time.Since(start).Milliseconds()))
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: order gateway %s: %v", models.ErrGatewayUnavailable, call, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: order gateway %s returned %d", models.ErrGatewayUnavailable, call, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("order gateway %s rejected request (status %d)", call, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: order gateway %s: decoding response: %v", models.ErrGatewayUnavailable, call, err)
		}
	}
	return nil
}
