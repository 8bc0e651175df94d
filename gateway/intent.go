package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/kanishkmehta29/storefront-checkout/shared/metrics"
	"github.com/kanishkmehta29/storefront-checkout/shared/models"
)

// IntentGateway talks to the intent-shaped provider: the server creates a
// payment intent, the client completes it with the client secret, and the
// server verifies by re-fetching the intent and checking its status field.
type IntentGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	metrics *metrics.EngineMetrics
}

func NewIntentGateway(baseURL, apiKey string, timeout time.Duration, m *metrics.EngineMetrics) *IntentGateway {
	return &IntentGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		metrics: m,
	}
}

func (g *IntentGateway) Name() string { return models.GatewayIntent }

type intentObject struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

func (g *IntentGateway) CreatePaymentHandle(ctx context.Context, amount int64, currency string, metadata map[string]string) (PaymentHandle, error) {
	body := map[string]any{
		"amount":   amount,
		"currency": currency,
		"metadata": metadata,
	}

	var intent intentObject
	if err := g.do(ctx, http.MethodPost, "/v1/payment_intents", body, &intent, "create"); err != nil {
		return PaymentHandle{}, err
	}

	log.Printf("Intent gateway: created payment intent %s for amount %d", intent.ID, amount)
	return PaymentHandle{HandleID: intent.ID, ClientReference: intent.ClientSecret}, nil
}

// VerifyAndRetrieve re-fetches the intent by id and trusts only the remote
// status field. The client proof is ignored on this path.
func (g *IntentGateway) VerifyAndRetrieve(ctx context.Context, handleID string, _ ClientProof) (VerifiedPayment, error) {
	var intent intentObject
	if err := g.do(ctx, http.MethodGet, "/v1/payment_intents/"+handleID, nil, &intent, "verify"); err != nil {
		return VerifiedPayment{}, err
	}

	return VerifiedPayment{
		Succeeded:     intent.Status == "succeeded",
		TransactionID: intent.ID,
		RawStatus:     intent.Status,
	}, nil
}

func (g *IntentGateway) Refund(ctx context.Context, transactionID string, amount int64) (RefundResult, error) {
	body := map[string]any{"payment_intent": transactionID}
	if amount > 0 {
		body["amount"] = amount
	}

	var refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := g.do(ctx, http.MethodPost, "/v1/refunds", body, &refund, "refund"); err != nil {
		return RefundResult{}, err
	}

	log.Printf("Intent gateway: refund %s (%s) for transaction %s", refund.ID, refund.Status, transactionID)
	return RefundResult{RefundID: refund.ID, Status: refund.Status}, nil
}

func (g *IntentGateway) do(ctx context.Context, method, path string, body any, out any, call string) error {
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
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: intent gateway %s: %v", models.ErrGatewayUnavailable, call, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: intent gateway %s returned %d", models.ErrGatewayUnavailable, call, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		// Don't leak provider internals; the status code is enough.
		return fmt.Errorf("intent gateway %s rejected request (status %d)", call, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: intent gateway %s: decoding response: %v", models.ErrGatewayUnavailable, call, err)
		}
	}
	return nil
}
