package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanishkmehta29/storefront-checkout/shared/models"
)

func TestIntentGatewayCreatePaymentHandle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/payment_intents", r.URL.Path)
		require.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 33500, body["amount"])

		json.NewEncoder(w).Encode(map[string]string{
			"id":            "pi_1",
			"client_secret": "pi_1_secret",
			"status":        "requires_payment_method",
		})
	}))
	defer server.Close()

	g := NewIntentGateway(server.URL, "sk_test", time.Second, nil)
	handle, err := g.CreatePaymentHandle(context.Background(), 33500, "INR", nil)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", handle.HandleID)
	assert.Equal(t, "pi_1_secret", handle.ClientReference)
}

func TestIntentGatewayVerifyAndRetrieve(t *testing.T) {
	tests := []struct {
		name          string
		remoteStatus  string
		wantSucceeded bool
	}{
		{"succeeded intent", "succeeded", true},
		{"still processing", "processing", false},
		{"requires payment method", "requires_payment_method", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodGet, r.Method)
				require.Equal(t, "/v1/payment_intents/pi_1", r.URL.Path)
				json.NewEncoder(w).Encode(map[string]string{"id": "pi_1", "status": tt.remoteStatus})
			}))
			defer server.Close()

			g := NewIntentGateway(server.URL, "sk_test", time.Second, nil)
			vp, err := g.VerifyAndRetrieve(context.Background(), "pi_1", ClientProof{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSucceeded, vp.Succeeded)
			assert.Equal(t, "pi_1", vp.TransactionID)
			assert.Equal(t, tt.remoteStatus, vp.RawStatus)
		})
	}
}

func TestIntentGatewayUnavailable(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		g := NewIntentGateway(server.URL, "sk_test", time.Second, nil)
		_, err := g.VerifyAndRetrieve(context.Background(), "pi_1", ClientProof{})
		require.ErrorIs(t, err, models.ErrGatewayUnavailable)
	})

	t.Run("connection refused", func(t *testing.T) {
		g := NewIntentGateway("http://127.0.0.1:1", "sk_test", 200*time.Millisecond, nil)
		_, err := g.VerifyAndRetrieve(context.Background(), "pi_1", ClientProof{})
		require.ErrorIs(t, err, models.ErrGatewayUnavailable)
	})
}

func TestIntentGatewayRefund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/refunds", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pi_1", body["payment_intent"])
		_, partial := body["amount"]
		assert.False(t, partial, "full refund must omit amount")

		json.NewEncoder(w).Encode(map[string]string{"id": "re_1", "status": "succeeded"})
	}))
	defer server.Close()

	g := NewIntentGateway(server.URL, "sk_test", time.Second, nil)
	res, err := g.Refund(context.Background(), "pi_1", 0)
	require.NoError(t, err)
	assert.Equal(t, "re_1", res.RefundID)
}
