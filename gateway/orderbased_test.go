package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanishkmehta29/storefront-checkout/shared/models"
)

func sign(secret, orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestOrderGatewayVerifyAndRetrieve(t *testing.T) {
	const secret = "test_key_secret"
	g := NewOrderGateway("http://unused", "key_id", secret, time.Second, nil)
	ctx := context.Background()

	t.Run("valid signature", func(t *testing.T) {
		proof := ClientProof{
			OrderRef:   "order_123",
			PaymentRef: "pay_456",
			Signature:  sign(secret, "order_123", "pay_456"),
		}
		vp, err := g.VerifyAndRetrieve(ctx, "order_123", proof)
		require.NoError(t, err)
		assert.True(t, vp.Succeeded)
		assert.Equal(t, "pay_456", vp.TransactionID)
		assert.Equal(t, "captured", vp.RawStatus)
	})

	t.Run("tampered signature fails closed", func(t *testing.T) {
		proof := ClientProof{
			OrderRef:   "order_123",
			PaymentRef: "pay_456",
			Signature:  sign("wrong_secret", "order_123", "pay_456"),
		}
		_, err := g.VerifyAndRetrieve(ctx, "order_123", proof)
		require.ErrorIs(t, err, models.ErrSignatureInvalid)
	})

	t.Run("payment ref swapped after signing", func(t *testing.T) {
		proof := ClientProof{
			OrderRef:   "order_123",
			PaymentRef: "pay_other",
			Signature:  sign(secret, "order_123", "pay_456"),
		}
		_, err := g.VerifyAndRetrieve(ctx, "order_123", proof)
		require.ErrorIs(t, err, models.ErrSignatureInvalid)
	})

	t.Run("order ref does not match handle", func(t *testing.T) {
		proof := ClientProof{
			OrderRef:   "order_other",
			PaymentRef: "pay_456",
			Signature:  sign(secret, "order_other", "pay_456"),
		}
		_, err := g.VerifyAndRetrieve(ctx, "order_123", proof)
		require.ErrorIs(t, err, models.ErrSignatureInvalid)
	})

	t.Run("missing proof fields", func(t *testing.T) {
		_, err := g.VerifyAndRetrieve(ctx, "order_123", ClientProof{})
		require.ErrorIs(t, err, models.ErrSignatureInvalid)
	})
}

func TestOrderGatewayCreatePaymentHandle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "key_id", user)
		require.Equal(t, "key_secret", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 33500, body["amount"])
		assert.NotEmpty(t, body["receipt"])

		json.NewEncoder(w).Encode(map[string]string{"id": "order_remote_1"})
	}))
	defer server.Close()

	g := NewOrderGateway(server.URL, "key_id", "key_secret", time.Second, nil)
	handle, err := g.CreatePaymentHandle(context.Background(), 33500, "INR", map[string]string{"order_id": "local-1"})
	require.NoError(t, err)
	assert.Equal(t, "order_remote_1", handle.HandleID)
	assert.Equal(t, "order_remote_1", handle.ClientReference)
}

func TestOrderGatewayRefund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payments/pay_456/refund", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"id": "rfnd_1", "status": "processed"})
	}))
	defer server.Close()

	g := NewOrderGateway(server.URL, "key_id", "key_secret", time.Second, nil)
	res, err := g.Refund(context.Background(), "pay_456", 0)
	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", res.RefundID)
	assert.Equal(t, "processed", res.Status)
}
