// Package httpapi is thin JSON glue over the checkout engine; all business
// logic lives in the engine packages.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kanishkmehta29/storefront-checkout/checkout"
	"github.com/kanishkmehta29/storefront-checkout/gateway"
	"github.com/kanishkmehta29/storefront-checkout/shared/metrics"
	"github.com/kanishkmehta29/storefront-checkout/shared/models"
	"github.com/kanishkmehta29/storefront-checkout/webhook"
)

// SignatureHeader carries the webhook signature for both gateways.
const SignatureHeader = "X-Webhook-Signature"

type Handler struct {
	coord      *checkout.Coordinator
	reconciler *webhook.Reconciler
}

func NewRouter(coord *checkout.Coordinator, reconciler *webhook.Reconciler) http.Handler {
	h := &Handler{coord: coord, reconciler: reconciler}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/checkout", h.handleCheckout)
	r.Post("/payments/{handleID}/confirm", h.handleConfirmPayment)
	r.Post("/orders/{orderID}/cancel", h.handleCancelOrder)
	r.Post("/orders/{orderID}/refund", h.handleRefund)
	r.Post("/orders/{orderID}/status", h.handleUpdateStatus)
	r.Get("/orders/{orderID}", h.handleGetOrder)
	r.Get("/orders", h.handleListOrders)
	r.Post("/webhooks/payments", h.handleWebhook)
	r.Handle("/metrics", metrics.Handler())

	return r
}

type checkoutRequest struct {
	UserID          string               `json:"user_id,omitempty"`
	Guest           *models.GuestContact `json:"guest,omitempty"`
	Items           []checkout.CartItem  `json:"items"`
	ShippingAddress models.Address       `json:"shipping_address"`
	PaymentMethod   models.PaymentMethod `json:"payment_method"`
	ExpectedTotal   *int64               `json:"expected_total,omitempty"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid request body"})
		return
	}

	var owner models.Owner
	if req.UserID != "" {
		owner = models.NewUserOwner(req.UserID)
	} else if req.Guest != nil {
		owner = models.NewGuestOwner(*req.Guest)
	}

	result, err := h.coord.Checkout(r.Context(), checkout.CheckoutInput{
		Owner:           owner,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ExpectedTotal:   req.ExpectedTotal,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var proof gateway.ClientProof
	if r.Body != nil {
		// An empty body is fine for the intent shape.
		if err := json.NewDecoder(r.Body).Decode(&proof); err != nil && err != io.EOF {
			writeError(w, &models.ValidationError{Msg: "invalid request body"})
			return
		}
	}

	order, err := h.coord.ConfirmPayment(r.Context(), chi.URLParam(r, "handleID"), proof)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid request body"})
		return
	}

	order, err := h.coord.CancelOrder(r.Context(), chi.URLParam(r, "orderID"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount,omitempty"`
	}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, &models.ValidationError{Msg: "invalid request body"})
			return
		}
	}

	order, err := h.coord.Refund(r.Context(), chi.URLParam(r, "orderID"), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.OrderStatus `json:"status"`
		Note   string             `json:"note,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Msg: "invalid request body"})
		return
	}

	order, err := h.coord.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), req.Status, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.coord.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	ownerKey := r.URL.Query().Get("owner")
	if ownerKey == "" {
		writeError(w, &models.ValidationError{Msg: "owner query parameter is required"})
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	orders, err := h.coord.ListOrders(r.Context(), ownerKey, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, &models.ValidationError{Msg: "unreadable request body"})
		return
	}

	if err := h.reconciler.Handle(r.Context(), body, r.Header.Get(SignatureHeader)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var (
		validation   *models.ValidationError
		insufficient *models.InsufficientStockError
		inactive     *models.ProductInactiveError
		mismatch     *models.AmountMismatchError
		transition   *models.InvalidTransitionError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation), errors.As(err, &mismatch):
		status = http.StatusBadRequest
	case errors.As(err, &insufficient), errors.As(err, &inactive), errors.As(err, &transition),
		errors.Is(err, models.ErrStaleState):
		status = http.StatusConflict
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrSignatureInvalid):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrPaymentFailed):
		status = http.StatusPaymentRequired
	case errors.Is(err, models.ErrGatewayUnavailable):
		status = http.StatusBadGateway
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
