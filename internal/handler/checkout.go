package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tavolo-app/api/internal/database"
	"github.com/tavolo-app/api/internal/enum"
	"github.com/tavolo-app/api/internal/payment"
	"github.com/tavolo-app/api/internal/service"
)

// CheckoutRunner defines the service methods needed by checkout handlers.
// Satisfied by *service.CheckoutService; narrow interface for testability.
type CheckoutRunner interface {
	OpenSession(ctx context.Context, storeID, orderID uuid.UUID) (*service.SessionResult, error)
	Reconcile(ctx context.Context, storeID, orderID uuid.UUID) (database.Order, error)
}

// CheckoutHandler serves the public payment flow: opening a session,
// polling its status, and landing the redirect return.
type CheckoutHandler struct {
	checkout CheckoutRunner
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkout CheckoutRunner) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// RegisterRoutes registers checkout endpoints on the given Chi router.
// Expected to be mounted inside a store-scoped subrouter: /stores/{sid}
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders/{id}/payment-session", h.OpenSession)
	r.Get("/orders/{id}/payment-status", h.PaymentStatus)
	r.Get("/orders/{id}/return", h.Return)
}

// --- Response types ---

type sessionResponse struct {
	Order        orderResponse    `json:"order"`
	Provider     string           `json:"provider"`
	Kind         payment.FlowKind `json:"kind"`
	SessionID    string           `json:"session_id"`
	CheckoutURL  string           `json:"checkout_url,omitempty"`
	ClientSecret string           `json:"client_secret,omitempty"`
}

type paymentStatusResponse struct {
	Order orderResponse `json:"order"`

	// Stale is set when the provider could not be reached and the payment
	// status is the last one stored, not a fresh read.
	Stale bool `json:"stale,omitempty"`
}

// --- Handlers ---

// OpenSession opens (or replays) a payment session for an order.
func (h *CheckoutHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	storeID, orderID, ok := storeAndOrderIDs(w, r)
	if !ok {
		return
	}

	result, err := h.checkout.OpenSession(r.Context(), storeID, orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		Order:        toOrderResponse(result.Order),
		Provider:     result.Provider,
		Kind:         result.Kind,
		SessionID:    result.SessionID,
		CheckoutURL:  result.CheckoutURL,
		ClientSecret: result.ClientSecret,
	})
}

// PaymentStatus re-checks the provider and returns the merged order state.
// A provider outage degrades to the stored status instead of failing the
// poll loop.
func (h *CheckoutHandler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	storeID, orderID, ok := storeAndOrderIDs(w, r)
	if !ok {
		return
	}

	order, err := h.checkout.Reconcile(r.Context(), storeID, orderID)
	if err != nil {
		if errors.Is(err, payment.ErrStatusUnknown) {
			writeJSON(w, http.StatusOK, paymentStatusResponse{Order: toOrderResponse(order), Stale: true})
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, paymentStatusResponse{Order: toOrderResponse(order)})
}

// Return lands the shopper coming back from a redirect-based provider. The
// outcome in the URL is never trusted; the provider API is the only status
// source. An unreachable provider is a hard error here because the shopper
// needs a definitive answer.
func (h *CheckoutHandler) Return(w http.ResponseWriter, r *http.Request) {
	storeID, orderID, ok := storeAndOrderIDs(w, r)
	if !ok {
		return
	}

	order, err := h.checkout.Reconcile(r.Context(), storeID, orderID)
	if err != nil {
		if errors.Is(err, payment.ErrStatusUnknown) {
			writeError(w, http.StatusBadGateway, KindProviderStatusUnknown, "payment status could not be confirmed, retry shortly")
			return
		}
		writeServiceError(w, err)
		return
	}

	// Expired sessions are restartable through a fresh session, so the
	// client gets a different message than a hard decline.
	switch order.PaymentStatus {
	case enum.PaymentStatusExpired:
		writeJSON(w, http.StatusPaymentRequired, terminalPaymentResponse{
			Error:         "payment session expired, restart checkout",
			Kind:          KindTerminalPaymentFailure,
			PaymentStatus: order.PaymentStatus,
		})
	case enum.PaymentStatusFailed:
		writeJSON(w, http.StatusPaymentRequired, terminalPaymentResponse{
			Error:         "payment was not completed",
			Kind:          KindTerminalPaymentFailure,
			PaymentStatus: order.PaymentStatus,
		})
	default:
		writeJSON(w, http.StatusOK, paymentStatusResponse{Order: toOrderResponse(order)})
	}
}

// terminalPaymentResponse is the error body for a terminal payment outcome
// on the return path; payment_status lets the client tell the two apart.
type terminalPaymentResponse struct {
	Error         string `json:"error"`
	Kind          string `json:"kind"`
	PaymentStatus string `json:"payment_status"`
}

func storeAndOrderIDs(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return uuid.Nil, uuid.Nil, false
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return storeID, orderID, true
}
