package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tavolo-app/api/internal/payment"
	"github.com/tavolo-app/api/internal/service"
)

// SubscriptionManager defines the service methods needed by subscription
// handlers. Satisfied by *service.SubscriptionService.
type SubscriptionManager interface {
	Get(ctx context.Context, storeID uuid.UUID) (service.SubscriptionView, error)
	ChangePlan(ctx context.Context, storeID uuid.UUID, priceID string) (payment.Session, error)
	Portal(ctx context.Context, storeID uuid.UUID) (payment.Session, error)
	Cancel(ctx context.Context, storeID uuid.UUID, immediately bool) (service.SubscriptionView, error)
	Resume(ctx context.Context, storeID uuid.UUID) (service.SubscriptionView, error)
}

// SubscriptionHandler serves the merchant's billing plan lifecycle.
type SubscriptionHandler struct {
	subs SubscriptionManager
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(subs SubscriptionManager) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs}
}

// RegisterRoutes registers subscription endpoints on the given Chi router.
// Expected to be mounted inside an authenticated store-scoped subrouter:
// /console/stores/{sid}
func (h *SubscriptionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/subscription", h.Get)
	r.Post("/subscription/change-plan", h.ChangePlan)
	r.Post("/subscription/portal", h.Portal)
	r.Post("/subscription/cancel", h.Cancel)
	r.Post("/subscription/resume", h.Resume)
}

// --- Request / Response types ---

type changePlanRequest struct {
	PriceID string `json:"price_id"`
}

type cancelSubscriptionRequest struct {
	Immediately bool `json:"immediately"`
}

type billingSessionResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

// --- Handlers ---

// Get returns the store's current plan state. A store that never subscribed
// gets status NONE rather than a 404.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	storeID, ok := subscriptionStoreID(w, r)
	if !ok {
		return
	}

	view, err := h.subs.Get(r.Context(), storeID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ChangePlan starts a provider checkout for a new or changed plan. Proration
// on a plan switch is the billing provider's job.
func (h *SubscriptionHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	storeID, ok := subscriptionStoreID(w, r)
	if !ok {
		return
	}

	var req changePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.PriceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price_id is required"})
		return
	}

	session, err := h.subs.ChangePlan(r.Context(), storeID, req.PriceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, billingSessionResponse{CheckoutURL: session.CheckoutURL})
}

// Portal returns a provider-hosted billing portal link.
func (h *SubscriptionHandler) Portal(w http.ResponseWriter, r *http.Request) {
	storeID, ok := subscriptionStoreID(w, r)
	if !ok {
		return
	}

	session, err := h.subs.Portal(r.Context(), storeID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, billingSessionResponse{CheckoutURL: session.CheckoutURL})
}

// Cancel cancels the subscription, at period end by default or immediately
// on request.
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	storeID, ok := subscriptionStoreID(w, r)
	if !ok {
		return
	}

	var req cancelSubscriptionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	view, err := h.subs.Cancel(r.Context(), storeID, req.Immediately)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Resume reverts a pending cancellation or unpauses a paused subscription.
func (h *SubscriptionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	storeID, ok := subscriptionStoreID(w, r)
	if !ok {
		return
	}

	view, err := h.subs.Resume(r.Context(), storeID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func subscriptionStoreID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return uuid.Nil, false
	}
	return storeID, true
}
