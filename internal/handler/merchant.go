package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tavolo-app/api/internal/database"
	"github.com/tavolo-app/api/internal/enum"
	"github.com/tavolo-app/api/internal/service"
	"github.com/tavolo-app/api/internal/ws"
)

// MerchantStore defines the database methods needed by merchant console
// handlers. Satisfied by *database.Queries.
type MerchantStore interface {
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
	UpdateStorePreferredProvider(ctx context.Context, id uuid.UUID, provider string) (database.Store, error)
	ListPaymentAccountsByStore(ctx context.Context, storeID uuid.UUID) ([]database.PaymentAccount, error)
	UpsertPaymentAccount(ctx context.Context, arg database.UpsertPaymentAccountParams) (database.PaymentAccount, error)
	ListOrdersByStore(ctx context.Context, arg database.ListOrdersByStoreParams) ([]database.Order, error)
}

// OrderTransitioner moves orders through the kitchen lifecycle.
// Satisfied by *service.OrderService.
type OrderTransitioner interface {
	UpdateStatus(ctx context.Context, storeID, orderID uuid.UUID, toStatus string) (database.Order, error)
}

// PaymentSettler is the merchant-side payment surface. Satisfied by
// *service.CheckoutService.
type PaymentSettler interface {
	MarkPayAtCounter(ctx context.Context, storeID, orderID uuid.UUID) (database.Order, error)
	Refund(ctx context.Context, storeID, orderID uuid.UUID) (database.Order, error)
}

// MerchantHandler serves the JWT-protected merchant console: the live order
// board, payment account management, and the store's payment policy.
type MerchantHandler struct {
	store    MerchantStore
	orders   OrderTransitioner
	checkout PaymentSettler
	hub      service.Broadcaster
}

// NewMerchantHandler creates a new MerchantHandler. hub may be nil.
func NewMerchantHandler(store MerchantStore, orders OrderTransitioner, checkout PaymentSettler, hub service.Broadcaster) *MerchantHandler {
	return &MerchantHandler{store: store, orders: orders, checkout: checkout, hub: hub}
}

// RegisterRoutes registers console endpoints on the given Chi router.
// Expected to be mounted inside an authenticated store-scoped subrouter:
// /console/stores/{sid}
func (h *MerchantHandler) RegisterRoutes(r chi.Router) {
	r.Get("/capabilities", h.GetCapabilities)
	r.Get("/payment-accounts", h.ListPaymentAccounts)
	r.Put("/payment-accounts/{provider}", h.UpsertPaymentAccount)
	r.Put("/payment-policy", h.UpdatePaymentPolicy)
	r.Get("/orders", h.ListOrders)
	r.Patch("/orders/{id}/status", h.UpdateOrderStatus)
	r.Post("/orders/{id}/pay-at-counter", h.PayAtCounter)
	r.Post("/orders/{id}/refund", h.Refund)
}

// --- Request / Response types ---

type paymentAccountResponse struct {
	Provider              string    `json:"provider"`
	AccountID             *string   `json:"account_id"`
	OnboardingComplete    bool      `json:"onboarding_complete"`
	RequirementsStatus    *string   `json:"requirements_status"`
	CapabilitiesStatus    *string   `json:"capabilities_status"`
	OrganizationID        *string   `json:"organization_id"`
	OnboardingStatus      *string   `json:"onboarding_status"`
	CanReceivePayments    bool      `json:"can_receive_payments"`
	CanReceiveSettlements bool      `json:"can_receive_settlements"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type upsertPaymentAccountRequest struct {
	AccountID             string `json:"account_id"`
	OnboardingComplete    bool   `json:"onboarding_complete"`
	RequirementsStatus    string `json:"requirements_status"`
	CapabilitiesStatus    string `json:"capabilities_status"`
	OrganizationID        string `json:"organization_id"`
	OnboardingStatus      string `json:"onboarding_status"`
	CanReceivePayments    bool   `json:"can_receive_payments"`
	CanReceiveSettlements bool   `json:"can_receive_settlements"`
}

type paymentPolicyRequest struct {
	PreferredProvider string `json:"preferred_provider"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

func toPaymentAccountResponse(a database.PaymentAccount) paymentAccountResponse {
	resp := paymentAccountResponse{
		Provider:              a.Provider,
		OnboardingComplete:    a.OnboardingComplete,
		CanReceivePayments:    a.CanReceivePayments,
		CanReceiveSettlements: a.CanReceiveSettlements,
		UpdatedAt:             a.UpdatedAt,
	}
	if a.AccountID.Valid {
		resp.AccountID = &a.AccountID.String
	}
	if a.RequirementsStatus.Valid {
		resp.RequirementsStatus = &a.RequirementsStatus.String
	}
	if a.CapabilitiesStatus.Valid {
		resp.CapabilitiesStatus = &a.CapabilitiesStatus.String
	}
	if a.OrganizationID.Valid {
		resp.OrganizationID = &a.OrganizationID.String
	}
	if a.OnboardingStatus.Valid {
		resp.OnboardingStatus = &a.OnboardingStatus.String
	}
	return resp
}

// --- Handlers ---

// GetCapabilities returns what the store can currently do, derived from its
// open flag and payment account state.
func (h *MerchantHandler) GetCapabilities(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	store, err := h.store.GetStore(r.Context(), storeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "store not found"})
			return
		}
		log.Printf("ERROR: get store: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	accounts, err := h.store.ListPaymentAccountsByStore(r.Context(), storeID)
	if err != nil {
		log.Printf("ERROR: list payment accounts: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, service.ResolveCapabilities(store, accounts))
}

// ListPaymentAccounts returns the store's provider onboarding rows.
func (h *MerchantHandler) ListPaymentAccounts(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	accounts, err := h.store.ListPaymentAccountsByStore(r.Context(), storeID)
	if err != nil {
		log.Printf("ERROR: list payment accounts: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentAccountResponse, len(accounts))
	for i, a := range accounts {
		resp[i] = toPaymentAccountResponse(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpsertPaymentAccount records a provider onboarding state for the store.
func (h *MerchantHandler) UpsertPaymentAccount(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	provider := chi.URLParam(r, "provider")
	if !isKnownProvider(provider) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown provider"})
		return
	}

	var req upsertPaymentAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	account, err := h.store.UpsertPaymentAccount(r.Context(), database.UpsertPaymentAccountParams{
		StoreID:               storeID,
		Provider:              provider,
		AccountID:             textOrNull(req.AccountID),
		OnboardingComplete:    req.OnboardingComplete,
		RequirementsStatus:    textOrNull(req.RequirementsStatus),
		CapabilitiesStatus:    textOrNull(req.CapabilitiesStatus),
		OrganizationID:        textOrNull(req.OrganizationID),
		OnboardingStatus:      textOrNull(req.OnboardingStatus),
		CanReceivePayments:    req.CanReceivePayments,
		CanReceiveSettlements: req.CanReceiveSettlements,
	})
	if err != nil {
		log.Printf("ERROR: upsert payment account: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toPaymentAccountResponse(account))
}

// UpdatePaymentPolicy sets which provider the store prefers to charge
// through.
func (h *MerchantHandler) UpdatePaymentPolicy(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	var req paymentPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !isKnownProvider(req.PreferredProvider) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown provider"})
		return
	}

	store, err := h.store.UpdateStorePreferredProvider(r.Context(), storeID, req.PreferredProvider)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "store not found"})
			return
		}
		log.Printf("ERROR: update payment policy: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"preferred_provider": store.PreferredProvider})
}

// ListOrders returns the store's orders, newest first, optionally filtered
// by status.
func (h *MerchantHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && !isValidOrderStatus(status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
		return
	}

	limit := int32(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n < 1 || n > 200 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be 1-200"})
			return
		}
		limit = int32(n)
	}

	orders, err := h.store.ListOrdersByStore(r.Context(), database.ListOrdersByStoreParams{
		StoreID: storeID,
		Status:  status,
		Limit:   limit,
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateOrderStatus moves an order through the kitchen lifecycle and pushes
// the change to connected dashboards.
func (h *MerchantHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	storeID, orderID, ok := storeAndOrderIDs(w, r)
	if !ok {
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !isValidOrderStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), storeID, orderID, req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.broadcastOrderStatus(order)
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// PayAtCounter settles an order offline at the counter.
func (h *MerchantHandler) PayAtCounter(w http.ResponseWriter, r *http.Request) {
	storeID, orderID, ok := storeAndOrderIDs(w, r)
	if !ok {
		return
	}

	order, err := h.checkout.MarkPayAtCounter(r.Context(), storeID, orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Refund refunds a paid order through its provider.
func (h *MerchantHandler) Refund(w http.ResponseWriter, r *http.Request) {
	storeID, orderID, ok := storeAndOrderIDs(w, r)
	if !ok {
		return
	}

	order, err := h.checkout.Refund(r.Context(), storeID, orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// --- Helpers ---

func (h *MerchantHandler) broadcastOrderStatus(order database.Order) {
	if h.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"status":       order.Status,
	})
	if err != nil {
		return
	}
	h.hub.BroadcastToStore(order.StoreID, ws.Event{Type: "order.status_updated", Payload: payload})
}

func isKnownProvider(provider string) bool {
	return provider == enum.ProviderConnect || provider == enum.ProviderOAuth
}

func isValidOrderStatus(status string) bool {
	switch status {
	case enum.OrderStatusAwaitingPayment, enum.OrderStatusConfirmed, enum.OrderStatusPreparing,
		enum.OrderStatusReady, enum.OrderStatusCompleted, enum.OrderStatusCancelled:
		return true
	}
	return false
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
