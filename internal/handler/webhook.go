package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tavolo-app/api/internal/database"
	"github.com/tavolo-app/api/internal/payment"
	"github.com/tavolo-app/api/internal/service"
)

// signatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const signatureHeader = "X-Webhook-Signature"

// WebhookReconciler defines the checkout-side surface needed by webhook
// handlers. Satisfied by *service.CheckoutService.
type WebhookReconciler interface {
	HandleWebhookEvent(ctx context.Context, providerName, sessionID string) (database.Order, error)
}

// BillingApplier defines the subscription-side surface needed by webhook
// handlers. Satisfied by *service.SubscriptionService.
type BillingApplier interface {
	ApplyBillingUpdate(ctx context.Context, storeID uuid.UUID, upd service.BillingUpdate) (service.SubscriptionView, error)
}

// WebhookHandler receives provider webhooks, verifies their signature, and
// hands them to the matching service. The event payload is only trusted for
// routing; payment state is always re-fetched from the provider API.
type WebhookHandler struct {
	checkout WebhookReconciler
	billing  BillingApplier

	// secrets maps provider name to its webhook signing secret.
	secrets map[string]string
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(checkout WebhookReconciler, billing BillingApplier, secrets map[string]string) *WebhookHandler {
	return &WebhookHandler{checkout: checkout, billing: billing, secrets: secrets}
}

// RegisterRoutes registers the webhook endpoint on the given Chi router.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/{provider}", h.Receive)
}

// --- Payload types ---

type webhookEvent struct {
	Type string      `json:"type"`
	Data webhookData `json:"data"`
}

type webhookData struct {
	ID                string     `json:"id"`
	StoreID           string     `json:"store_id"`
	Status            string     `json:"status"`
	PriceID           string     `json:"price_id"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	TrialEndsAt       *time.Time `json:"trial_ends_at"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end"`
}

// --- Handlers ---

// Receive verifies and dispatches one webhook delivery. Malformed or
// unverifiable deliveries get a 4xx so the provider surfaces them; transient
// processing errors get a 5xx so the provider redelivers.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")
	secret, ok := h.secrets[providerName]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown provider"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if !payment.VerifySignature(secret, body, r.Header.Get(signatureHeader)) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	switch {
	case strings.HasPrefix(event.Type, "subscription."):
		h.applyBillingEvent(w, r, event)
	case strings.HasPrefix(event.Type, "payment."):
		h.applyPaymentEvent(w, r, providerName, event)
	default:
		// Unknown event types are acknowledged so the provider stops
		// redelivering them.
		log.Printf("webhook: ignoring event type %q from %s", event.Type, providerName)
		w.WriteHeader(http.StatusOK)
	}
}

func (h *WebhookHandler) applyPaymentEvent(w http.ResponseWriter, r *http.Request, providerName string, event webhookEvent) {
	if event.Data.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing session id"})
		return
	}

	_, err := h.checkout.HandleWebhookEvent(r.Context(), providerName, event.Data.ID)
	if err != nil {
		// A session we never bound is not ours to process; acknowledging it
		// stops pointless redelivery.
		if errors.Is(err, service.ErrOrderNotFound) {
			log.Printf("webhook: no order for %s session %s", providerName, event.Data.ID)
			w.WriteHeader(http.StatusOK)
			return
		}
		log.Printf("ERROR: webhook %s %s: %v", providerName, event.Type, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) applyBillingEvent(w http.ResponseWriter, r *http.Request, event webhookEvent) {
	storeID, err := uuid.Parse(event.Data.StoreID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store_id"})
		return
	}

	_, err = h.billing.ApplyBillingUpdate(r.Context(), storeID, service.BillingUpdate{
		Status:            event.Data.Status,
		PriceID:           event.Data.PriceID,
		CancelAtPeriodEnd: event.Data.CancelAtPeriodEnd,
		TrialEndsAt:       event.Data.TrialEndsAt,
		CurrentPeriodEnd:  event.Data.CurrentPeriodEnd,
		ProviderReference: event.Data.ID,
	})
	if err != nil {
		log.Printf("ERROR: webhook billing %s: %v", event.Type, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusOK)
}
