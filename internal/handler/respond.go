package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/tavolo-app/api/internal/payment"
	"github.com/tavolo-app/api/internal/service"
)

// Machine-readable error kinds carried next to the human message. Clients
// branch on the kind, never on the message text.
const (
	KindValidationError        = "VALIDATION_ERROR"
	KindCapabilityUnavailable  = "CAPABILITY_UNAVAILABLE"
	KindIdempotencyConflict    = "IDEMPOTENCY_CONFLICT"
	KindProviderSessionError   = "PROVIDER_SESSION_ERROR"
	KindProviderStatusUnknown  = "PROVIDER_STATUS_UNKNOWN"
	KindTerminalPaymentFailure = "TERMINAL_PAYMENT_FAILURE"
)

type errorResponse struct {
	Error    string `json:"error"`
	Kind     string `json:"kind,omitempty"`
	Failures any    `json:"failures,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: message, Kind: kind})
}

// writeServiceError maps service-layer errors onto HTTP statuses and kinds.
// Unmapped errors are logged and masked as a plain 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:    vErr.Error(),
			Kind:     KindValidationError,
			Failures: vErr.Result.Failures,
		})
		return
	}
	var apiErr *payment.APIError
	if errors.As(err, &apiErr) {
		writeError(w, http.StatusBadGateway, KindProviderSessionError, "payment provider rejected the session")
		return
	}

	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrStoreNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, KindIdempotencyConflict, err.Error())
	case errors.Is(err, service.ErrCapabilityUnavailable):
		writeError(w, http.StatusConflict, KindCapabilityUnavailable, err.Error())
	case errors.Is(err, payment.ErrStatusUnknown):
		writeError(w, http.StatusBadGateway, KindProviderStatusUnknown, "payment status could not be determined, retry shortly")
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidOrderType),
		errors.Is(err, service.ErrMissingCustomerName),
		errors.Is(err, service.ErrMissingTimeSlot),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrMissingIdempotency),
		errors.Is(err, service.ErrInvalidItemID),
		errors.Is(err, service.ErrInvalidGroupID),
		errors.Is(err, service.ErrInvalidChoiceID),
		errors.Is(err, service.ErrInvalidPickupTime),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrItemUnavailable),
		errors.Is(err, service.ErrUnknownPlan):
		writeError(w, http.StatusBadRequest, KindValidationError, err.Error())
	case errors.Is(err, service.ErrStoreClosed),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrOrderNotPayable),
		errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrNotRefundable),
		errors.Is(err, service.ErrNoPaymentSession),
		errors.Is(err, service.ErrNoSubscription),
		errors.Is(err, service.ErrNotResumable),
		errors.Is(err, service.ErrAlreadyCanceled):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
