package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tavolo-app/api/internal/enum"
)

// ConnectClient talks to the Connect-style provider. Payment sessions are
// embedded (client secret + in-page form), completion arrives over a webhook,
// so the flow kind is session_polled. The same provider hosts the merchant
// subscription billing, which uses its hosted checkout pages.
type ConnectClient struct {
	api apiClient
}

// NewConnectClient creates a client for the given API base URL and secret key.
func NewConnectClient(baseURL, apiKey string) *ConnectClient {
	return &ConnectClient{api: newAPIClient(enum.ProviderConnect, baseURL, apiKey)}
}

func (c *ConnectClient) Name() string   { return enum.ProviderConnect }
func (c *ConnectClient) Kind() FlowKind { return KindSessionPolled }

type connectIntentRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
	Metadata       struct {
		OrderID string `json:"order_id"`
	} `json:"metadata"`
}

type connectIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// CreateSession opens a payment intent and returns its client secret for the
// embedded form. Amounts are integer cents, the provider's native unit.
func (c *ConnectClient) CreateSession(ctx context.Context, params CreateSessionParams) (Session, error) {
	req := connectIntentRequest{
		Amount:         params.AmountCents,
		Currency:       params.Currency,
		Description:    params.Description,
		IdempotencyKey: params.IdempotencyKey,
	}
	req.Metadata.OrderID = params.OrderID.String()

	var resp connectIntentResponse
	if err := c.api.do(ctx, http.MethodPost, "/v1/payment_intents", req, &resp); err != nil {
		return Session{}, err
	}
	if resp.ClientSecret == "" {
		return Session{}, fmt.Errorf("connect: intent %s missing client secret", resp.ID)
	}
	return Session{ID: resp.ID, ClientSecret: resp.ClientSecret}, nil
}

// GetStatus fetches the intent and maps its native status onto the
// normalized vocabulary. Transport failures are wrapped in ErrStatusUnknown
// so callers re-check rather than assume failure.
func (c *ConnectClient) GetStatus(ctx context.Context, sessionID string) (string, error) {
	var resp connectIntentResponse
	if err := c.api.do(ctx, http.MethodGet, "/v1/payment_intents/"+sessionID, nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrStatusUnknown, err)
	}
	return mapConnectStatus(resp.Status)
}

// Refund issues a full refund against the intent.
func (c *ConnectClient) Refund(ctx context.Context, sessionID string) error {
	body := map[string]string{"payment_intent": sessionID}
	return c.api.do(ctx, http.MethodPost, "/v1/refunds", body, nil)
}

func mapConnectStatus(native string) (string, error) {
	switch native {
	case "requires_payment_method", "requires_confirmation", "requires_action":
		return enum.PaymentStatusAwaitingConfirmation, nil
	case "processing":
		return enum.PaymentStatusAwaitingConfirmation, nil
	case "succeeded":
		return enum.PaymentStatusPaid, nil
	case "canceled":
		return enum.PaymentStatusFailed, nil
	case "expired":
		return enum.PaymentStatusExpired, nil
	case "refunded":
		return enum.PaymentStatusRefunded, nil
	}
	return "", fmt.Errorf("connect: unmapped intent status %q", native)
}

// --- Billing (merchant subscriptions) ---

type connectBillingSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreatePlanCheckout opens a hosted checkout session for a plan change. The
// provider computes proration; we only pass the target price.
func (c *ConnectClient) CreatePlanCheckout(ctx context.Context, subscriptionRef, priceID, returnURL string) (Session, error) {
	body := map[string]string{
		"subscription": subscriptionRef,
		"price":        priceID,
		"return_url":   returnURL,
	}
	var resp connectBillingSessionResponse
	if err := c.api.do(ctx, http.MethodPost, "/v1/billing/checkout_sessions", body, &resp); err != nil {
		return Session{}, err
	}
	return Session{ID: resp.ID, CheckoutURL: resp.URL}, nil
}

// CreatePortalSession returns a billing-portal link. Pure passthrough, no
// local state changes.
func (c *ConnectClient) CreatePortalSession(ctx context.Context, subscriptionRef, returnURL string) (Session, error) {
	body := map[string]string{
		"subscription": subscriptionRef,
		"return_url":   returnURL,
	}
	var resp connectBillingSessionResponse
	if err := c.api.do(ctx, http.MethodPost, "/v1/billing/portal_sessions", body, &resp); err != nil {
		return Session{}, err
	}
	return Session{ID: resp.ID, CheckoutURL: resp.URL}, nil
}

// CancelSubscription cancels now or flags cancellation at period end.
func (c *ConnectClient) CancelSubscription(ctx context.Context, subscriptionRef string, immediately bool) error {
	body := map[string]any{"cancel_at_period_end": !immediately}
	if immediately {
		return c.api.do(ctx, http.MethodDelete, "/v1/subscriptions/"+subscriptionRef, nil, nil)
	}
	return c.api.do(ctx, http.MethodPost, "/v1/subscriptions/"+subscriptionRef, body, nil)
}

// ResumeSubscription resumes a paused subscription.
func (c *ConnectClient) ResumeSubscription(ctx context.Context, subscriptionRef string) error {
	return c.api.do(ctx, http.MethodPost, "/v1/subscriptions/"+subscriptionRef+"/resume", nil, nil)
}
