package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/tavolo-app/api/internal/enum"
)

// OAuthClient talks to the OAuth-onboarded provider. Its checkout is a hosted
// page: creating a session yields a redirect URL, and by the time the shopper
// is sent back the charge attempt is final, so the flow kind is
// redirect_based. The API takes amounts as decimal strings ("12.99"), not
// cents.
type OAuthClient struct {
	api apiClient
}

// NewOAuthClient creates a client for the given API base URL and access token.
func NewOAuthClient(baseURL, accessToken string) *OAuthClient {
	return &OAuthClient{api: newAPIClient(enum.ProviderOAuth, baseURL, accessToken)}
}

func (c *OAuthClient) Name() string   { return enum.ProviderOAuth }
func (c *OAuthClient) Kind() FlowKind { return KindRedirectBased }

type oauthPaymentRequest struct {
	Amount struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"amount"`
	Description string `json:"description,omitempty"`
	RedirectURL string `json:"redirectUrl"`
	Metadata    struct {
		OrderID        string `json:"orderId"`
		IdempotencyKey string `json:"idempotencyKey"`
	} `json:"metadata"`
}

type oauthPaymentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  struct {
		Checkout struct {
			Href string `json:"href"`
		} `json:"checkout"`
	} `json:"_links"`
}

// CreateSession opens a hosted payment and returns its checkout URL.
func (c *OAuthClient) CreateSession(ctx context.Context, params CreateSessionParams) (Session, error) {
	var req oauthPaymentRequest
	req.Amount.Value = decimal.NewFromInt(params.AmountCents).Div(decimal.NewFromInt(100)).StringFixed(2)
	req.Amount.Currency = params.Currency
	req.Description = params.Description
	req.RedirectURL = params.ReturnURL
	req.Metadata.OrderID = params.OrderID.String()
	req.Metadata.IdempotencyKey = params.IdempotencyKey

	var resp oauthPaymentResponse
	if err := c.api.do(ctx, http.MethodPost, "/v2/payments", req, &resp); err != nil {
		return Session{}, err
	}
	if resp.Links.Checkout.Href == "" {
		return Session{}, fmt.Errorf("oauth: payment %s missing checkout link", resp.ID)
	}
	return Session{ID: resp.ID, CheckoutURL: resp.Links.Checkout.Href}, nil
}

// GetStatus fetches the payment and maps its native status.
func (c *OAuthClient) GetStatus(ctx context.Context, sessionID string) (string, error) {
	var resp oauthPaymentResponse
	if err := c.api.do(ctx, http.MethodGet, "/v2/payments/"+sessionID, nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrStatusUnknown, err)
	}
	return mapOAuthStatus(resp.Status)
}

// Refund issues a full refund against the payment.
func (c *OAuthClient) Refund(ctx context.Context, sessionID string) error {
	return c.api.do(ctx, http.MethodPost, "/v2/payments/"+sessionID+"/refunds", map[string]string{}, nil)
}

func mapOAuthStatus(native string) (string, error) {
	switch native {
	case "open", "pending", "authorized":
		return enum.PaymentStatusAwaitingConfirmation, nil
	case "paid":
		return enum.PaymentStatusPaid, nil
	case "failed", "canceled":
		return enum.PaymentStatusFailed, nil
	case "expired":
		return enum.PaymentStatusExpired, nil
	case "refunded", "charged_back":
		return enum.PaymentStatusRefunded, nil
	}
	return "", fmt.Errorf("oauth: unmapped payment status %q", native)
}
