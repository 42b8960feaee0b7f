// Package payment abstracts the third-party payment providers behind a
// single interface. Providers come in two flow shapes: redirect-based
// (hosted checkout page, status final on return) and session-polled
// (embedded form, status arrives via webhook and polling). Downstream code
// dispatches on the flow kind, never on the provider name.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// FlowKind tags how a provider completes a payment.
type FlowKind string

const (
	// KindRedirectBased providers host the payment page; the charge attempt
	// is complete before the shopper is redirected back.
	KindRedirectBased FlowKind = "redirect_based"

	// KindSessionPolled providers render an embedded form; completion is
	// reported out-of-band via webhook and the client polls.
	KindSessionPolled FlowKind = "session_polled"
)

// Session is an opened payment session. Exactly one of CheckoutURL
// (redirect-based) or ClientSecret (session-polled) is set.
type Session struct {
	ID           string
	CheckoutURL  string
	ClientSecret string
}

// CreateSessionParams carries what a provider needs to open a session.
// AmountCents is integer cents; ReturnURL is only used by redirect-based
// providers.
type CreateSessionParams struct {
	OrderID        uuid.UUID
	AmountCents    int64
	Currency       string
	Description    string
	ReturnURL      string
	IdempotencyKey string
}

// Provider is a payment provider API client. GetStatus returns a normalized
// payment status from the enum package vocabulary.
type Provider interface {
	Name() string
	Kind() FlowKind
	CreateSession(ctx context.Context, params CreateSessionParams) (Session, error)
	GetStatus(ctx context.Context, sessionID string) (string, error)
	Refund(ctx context.Context, sessionID string) error
}

// BillingProvider is the subscription-side surface: plan checkout with
// provider-computed proration, portal links, and remote cancel/resume.
type BillingProvider interface {
	CreatePlanCheckout(ctx context.Context, subscriptionRef, priceID, returnURL string) (Session, error)
	CreatePortalSession(ctx context.Context, subscriptionRef, returnURL string) (Session, error)
	CancelSubscription(ctx context.Context, subscriptionRef string, immediately bool) error
	ResumeSubscription(ctx context.Context, subscriptionRef string) error
}

// ErrStatusUnknown marks a status fetch that failed or timed out. Callers
// re-check instead of assuming failure.
var ErrStatusUnknown = errors.New("provider status unknown")

// APIError is a non-2xx response from a provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: provider API error %d: %s", e.Provider, e.StatusCode, e.Message)
}
