package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tavolo-app/api/internal/database"
	"github.com/tavolo-app/api/internal/enum"
	"github.com/tavolo-app/api/internal/payment"
)

// Errors returned by the subscription service.
var (
	ErrUnknownPlan     = errors.New("unknown plan price")
	ErrNoSubscription  = errors.New("store has no billing subscription")
	ErrNotResumable    = errors.New("only paused subscriptions can be resumed")
	ErrAlreadyCanceled = errors.New("subscription is already canceled")
)

// planTiers maps billing price ids to plan tiers. The price ids are fixed in
// the billing provider's dashboard.
var planTiers = map[string]string{
	"price_starter_monthly": enum.PlanTierStarter,
	"price_growth_monthly":  enum.PlanTierGrowth,
	"price_pro_monthly":     enum.PlanTierPro,
}

// PlanTier returns the tier a price id belongs to.
func PlanTier(priceID string) (string, bool) {
	tier, ok := planTiers[priceID]
	return tier, ok
}

// SubscriptionStore defines the DB methods needed by subscription flows.
// Satisfied by *database.Queries.
type SubscriptionStore interface {
	GetSubscriptionByStore(ctx context.Context, storeID uuid.UUID) (database.Subscription, error)
	UpsertSubscription(ctx context.Context, arg database.UpsertSubscriptionParams) (database.Subscription, error)
}

// SubscriptionView is the merchant-facing subscription state.
type SubscriptionView struct {
	Status            string     `json:"status"`
	Tier              string     `json:"tier,omitempty"`
	PriceID           string     `json:"price_id,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	TrialEndsAt       *time.Time `json:"trial_ends_at,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
}

// SubscriptionService manages the merchant's recurring billing plan through
// the billing side of the connect provider. Local rows mirror the provider's
// state; the provider is authoritative.
type SubscriptionService struct {
	store   SubscriptionStore
	billing payment.BillingProvider

	publicBaseURL string
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(store SubscriptionStore, billing payment.BillingProvider, publicBaseURL string) *SubscriptionService {
	return &SubscriptionService{store: store, billing: billing, publicBaseURL: publicBaseURL}
}

// Get returns the store's subscription state. A store that never subscribed
// reads as status NONE rather than an error.
func (s *SubscriptionService) Get(ctx context.Context, storeID uuid.UUID) (SubscriptionView, error) {
	sub, err := s.store.GetSubscriptionByStore(ctx, storeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SubscriptionView{Status: enum.SubscriptionStatusNone}, nil
		}
		return SubscriptionView{}, fmt.Errorf("get subscription: %w", err)
	}
	return toView(sub), nil
}

// ChangePlan opens a hosted billing checkout for the given plan price. The
// provider computes proration for mid-cycle switches; the local row is
// updated when the billing webhook reports the outcome.
func (s *SubscriptionService) ChangePlan(ctx context.Context, storeID uuid.UUID, priceID string) (payment.Session, error) {
	if _, ok := planTiers[priceID]; !ok {
		return payment.Session{}, ErrUnknownPlan
	}

	ref := storeID.String()
	if sub, err := s.store.GetSubscriptionByStore(ctx, storeID); err == nil && sub.ProviderReference.Valid {
		ref = sub.ProviderReference.String
	}

	returnURL := fmt.Sprintf("%s/stores/%s/subscription", s.publicBaseURL, storeID)
	sess, err := s.billing.CreatePlanCheckout(ctx, ref, priceID, returnURL)
	if err != nil {
		return payment.Session{}, fmt.Errorf("create plan checkout: %w", err)
	}
	return sess, nil
}

// Portal opens the provider's hosted billing portal for the store.
func (s *SubscriptionService) Portal(ctx context.Context, storeID uuid.UUID) (payment.Session, error) {
	sub, err := s.requireSubscription(ctx, storeID)
	if err != nil {
		return payment.Session{}, err
	}

	returnURL := fmt.Sprintf("%s/stores/%s/subscription", s.publicBaseURL, storeID)
	sess, err := s.billing.CreatePortalSession(ctx, sub.ProviderReference.String, returnURL)
	if err != nil {
		return payment.Session{}, fmt.Errorf("create portal session: %w", err)
	}
	return sess, nil
}

// Cancel stops the subscription, either immediately or at the period end.
// Period-end cancellation leaves the plan active with a flag the merchant
// can still undo through Resume at the provider portal.
func (s *SubscriptionService) Cancel(ctx context.Context, storeID uuid.UUID, immediately bool) (SubscriptionView, error) {
	sub, err := s.requireSubscription(ctx, storeID)
	if err != nil {
		return SubscriptionView{}, err
	}
	if sub.Status == enum.SubscriptionStatusCanceled {
		return SubscriptionView{}, ErrAlreadyCanceled
	}

	if err := s.billing.CancelSubscription(ctx, sub.ProviderReference.String, immediately); err != nil {
		return SubscriptionView{}, fmt.Errorf("cancel subscription: %w", err)
	}

	params := subParams(sub)
	if immediately {
		params.Status = enum.SubscriptionStatusCanceled
		params.CancelAtPeriodEnd = false
	} else {
		params.CancelAtPeriodEnd = true
	}
	updated, err := s.store.UpsertSubscription(ctx, params)
	if err != nil {
		return SubscriptionView{}, fmt.Errorf("record cancellation: %w", err)
	}
	return toView(updated), nil
}

// Resume reactivates a paused subscription or clears a pending period-end
// cancellation.
func (s *SubscriptionService) Resume(ctx context.Context, storeID uuid.UUID) (SubscriptionView, error) {
	sub, err := s.requireSubscription(ctx, storeID)
	if err != nil {
		return SubscriptionView{}, err
	}
	if sub.Status != enum.SubscriptionStatusPaused && !sub.CancelAtPeriodEnd {
		return SubscriptionView{}, ErrNotResumable
	}

	if err := s.billing.ResumeSubscription(ctx, sub.ProviderReference.String); err != nil {
		return SubscriptionView{}, fmt.Errorf("resume subscription: %w", err)
	}

	params := subParams(sub)
	params.Status = enum.SubscriptionStatusActive
	params.CancelAtPeriodEnd = false
	updated, err := s.store.UpsertSubscription(ctx, params)
	if err != nil {
		return SubscriptionView{}, fmt.Errorf("record resume: %w", err)
	}
	return toView(updated), nil
}

// BillingUpdate is the subscription state carried by a billing webhook.
type BillingUpdate struct {
	Status            string
	PriceID           string
	CancelAtPeriodEnd bool
	TrialEndsAt       *time.Time
	CurrentPeriodEnd  *time.Time
	ProviderReference string
}

// ApplyBillingUpdate mirrors a provider-reported subscription state into the
// local row. Last write wins; the provider is the source of truth.
func (s *SubscriptionService) ApplyBillingUpdate(ctx context.Context, storeID uuid.UUID, upd BillingUpdate) (SubscriptionView, error) {
	if !isValidSubscriptionStatus(upd.Status) {
		return SubscriptionView{}, fmt.Errorf("unrecognized subscription status %q", upd.Status)
	}
	params := database.UpsertSubscriptionParams{
		StoreID:           storeID,
		Status:            upd.Status,
		CancelAtPeriodEnd: upd.CancelAtPeriodEnd,
	}
	if upd.PriceID != "" {
		params.PriceID = pgtype.Text{String: upd.PriceID, Valid: true}
	}
	if upd.TrialEndsAt != nil {
		params.TrialEndsAt = pgtype.Timestamptz{Time: *upd.TrialEndsAt, Valid: true}
	}
	if upd.CurrentPeriodEnd != nil {
		params.CurrentPeriodEnd = pgtype.Timestamptz{Time: *upd.CurrentPeriodEnd, Valid: true}
	}
	if upd.ProviderReference != "" {
		params.ProviderReference = pgtype.Text{String: upd.ProviderReference, Valid: true}
	}

	updated, err := s.store.UpsertSubscription(ctx, params)
	if err != nil {
		return SubscriptionView{}, fmt.Errorf("apply billing update: %w", err)
	}
	return toView(updated), nil
}

func (s *SubscriptionService) requireSubscription(ctx context.Context, storeID uuid.UUID) (database.Subscription, error) {
	sub, err := s.store.GetSubscriptionByStore(ctx, storeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Subscription{}, ErrNoSubscription
		}
		return database.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	if !sub.ProviderReference.Valid {
		return database.Subscription{}, ErrNoSubscription
	}
	return sub, nil
}

func isValidSubscriptionStatus(status string) bool {
	switch status {
	case enum.SubscriptionStatusTrialing, enum.SubscriptionStatusActive,
		enum.SubscriptionStatusPaused, enum.SubscriptionStatusPastDue,
		enum.SubscriptionStatusCanceled:
		return true
	}
	return false
}

func subParams(sub database.Subscription) database.UpsertSubscriptionParams {
	return database.UpsertSubscriptionParams{
		StoreID:           sub.StoreID,
		Status:            sub.Status,
		PriceID:           sub.PriceID,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		TrialEndsAt:       sub.TrialEndsAt,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		ProviderReference: sub.ProviderReference,
	}
}

func toView(sub database.Subscription) SubscriptionView {
	v := SubscriptionView{
		Status:            sub.Status,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.PriceID.Valid {
		v.PriceID = sub.PriceID.String
		if tier, ok := planTiers[sub.PriceID.String]; ok {
			v.Tier = tier
		}
	}
	if sub.TrialEndsAt.Valid {
		t := sub.TrialEndsAt.Time
		v.TrialEndsAt = &t
	}
	if sub.CurrentPeriodEnd.Valid {
		t := sub.CurrentPeriodEnd.Time
		v.CurrentPeriodEnd = &t
	}
	return v
}
