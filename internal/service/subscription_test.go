package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tavolo-app/api/internal/database"
	"github.com/tavolo-app/api/internal/enum"
	"github.com/tavolo-app/api/internal/payment"
)

// mockSubscriptionStore implements SubscriptionStore.
type mockSubscriptionStore struct {
	getFn    func(ctx context.Context, storeID uuid.UUID) (database.Subscription, error)
	upsertFn func(ctx context.Context, arg database.UpsertSubscriptionParams) (database.Subscription, error)
}

func (m *mockSubscriptionStore) GetSubscriptionByStore(ctx context.Context, storeID uuid.UUID) (database.Subscription, error) {
	return m.getFn(ctx, storeID)
}
func (m *mockSubscriptionStore) UpsertSubscription(ctx context.Context, arg database.UpsertSubscriptionParams) (database.Subscription, error) {
	return m.upsertFn(ctx, arg)
}

// fakeBilling implements payment.BillingProvider.
type fakeBilling struct {
	checkoutSession payment.Session
	portalSession   payment.Session
	err             error

	cancelCalls []bool // immediately flag per call
	resumeCalls int
	lastRef     string
	lastPriceID string
}

func (f *fakeBilling) CreatePlanCheckout(ctx context.Context, ref, priceID, returnURL string) (payment.Session, error) {
	f.lastRef, f.lastPriceID = ref, priceID
	return f.checkoutSession, f.err
}
func (f *fakeBilling) CreatePortalSession(ctx context.Context, ref, returnURL string) (payment.Session, error) {
	f.lastRef = ref
	return f.portalSession, f.err
}
func (f *fakeBilling) CancelSubscription(ctx context.Context, ref string, immediately bool) error {
	f.lastRef = ref
	f.cancelCalls = append(f.cancelCalls, immediately)
	return f.err
}
func (f *fakeBilling) ResumeSubscription(ctx context.Context, ref string) error {
	f.lastRef = ref
	f.resumeCalls++
	return f.err
}

func echoUpsert(ctx context.Context, arg database.UpsertSubscriptionParams) (database.Subscription, error) {
	return database.Subscription{
		ID:                uuid.New(),
		StoreID:           arg.StoreID,
		Status:            arg.Status,
		PriceID:           arg.PriceID,
		CancelAtPeriodEnd: arg.CancelAtPeriodEnd,
		TrialEndsAt:       arg.TrialEndsAt,
		CurrentPeriodEnd:  arg.CurrentPeriodEnd,
		ProviderReference: arg.ProviderReference,
	}, nil
}

func activeSubscription(storeID uuid.UUID) database.Subscription {
	return database.Subscription{
		ID:                uuid.New(),
		StoreID:           storeID,
		Status:            enum.SubscriptionStatusActive,
		PriceID:           text("price_growth_monthly"),
		ProviderReference: text("sub_123"),
	}
}

func TestSubscriptionGet_NeverSubscribed(t *testing.T) {
	store := &mockSubscriptionStore{
		getFn: func(ctx context.Context, storeID uuid.UUID) (database.Subscription, error) {
			return database.Subscription{}, pgx.ErrNoRows
		},
	}
	svc := NewSubscriptionService(store, &fakeBilling{}, "https://shop.example.com")

	view, err := svc.Get(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.Status != enum.SubscriptionStatusNone {
		t.Errorf("status: got %s, want NONE", view.Status)
	}
}

func TestSubscriptionGet_ResolvesTier(t *testing.T) {
	storeID := uuid.New()
	store := &mockSubscriptionStore{
		getFn: func(ctx context.Context, sid uuid.UUID) (database.Subscription, error) {
			return activeSubscription(storeID), nil
		},
	}
	svc := NewSubscriptionService(store, &fakeBilling{}, "https://shop.example.com")

	view, err := svc.Get(context.Background(), storeID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.Tier != enum.PlanTierGrowth {
		t.Errorf("tier: got %s, want GROWTH", view.Tier)
	}
}

func TestChangePlan_UnknownPrice(t *testing.T) {
	svc := NewSubscriptionService(&mockSubscriptionStore{}, &fakeBilling{}, "https://shop.example.com")
	if _, err := svc.ChangePlan(context.Background(), uuid.New(), "price_bogus"); !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}

func TestChangePlan_UsesProviderReference(t *testing.T) {
	storeID := uuid.New()
	billing := &fakeBilling{checkoutSession: payment.Session{ID: "cs_1", CheckoutURL: "https://billing.example.com/cs_1"}}
	store := &mockSubscriptionStore{
		getFn: func(ctx context.Context, sid uuid.UUID) (database.Subscription, error) {
			return activeSubscription(storeID), nil
		},
	}
	svc := NewSubscriptionService(store, billing, "https://shop.example.com")

	sess, err := svc.ChangePlan(context.Background(), storeID, "price_pro_monthly")
	if err != nil {
		t.Fatalf("ChangePlan: %v", err)
	}
	if sess.CheckoutURL != "https://billing.example.com/cs_1" {
		t.Errorf("checkout URL: got %s", sess.CheckoutURL)
	}
	if billing.lastRef != "sub_123" {
		t.Errorf("ref: got %s, want sub_123", billing.lastRef)
	}
	if billing.lastPriceID != "price_pro_monthly" {
		t.Errorf("price: got %s", billing.lastPriceID)
	}
}

func TestChangePlan_FirstSubscriptionFallsBackToStoreRef(t *testing.T) {
	storeID := uuid.New()
	billing := &fakeBilling{checkoutSession: payment.Session{ID: "cs_1"}}
	store := &mockSubscriptionStore{
		getFn: func(ctx context.Context, sid uuid.UUID) (database.Subscription, error) {
			return database.Subscription{}, pgx.ErrNoRows
		},
	}
	svc := NewSubscriptionService(store, billing, "https://shop.example.com")

	if _, err := svc.ChangePlan(context.Background(), storeID, "price_starter_monthly"); err != nil {
		t.Fatalf("ChangePlan: %v", err)
	}
	if billing.lastRef != storeID.String() {
		t.Errorf("ref: got %s, want store id", billing.lastRef)
	}
}

func TestCancel_Immediately(t *testing.T) {
	storeID := uuid.New()
	billing := &fakeBilling{}
	store := &mockSubscriptionStore{
		getFn: func(ctx context.Context, sid uuid.UUID) (database.Subscription, error) {
			return activeSubscription(storeID), nil
		},
		upsertFn: echoUpsert,
	}
	svc := NewSubscriptionService(store, billing, "https://shop.example.com")

	view, err := svc.Cancel(context.Background(), storeID, true)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if view.Status != enum.SubscriptionStatusCanceled {
		t.Errorf("status: got %s, want CANCELED", view.Status)
	}
	if len(billing.cancelCalls) != 1 || !billing.cancelCalls[0] {
		t.Errorf("cancel calls: %+v", billing.cancelCalls)
	}
}

func TestCancel_AtPeriodEnd(t *testing.T) {
	storeID := uuid.New()
	billing := &fakeBilling{}
	store := &mockSubscriptionStore{
		getFn: func(ctx context.Context, sid uuid.UUID) (database.Subscription, error) {
			return activeSubscription(storeID), nil
		},
		upsertFn: echoUpsert,
	}
	svc := NewSubscriptionService(store, billing, "https://shop.example.com")

	view, err := svc.Cancel(context.Background(), storeID, false)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if view.Status != enum.SubscriptionStatusActive {
		t.Errorf("status: got %s, want still ACTIVE", view.Status)
	}
	if !view.CancelAtPeriodEnd {
		t.Error("expected cancel_at_period_end flag")
	}
	if len(billing.cancelCalls) != 1 || billing.cancelCalls[0] {
		t.Errorf("cancel calls: %+v", billing.cancelCalls)
	}
}

func TestCancel_NoSubscription(t *testing.T) {
	store := &mockSubscriptionStore{
		getFn: func(ctx context.Context, sid uuid.UUID) (database.Subscription, error) {
			return database.Subscription{}, pgx.ErrNoRows
		},
	}
	svc := NewSubscriptionService(store, &fakeBilling{}, "https://shop.example.com")
	if _, err := svc.Cancel(context.Background(), uuid.New(), true); !errors.Is(err, ErrNoSubscription) {
		t.Fatalf("expected ErrNoSubscription, got %v", err)
	}
}

func TestResume_FromPaused(t *testing.T) {
	storeID := uuid.New()
	billing := &fakeBilling{}
	sub := activeSubscription(storeID)
	sub.Status = enum.SubscriptionStatusPaused
	store := &mockSubscriptionStore{
		getFn: func(ctx context.Context, sid uuid.UUID) (database.Subscription, error) {
			return sub, nil
		},
		upsertFn: echoUpsert,
	}
	svc := NewSubscriptionService(store, billing, "https://shop.example.com")

	view, err := svc.Resume(context.Background(), storeID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if view.Status != enum.SubscriptionStatusActive {
		t.Errorf("status: got %s, want ACTIVE", view.Status)
	}
	if billing.resumeCalls != 1 {
		t.Errorf("resume calls: got %d, want 1", billing.resumeCalls)
	}
}

func TestResume_ClearsPendingCancellation(t *testing.T) {
	storeID := uuid.New()
	sub := activeSubscription(storeID)
	sub.CancelAtPeriodEnd = true
	store := &mockSubscriptionStore{
		getFn: func(ctx context.Context, sid uuid.UUID) (database.Subscription, error) {
			return sub, nil
		},
		upsertFn: echoUpsert,
	}
	svc := NewSubscriptionService(store, &fakeBilling{}, "https://shop.example.com")

	view, err := svc.Resume(context.Background(), storeID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if view.CancelAtPeriodEnd {
		t.Error("cancel_at_period_end should be cleared")
	}
}

func TestResume_ActiveIsNotResumable(t *testing.T) {
	storeID := uuid.New()
	store := &mockSubscriptionStore{
		getFn: func(ctx context.Context, sid uuid.UUID) (database.Subscription, error) {
			return activeSubscription(storeID), nil
		},
	}
	svc := NewSubscriptionService(store, &fakeBilling{}, "https://shop.example.com")
	if _, err := svc.Resume(context.Background(), storeID); !errors.Is(err, ErrNotResumable) {
		t.Fatalf("expected ErrNotResumable, got %v", err)
	}
}

func TestApplyBillingUpdate(t *testing.T) {
	storeID := uuid.New()
	var upserted database.UpsertSubscriptionParams
	store := &mockSubscriptionStore{
		upsertFn: func(ctx context.Context, arg database.UpsertSubscriptionParams) (database.Subscription, error) {
			upserted = arg
			return echoUpsert(ctx, arg)
		},
	}
	svc := NewSubscriptionService(store, &fakeBilling{}, "https://shop.example.com")

	periodEnd := time.Now().Add(30 * 24 * time.Hour).UTC()
	view, err := svc.ApplyBillingUpdate(context.Background(), storeID, BillingUpdate{
		Status:            enum.SubscriptionStatusTrialing,
		PriceID:           "price_starter_monthly",
		CurrentPeriodEnd:  &periodEnd,
		ProviderReference: "sub_new",
	})
	if err != nil {
		t.Fatalf("ApplyBillingUpdate: %v", err)
	}
	if view.Status != enum.SubscriptionStatusTrialing {
		t.Errorf("status: got %s, want TRIALING", view.Status)
	}
	if view.Tier != enum.PlanTierStarter {
		t.Errorf("tier: got %s, want STARTER", view.Tier)
	}
	if !upserted.ProviderReference.Valid || upserted.ProviderReference.String != "sub_new" {
		t.Errorf("provider reference not recorded: %+v", upserted.ProviderReference)
	}
	if view.CurrentPeriodEnd == nil || !view.CurrentPeriodEnd.Equal(periodEnd) {
		t.Errorf("period end: got %v, want %v", view.CurrentPeriodEnd, periodEnd)
	}
}

func TestApplyBillingUpdate_RejectsUnknownStatus(t *testing.T) {
	svc := NewSubscriptionService(&mockSubscriptionStore{}, &fakeBilling{}, "https://shop.example.com")
	if _, err := svc.ApplyBillingUpdate(context.Background(), uuid.New(), BillingUpdate{Status: "LIMBO"}); err == nil {
		t.Fatal("expected error for unrecognized status")
	}
}
