package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tavolo-app/api/internal/database"
	"github.com/tavolo-app/api/internal/enum"
)

func text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: true}
}

func activeConnectAccount(storeID uuid.UUID) database.PaymentAccount {
	return database.PaymentAccount{
		StoreID:            storeID,
		Provider:           enum.ProviderConnect,
		AccountID:          text("acct_123"),
		OnboardingComplete: true,
		CapabilitiesStatus: text(enum.CapabilitiesStatusActive),
	}
}

func activeOAuthAccount(storeID uuid.UUID) database.PaymentAccount {
	return database.PaymentAccount{
		StoreID:            storeID,
		Provider:           enum.ProviderOAuth,
		OrganizationID:     text("org_456"),
		OnboardingStatus:   text(enum.OnboardingStatusCompleted),
		CanReceivePayments: true,
	}
}

func TestResolveCapabilities_ConnectActive(t *testing.T) {
	storeID := uuid.New()
	store := database.Store{ID: storeID, IsOpen: true, PreferredProvider: enum.ProviderConnect}

	caps := ResolveCapabilities(store, []database.PaymentAccount{activeConnectAccount(storeID)})

	if !caps.CanAcceptOnlinePayment {
		t.Error("expected online payment capability")
	}
	if caps.Provider != enum.ProviderConnect {
		t.Errorf("provider: got %s, want connect", caps.Provider)
	}
	if !caps.CanPlaceOrders {
		t.Error("open store should accept orders")
	}
}

func TestResolveCapabilities_ConnectPendingIsNotEligible(t *testing.T) {
	storeID := uuid.New()
	store := database.Store{ID: storeID, IsOpen: true, PreferredProvider: enum.ProviderConnect}
	acct := activeConnectAccount(storeID)
	acct.CapabilitiesStatus = text(enum.CapabilitiesStatusPending)

	caps := ResolveCapabilities(store, []database.PaymentAccount{acct})

	if caps.CanAcceptOnlinePayment {
		t.Error("pending capabilities must not enable online payment")
	}
	if caps.Provider != "" {
		t.Errorf("provider: got %s, want empty", caps.Provider)
	}
}

func TestResolveCapabilities_OAuthCompleted(t *testing.T) {
	storeID := uuid.New()
	store := database.Store{ID: storeID, IsOpen: true, PreferredProvider: enum.ProviderOAuth}

	caps := ResolveCapabilities(store, []database.PaymentAccount{activeOAuthAccount(storeID)})

	if !caps.CanAcceptOnlinePayment {
		t.Error("expected online payment capability")
	}
	if caps.Provider != enum.ProviderOAuth {
		t.Errorf("provider: got %s, want oauth", caps.Provider)
	}
}

func TestResolveCapabilities_OAuthCompletedButPaymentsBlocked(t *testing.T) {
	storeID := uuid.New()
	store := database.Store{ID: storeID, IsOpen: true, PreferredProvider: enum.ProviderOAuth}
	acct := activeOAuthAccount(storeID)
	acct.CanReceivePayments = false

	caps := ResolveCapabilities(store, []database.PaymentAccount{acct})

	if caps.CanAcceptOnlinePayment {
		t.Error("blocked payments must not enable online payment")
	}
}

func TestResolveCapabilities_PreferredWinsWhenBothEligible(t *testing.T) {
	storeID := uuid.New()
	store := database.Store{ID: storeID, IsOpen: true, PreferredProvider: enum.ProviderOAuth}
	accounts := []database.PaymentAccount{
		activeConnectAccount(storeID),
		activeOAuthAccount(storeID),
	}

	caps := ResolveCapabilities(store, accounts)

	if caps.Provider != enum.ProviderOAuth {
		t.Errorf("provider: got %s, want preferred oauth", caps.Provider)
	}
}

func TestResolveCapabilities_FallbackWhenPreferredIneligible(t *testing.T) {
	storeID := uuid.New()
	store := database.Store{ID: storeID, IsOpen: true, PreferredProvider: enum.ProviderConnect}
	connect := activeConnectAccount(storeID)
	connect.CapabilitiesStatus = text(enum.CapabilitiesStatusInactive)
	accounts := []database.PaymentAccount{connect, activeOAuthAccount(storeID)}

	caps := ResolveCapabilities(store, accounts)

	if caps.Provider != enum.ProviderOAuth {
		t.Errorf("provider: got %s, want fallback oauth", caps.Provider)
	}
	if !caps.CanAcceptOnlinePayment {
		t.Error("expected online payment capability via fallback")
	}
}

func TestResolveCapabilities_NoAccounts(t *testing.T) {
	storeID := uuid.New()
	store := database.Store{ID: storeID, IsOpen: true, PreferredProvider: enum.ProviderConnect}

	caps := ResolveCapabilities(store, nil)

	if caps.CanAcceptOnlinePayment {
		t.Error("no accounts must not enable online payment")
	}
}

func TestResolveCapabilities_ClosedStore(t *testing.T) {
	storeID := uuid.New()
	store := database.Store{ID: storeID, IsOpen: false, PreferredProvider: enum.ProviderConnect}

	caps := ResolveCapabilities(store, []database.PaymentAccount{activeConnectAccount(storeID)})

	if caps.CanPlaceOrders {
		t.Error("closed store must not accept orders")
	}
	if caps.IsOpen {
		t.Error("closed store reported open")
	}
	// Payment readiness is independent of opening hours.
	if !caps.CanAcceptOnlinePayment {
		t.Error("closed store should still resolve payment capability")
	}
}
