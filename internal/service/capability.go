package service

import (
	"github.com/tavolo-app/api/internal/database"
	"github.com/tavolo-app/api/internal/enum"
)

// Capabilities is what a store can currently do, derived from its open flag
// and its payment account onboarding state. Derived fresh on every read, it
// is never persisted.
type Capabilities struct {
	IsOpen                 bool   `json:"is_open"`
	CanPlaceOrders         bool   `json:"can_place_orders"`
	CanAcceptOnlinePayment bool   `json:"can_accept_online_payment"`
	Provider               string `json:"provider,omitempty"`
}

// ResolveCapabilities derives a store's capabilities from its payment
// accounts. Provider is the account the store will charge through: the
// store's preferred provider when that account is eligible, otherwise any
// other eligible one. Empty when no account can take payments.
func ResolveCapabilities(store database.Store, accounts []database.PaymentAccount) Capabilities {
	caps := Capabilities{
		IsOpen:         store.IsOpen,
		CanPlaceOrders: store.IsOpen,
	}

	var fallback string
	for _, a := range accounts {
		if !accountEligible(a) {
			continue
		}
		if a.Provider == store.PreferredProvider {
			caps.Provider = a.Provider
		} else if fallback == "" {
			fallback = a.Provider
		}
	}
	if caps.Provider == "" {
		caps.Provider = fallback
	}
	caps.CanAcceptOnlinePayment = caps.Provider != ""
	return caps
}

// accountEligible reports whether one payment account can take charges. The
// two provider families onboard differently and expose different readiness
// signals.
func accountEligible(a database.PaymentAccount) bool {
	switch a.Provider {
	case enum.ProviderConnect:
		return a.CapabilitiesStatus.Valid && a.CapabilitiesStatus.String == enum.CapabilitiesStatusActive
	case enum.ProviderOAuth:
		return a.OnboardingStatus.Valid &&
			a.OnboardingStatus.String == enum.OnboardingStatusCompleted &&
			a.CanReceivePayments
	}
	return false
}
