package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tavolo-app/api/internal/database"
	"github.com/tavolo-app/api/internal/enum"
	"github.com/tavolo-app/api/internal/handler"
	"github.com/tavolo-app/api/internal/service"
	"github.com/tavolo-app/api/internal/ws"
)

// --- Mocks ---

type mockMerchantStore struct {
	getStoreFn                     func(ctx context.Context, id uuid.UUID) (database.Store, error)
	updateStorePreferredProviderFn func(ctx context.Context, id uuid.UUID, provider string) (database.Store, error)
	listPaymentAccountsByStoreFn   func(ctx context.Context, storeID uuid.UUID) ([]database.PaymentAccount, error)
	upsertPaymentAccountFn         func(ctx context.Context, arg database.UpsertPaymentAccountParams) (database.PaymentAccount, error)
	listOrdersByStoreFn            func(ctx context.Context, arg database.ListOrdersByStoreParams) ([]database.Order, error)
}

func (m *mockMerchantStore) GetStore(ctx context.Context, id uuid.UUID) (database.Store, error) {
	return m.getStoreFn(ctx, id)
}

func (m *mockMerchantStore) UpdateStorePreferredProvider(ctx context.Context, id uuid.UUID, provider string) (database.Store, error) {
	return m.updateStorePreferredProviderFn(ctx, id, provider)
}

func (m *mockMerchantStore) ListPaymentAccountsByStore(ctx context.Context, storeID uuid.UUID) ([]database.PaymentAccount, error) {
	return m.listPaymentAccountsByStoreFn(ctx, storeID)
}

func (m *mockMerchantStore) UpsertPaymentAccount(ctx context.Context, arg database.UpsertPaymentAccountParams) (database.PaymentAccount, error) {
	return m.upsertPaymentAccountFn(ctx, arg)
}

func (m *mockMerchantStore) ListOrdersByStore(ctx context.Context, arg database.ListOrdersByStoreParams) ([]database.Order, error) {
	return m.listOrdersByStoreFn(ctx, arg)
}

type mockOrderTransitioner struct {
	updateStatusFn func(ctx context.Context, storeID, orderID uuid.UUID, toStatus string) (database.Order, error)
}

func (m *mockOrderTransitioner) UpdateStatus(ctx context.Context, storeID, orderID uuid.UUID, toStatus string) (database.Order, error) {
	return m.updateStatusFn(ctx, storeID, orderID, toStatus)
}

type mockPaymentSettler struct {
	markPayAtCounterFn func(ctx context.Context, storeID, orderID uuid.UUID) (database.Order, error)
	refundFn           func(ctx context.Context, storeID, orderID uuid.UUID) (database.Order, error)
}

func (m *mockPaymentSettler) MarkPayAtCounter(ctx context.Context, storeID, orderID uuid.UUID) (database.Order, error) {
	return m.markPayAtCounterFn(ctx, storeID, orderID)
}

func (m *mockPaymentSettler) Refund(ctx context.Context, storeID, orderID uuid.UUID) (database.Order, error) {
	return m.refundFn(ctx, storeID, orderID)
}

type recordingHub struct {
	mu     sync.Mutex
	events []ws.Event
}

func (h *recordingHub) BroadcastToStore(_ uuid.UUID, event ws.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

// --- Helpers ---

type merchantFixture struct {
	store    *mockMerchantStore
	orders   *mockOrderTransitioner
	checkout *mockPaymentSettler
	hub      *recordingHub
	router   *chi.Mux
}

func setupMerchantRouter() *merchantFixture {
	f := &merchantFixture{
		store:    &mockMerchantStore{},
		orders:   &mockOrderTransitioner{},
		checkout: &mockPaymentSettler{},
		hub:      &recordingHub{},
	}
	h := handler.NewMerchantHandler(f.store, f.orders, f.checkout, f.hub)
	r := chi.NewRouter()
	r.Route("/console/stores/{sid}", h.RegisterRoutes)
	f.router = r
	return f
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// --- Capabilities / accounts tests ---

func TestMerchantGetCapabilities(t *testing.T) {
	f := setupMerchantRouter()
	storeID := uuid.New()
	f.store.getStoreFn = func(_ context.Context, id uuid.UUID) (database.Store, error) {
		return database.Store{ID: storeID, IsOpen: true, PreferredProvider: enum.ProviderOAuth}, nil
	}
	f.store.listPaymentAccountsByStoreFn = func(_ context.Context, _ uuid.UUID) ([]database.PaymentAccount, error) {
		return []database.PaymentAccount{{
			Provider:           enum.ProviderOAuth,
			OnboardingStatus:   pgtype.Text{String: enum.OnboardingStatusCompleted, Valid: true},
			CanReceivePayments: true,
		}}, nil
	}

	rr := getJSON(t, f.router, "/console/stores/"+storeID.String()+"/capabilities")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	if resp["can_accept_online_payment"] != true || resp["provider"] != enum.ProviderOAuth {
		t.Errorf("unexpected capabilities: %v", resp)
	}
}

func TestMerchantGetCapabilities_StoreNotFound(t *testing.T) {
	f := setupMerchantRouter()
	f.store.getStoreFn = func(_ context.Context, id uuid.UUID) (database.Store, error) {
		return database.Store{}, pgx.ErrNoRows
	}

	rr := getJSON(t, f.router, "/console/stores/"+uuid.NewString()+"/capabilities")

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestUpsertPaymentAccount(t *testing.T) {
	f := setupMerchantRouter()
	storeID := uuid.New()
	var captured database.UpsertPaymentAccountParams
	f.store.upsertPaymentAccountFn = func(_ context.Context, arg database.UpsertPaymentAccountParams) (database.PaymentAccount, error) {
		captured = arg
		return database.PaymentAccount{
			StoreID:            arg.StoreID,
			Provider:           arg.Provider,
			AccountID:          arg.AccountID,
			CapabilitiesStatus: arg.CapabilitiesStatus,
		}, nil
	}

	rr := doJSON(t, f.router, "PUT", "/console/stores/"+storeID.String()+"/payment-accounts/connect", map[string]interface{}{
		"account_id":          "acct_123",
		"capabilities_status": enum.CapabilitiesStatusActive,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if captured.StoreID != storeID || captured.Provider != enum.ProviderConnect {
		t.Errorf("unexpected params: %+v", captured)
	}
	if !captured.AccountID.Valid || captured.AccountID.String != "acct_123" {
		t.Errorf("account id: got %+v", captured.AccountID)
	}
	if decodeResponse(t, rr)["account_id"] != "acct_123" {
		t.Error("expected account_id in response")
	}
}

func TestUpsertPaymentAccount_UnknownProvider(t *testing.T) {
	f := setupMerchantRouter()

	rr := doJSON(t, f.router, "PUT", "/console/stores/"+uuid.NewString()+"/payment-accounts/acme", map[string]interface{}{})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdatePaymentPolicy(t *testing.T) {
	f := setupMerchantRouter()
	storeID := uuid.New()
	f.store.updateStorePreferredProviderFn = func(_ context.Context, id uuid.UUID, provider string) (database.Store, error) {
		return database.Store{ID: id, PreferredProvider: provider}, nil
	}

	rr := doJSON(t, f.router, "PUT", "/console/stores/"+storeID.String()+"/payment-policy", map[string]string{
		"preferred_provider": enum.ProviderOAuth,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if decodeResponse(t, rr)["preferred_provider"] != enum.ProviderOAuth {
		t.Error("expected updated preferred_provider")
	}
}

func TestUpdatePaymentPolicy_UnknownProvider(t *testing.T) {
	f := setupMerchantRouter()

	rr := doJSON(t, f.router, "PUT", "/console/stores/"+uuid.NewString()+"/payment-policy", map[string]string{
		"preferred_provider": "acme",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Order board tests ---

func TestMerchantListOrders_StatusFilter(t *testing.T) {
	f := setupMerchantRouter()
	storeID := uuid.New()
	var captured database.ListOrdersByStoreParams
	f.store.listOrdersByStoreFn = func(_ context.Context, arg database.ListOrdersByStoreParams) ([]database.Order, error) {
		captured = arg
		return []database.Order{{
			ID:          uuid.New(),
			StoreID:     storeID,
			OrderNumber: "TVL-003",
			Status:      enum.OrderStatusPreparing,
		}}, nil
	}

	rr := getJSON(t, f.router, "/console/stores/"+storeID.String()+"/orders?status=PREPARING&limit=10")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if captured.Status != enum.OrderStatusPreparing || captured.Limit != 10 {
		t.Errorf("unexpected params: %+v", captured)
	}
	orders := decodeListResponse(t, rr)
	if len(orders) != 1 || orders[0]["order_number"] != "TVL-003" {
		t.Errorf("unexpected orders payload: %v", orders)
	}
}

func TestMerchantListOrders_InvalidStatus(t *testing.T) {
	f := setupMerchantRouter()

	rr := getJSON(t, f.router, "/console/stores/"+uuid.NewString()+"/orders?status=SIMMERING")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestMerchantUpdateOrderStatus_BroadcastsChange(t *testing.T) {
	f := setupMerchantRouter()
	storeID := uuid.New()
	orderID := uuid.New()
	f.orders.updateStatusFn = func(_ context.Context, sid, oid uuid.UUID, toStatus string) (database.Order, error) {
		return database.Order{
			ID:          oid,
			StoreID:     sid,
			OrderNumber: "TVL-003",
			Status:      toStatus,
		}, nil
	}

	rr := doJSON(t, f.router, "PATCH", "/console/stores/"+storeID.String()+"/orders/"+orderID.String()+"/status", map[string]string{
		"status": enum.OrderStatusPreparing,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if decodeResponse(t, rr)["status"] != enum.OrderStatusPreparing {
		t.Error("expected updated status in response")
	}
	if len(f.hub.events) != 1 || f.hub.events[0].Type != "order.status_updated" {
		t.Fatalf("expected one order.status_updated event, got %v", f.hub.events)
	}
}

func TestMerchantUpdateOrderStatus_InvalidTransition(t *testing.T) {
	f := setupMerchantRouter()
	f.orders.updateStatusFn = func(_ context.Context, sid, oid uuid.UUID, toStatus string) (database.Order, error) {
		return database.Order{}, service.ErrInvalidTransition
	}

	rr := doJSON(t, f.router, "PATCH", "/console/stores/"+uuid.NewString()+"/orders/"+uuid.NewString()+"/status", map[string]string{
		"status": enum.OrderStatusReady,
	})

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
	if len(f.hub.events) != 0 {
		t.Error("no event must be broadcast on a failed transition")
	}
}

func TestMerchantUpdateOrderStatus_UnknownStatus(t *testing.T) {
	f := setupMerchantRouter()

	rr := doJSON(t, f.router, "PATCH", "/console/stores/"+uuid.NewString()+"/orders/"+uuid.NewString()+"/status", map[string]string{
		"status": "SIMMERING",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Settlement tests ---

func TestPayAtCounter(t *testing.T) {
	f := setupMerchantRouter()
	storeID := uuid.New()
	orderID := uuid.New()
	f.checkout.markPayAtCounterFn = func(_ context.Context, sid, oid uuid.UUID) (database.Order, error) {
		return database.Order{
			ID:            oid,
			StoreID:       sid,
			Status:        enum.OrderStatusConfirmed,
			PaymentStatus: enum.PaymentStatusPayAtCounter,
		}, nil
	}

	rr := postJSON(t, f.router, "/console/stores/"+storeID.String()+"/orders/"+orderID.String()+"/pay-at-counter", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	if resp["payment_status"] != enum.PaymentStatusPayAtCounter || resp["status"] != enum.OrderStatusConfirmed {
		t.Errorf("unexpected payload: %v", resp)
	}
}

func TestPayAtCounter_AlreadySettled(t *testing.T) {
	f := setupMerchantRouter()
	f.checkout.markPayAtCounterFn = func(_ context.Context, sid, oid uuid.UUID) (database.Order, error) {
		return database.Order{}, service.ErrAlreadyPaid
	}

	rr := postJSON(t, f.router, "/console/stores/"+uuid.NewString()+"/orders/"+uuid.NewString()+"/pay-at-counter", nil)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestRefund(t *testing.T) {
	f := setupMerchantRouter()
	storeID := uuid.New()
	orderID := uuid.New()
	f.checkout.refundFn = func(_ context.Context, sid, oid uuid.UUID) (database.Order, error) {
		return database.Order{
			ID:            oid,
			StoreID:       sid,
			PaymentStatus: enum.PaymentStatusRefunded,
		}, nil
	}

	rr := postJSON(t, f.router, "/console/stores/"+storeID.String()+"/orders/"+orderID.String()+"/refund", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if decodeResponse(t, rr)["payment_status"] != enum.PaymentStatusRefunded {
		t.Error("expected REFUNDED payment status")
	}
}

func TestRefund_NotPaid(t *testing.T) {
	f := setupMerchantRouter()
	f.checkout.refundFn = func(_ context.Context, sid, oid uuid.UUID) (database.Order, error) {
		return database.Order{}, service.ErrNotRefundable
	}

	rr := postJSON(t, f.router, "/console/stores/"+uuid.NewString()+"/orders/"+uuid.NewString()+"/refund", nil)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}
