package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tavolo-app/api/internal/database"
	"github.com/tavolo-app/api/internal/enum"
	"github.com/tavolo-app/api/internal/payment"
	"github.com/tavolo-app/api/internal/ws"
)

// Errors returned by the checkout service.
var (
	ErrCapabilityUnavailable = errors.New("store cannot accept online payments")
	ErrOrderNotPayable       = errors.New("order is not awaiting payment")
	ErrAlreadyPaid           = errors.New("order payment is already settled")
	ErrNoPaymentSession      = errors.New("order has no payment session")
	ErrNotRefundable         = errors.New("only paid orders can be refunded")
	ErrUnknownProvider       = errors.New("payment provider not configured")
)

// CheckoutStore defines the DB methods needed by checkout flows.
// Satisfied by *database.Queries (and its WithTx variant).
type CheckoutStore interface {
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
	ListPaymentAccountsByStore(ctx context.Context, storeID uuid.UUID) ([]database.PaymentAccount, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	GetOrderByPaymentReference(ctx context.Context, arg database.GetOrderByPaymentReferenceParams) (database.Order, error)
	SetOrderPaymentSession(ctx context.Context, arg database.SetOrderPaymentSessionParams) (database.Order, error)
	ResetOrderPaymentSession(ctx context.Context, arg database.SetOrderPaymentSessionParams) (database.Order, error)
	UpdateOrderPaymentStatus(ctx context.Context, arg database.UpdateOrderPaymentStatusParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
}

// NewCheckoutStore creates a CheckoutStore from a DBTX (pool or tx).
type NewCheckoutStore func(db database.DBTX) CheckoutStore

// Broadcaster pushes events to merchant dashboards. Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToStore(storeID uuid.UUID, event ws.Event)
}

// SessionResult is an opened (or replayed) payment session together with the
// order it pays for. Exactly one of CheckoutURL or ClientSecret is set,
// depending on the provider's flow kind.
type SessionResult struct {
	Order        database.Order
	Provider     string
	Kind         payment.FlowKind
	SessionID    string
	CheckoutURL  string
	ClientSecret string
}

// statusRank orders payment statuses by progress. A status only ever moves
// to a strictly higher rank, whichever path reports it first (webhook,
// polling, or the redirect return). Equal or lower rank reports are replays
// or late arrivals and are dropped.
var statusRank = map[string]int{
	enum.PaymentStatusPending:              0,
	enum.PaymentStatusAwaitingConfirmation: 1,
	enum.PaymentStatusFailed:               2,
	enum.PaymentStatusExpired:              2,
	enum.PaymentStatusPayAtCounter:         3,
	enum.PaymentStatusPaid:                 3,
	enum.PaymentStatusRefunded:             4,
}

// CheckoutService drives payment sessions and reconciles provider-reported
// payment statuses onto orders.
type CheckoutService struct {
	store    CheckoutStore
	pool     TxBeginner
	newStore NewCheckoutStore

	providers map[string]payment.Provider
	hub       Broadcaster

	publicBaseURL string
}

// NewCheckoutService creates a new CheckoutService. hub may be nil.
func NewCheckoutService(store CheckoutStore, pool TxBeginner, newStore NewCheckoutStore,
	providers map[string]payment.Provider, hub Broadcaster, publicBaseURL string) *CheckoutService {
	return &CheckoutService{
		store:         store,
		pool:          pool,
		newStore:      newStore,
		providers:     providers,
		hub:           hub,
		publicBaseURL: publicBaseURL,
	}
}

// OpenSession opens a payment session for an order, or replays the one it
// already has. Capability gating happens before any provider call, so an
// unonboarded store fails fast without side effects. A FAILED or EXPIRED
// session is replaced by a fresh one; anything past that is final.
func (s *CheckoutService) OpenSession(ctx context.Context, storeID, orderID uuid.UUID) (*SessionResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{ID: orderID, StoreID: storeID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	switch order.PaymentStatus {
	case enum.PaymentStatusPaid, enum.PaymentStatusPayAtCounter, enum.PaymentStatusRefunded:
		return nil, ErrAlreadyPaid
	}
	if order.Status != enum.OrderStatusAwaitingPayment {
		return nil, ErrOrderNotPayable
	}

	venue, err := store.GetStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("get store: %w", err)
	}
	accounts, err := store.ListPaymentAccountsByStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("list payment accounts: %w", err)
	}
	caps := ResolveCapabilities(venue, accounts)
	if !caps.CanAcceptOnlinePayment {
		return nil, ErrCapabilityUnavailable
	}

	providerName := caps.Provider
	restarting := order.PaymentStatus == enum.PaymentStatusFailed || order.PaymentStatus == enum.PaymentStatusExpired
	if order.PaymentReference.Valid && !restarting {
		// A live session exists; replay it through the same provider even
		// if the store's preference changed since.
		providerName = order.PaymentProvider.String
	}
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, ErrUnknownProvider
	}

	// The provider dedupes on the idempotency key, so replaying a live
	// session returns the same one. A restart gets a fresh key on purpose.
	idempotencyKey := order.ID.String()
	if restarting {
		idempotencyKey = uuid.NewString()
	}

	sess, err := provider.CreateSession(ctx, payment.CreateSessionParams{
		OrderID:        order.ID,
		AmountCents:    order.TotalAmount,
		Currency:       "EUR",
		Description:    fmt.Sprintf("Order %s at %s", order.OrderNumber, venue.Name),
		ReturnURL:      fmt.Sprintf("%s/stores/%s/orders/%s/return", s.publicBaseURL, storeID, order.ID),
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment session: %w", err)
	}

	bind := database.SetOrderPaymentSessionParams{
		ID:               order.ID,
		PaymentProvider:  providerName,
		PaymentReference: sess.ID,
		PaymentStatus:    enum.PaymentStatusPending,
	}
	switch {
	case !order.PaymentReference.Valid:
		order, err = store.SetOrderPaymentSession(ctx, bind)
	case restarting:
		order, err = store.ResetOrderPaymentSession(ctx, bind)
	default:
		// Replay of a live session, nothing to rebind.
	}
	if err != nil {
		return nil, fmt.Errorf("bind payment session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &SessionResult{
		Order:        order,
		Provider:     providerName,
		Kind:         provider.Kind(),
		SessionID:    sess.ID,
		CheckoutURL:  sess.CheckoutURL,
		ClientSecret: sess.ClientSecret,
	}, nil
}

// Reconcile fetches the order's payment status from its provider and merges
// it in. This is the single reconciliation path shared by client polling,
// the redirect return, and webhooks. On payment.ErrStatusUnknown the stored
// order is returned alongside the error so the caller can decide whether to
// serve stale state or fail.
func (s *CheckoutService) Reconcile(ctx context.Context, storeID, orderID uuid.UUID) (database.Order, error) {
	order, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, StoreID: storeID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	return s.reconcileOrder(ctx, order)
}

// HandleWebhookEvent reconciles the order a webhook delivery refers to. The
// status is fetched back from the provider API rather than trusted from the
// delivery payload.
func (s *CheckoutService) HandleWebhookEvent(ctx context.Context, providerName, sessionID string) (database.Order, error) {
	order, err := s.store.GetOrderByPaymentReference(ctx, database.GetOrderByPaymentReferenceParams{
		PaymentProvider:  providerName,
		PaymentReference: sessionID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order by payment reference: %w", err)
	}
	return s.reconcileOrder(ctx, order)
}

func (s *CheckoutService) reconcileOrder(ctx context.Context, order database.Order) (database.Order, error) {
	if !order.PaymentReference.Valid {
		return order, nil
	}
	if statusRank[order.PaymentStatus] >= statusRank[enum.PaymentStatusPaid] {
		// Already settled, nothing a provider report could add except a
		// refund, which goes through Refund.
		return order, nil
	}

	provider, ok := s.providers[order.PaymentProvider.String]
	if !ok {
		return order, ErrUnknownProvider
	}

	status, err := provider.GetStatus(ctx, order.PaymentReference.String)
	if err != nil {
		return order, fmt.Errorf("get payment status: %w", err)
	}
	return s.ApplyProviderStatus(ctx, order, status)
}

// ApplyProviderStatus merges a provider-reported payment status into the
// order, forward-only. The write is a compare-and-set on the status the
// order was read at; a lost race re-reads and re-merges, so two concurrent
// reporters converge instead of flip-flopping. A payment turning PAID also
// confirms the order.
func (s *CheckoutService) ApplyProviderStatus(ctx context.Context, order database.Order, status string) (database.Order, error) {
	newRank, ok := statusRank[status]
	if !ok {
		return order, fmt.Errorf("unrecognized payment status %q", status)
	}

	for attempt := 0; attempt < 3; attempt++ {
		if newRank <= statusRank[order.PaymentStatus] {
			return order, nil
		}

		updated, err := s.store.UpdateOrderPaymentStatus(ctx, database.UpdateOrderPaymentStatusParams{
			ID:            order.ID,
			PaymentStatus: status,
			FromStatus:    order.PaymentStatus,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Someone else moved the status; re-read and re-merge.
				order, err = s.store.GetOrder(ctx, database.GetOrderParams{ID: order.ID, StoreID: order.StoreID})
				if err != nil {
					return database.Order{}, fmt.Errorf("reload order: %w", err)
				}
				continue
			}
			return database.Order{}, fmt.Errorf("update payment status: %w", err)
		}
		order = updated

		if status == enum.PaymentStatusPaid {
			order = s.confirmOrder(ctx, order)
		}
		s.broadcast(order.StoreID, "order.payment_updated", map[string]any{
			"order_id":       order.ID,
			"order_number":   order.OrderNumber,
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
		})
		return order, nil
	}
	return order, nil
}

// confirmOrder moves a freshly paid order into the kitchen queue. Losing the
// compare-and-set here means the order was already confirmed or cancelled;
// either way the stored state wins.
func (s *CheckoutService) confirmOrder(ctx context.Context, order database.Order) database.Order {
	updated, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         order.ID,
		StoreID:    order.StoreID,
		Status:     enum.OrderStatusConfirmed,
		FromStatus: enum.OrderStatusAwaitingPayment,
	})
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("ERROR: confirm order %s: %v", order.ID, err)
		}
		return order
	}
	return updated
}

// MarkPayAtCounter settles an order outside the online flow. Only allowed
// while no online payment has succeeded; the order is confirmed immediately.
func (s *CheckoutService) MarkPayAtCounter(ctx context.Context, storeID, orderID uuid.UUID) (database.Order, error) {
	order, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, StoreID: storeID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	switch order.PaymentStatus {
	case enum.PaymentStatusPaid, enum.PaymentStatusPayAtCounter, enum.PaymentStatusRefunded:
		return database.Order{}, ErrAlreadyPaid
	}
	if order.Status != enum.OrderStatusAwaitingPayment {
		return database.Order{}, ErrOrderNotPayable
	}

	updated, err := s.store.UpdateOrderPaymentStatus(ctx, database.UpdateOrderPaymentStatusParams{
		ID:            order.ID,
		PaymentStatus: enum.PaymentStatusPayAtCounter,
		FromStatus:    order.PaymentStatus,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrAlreadyPaid
		}
		return database.Order{}, fmt.Errorf("update payment status: %w", err)
	}
	updated = s.confirmOrder(ctx, updated)
	s.broadcast(updated.StoreID, "order.payment_updated", map[string]any{
		"order_id":       updated.ID,
		"order_number":   updated.OrderNumber,
		"status":         updated.Status,
		"payment_status": updated.PaymentStatus,
	})
	return updated, nil
}

// Refund reverses a paid order's charge at the provider and records it.
func (s *CheckoutService) Refund(ctx context.Context, storeID, orderID uuid.UUID) (database.Order, error) {
	order, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, StoreID: storeID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.PaymentStatus != enum.PaymentStatusPaid {
		return database.Order{}, ErrNotRefundable
	}
	if !order.PaymentReference.Valid {
		return database.Order{}, ErrNoPaymentSession
	}

	provider, ok := s.providers[order.PaymentProvider.String]
	if !ok {
		return database.Order{}, ErrUnknownProvider
	}
	if err := provider.Refund(ctx, order.PaymentReference.String); err != nil {
		return database.Order{}, fmt.Errorf("refund: %w", err)
	}

	return s.ApplyProviderStatus(ctx, order, enum.PaymentStatusRefunded)
}

func (s *CheckoutService) broadcast(storeID uuid.UUID, eventType string, payload map[string]any) {
	if s.hub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	s.hub.BroadcastToStore(storeID, ws.Event{Type: eventType, Payload: data})
}
