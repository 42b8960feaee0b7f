package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tavolo-app/api/internal/cart"
	"github.com/tavolo-app/api/internal/database"
	"github.com/tavolo-app/api/internal/enum"
	"github.com/tavolo-app/api/internal/menu"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems          = errors.New("items are required")
	ErrInvalidOrderType    = errors.New("invalid order_type")
	ErrMissingCustomerName = errors.New("customer_name is required")
	ErrMissingTimeSlot     = errors.New("scheduled_pickup_time is required for delivery orders")
	ErrInvalidQuantity     = errors.New("quantity must be > 0")
	ErrMissingIdempotency  = errors.New("idempotency_key is required")
	ErrStoreClosed         = errors.New("store is not accepting orders")
	ErrStoreNotFound       = errors.New("store not found")
	ErrItemNotFound        = errors.New("menu item not found in store")
	ErrItemUnavailable     = errors.New("menu item is unavailable")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrInvalidItemID       = errors.New("invalid item_id")
	ErrInvalidChoiceID     = errors.New("invalid choice_id")
	ErrInvalidGroupID      = errors.New("invalid group_id")
	ErrInvalidPickupTime   = errors.New("invalid scheduled_pickup_time")

	// ErrIdempotencyConflict means the key was reused with a different
	// payload. Replays must be byte-for-byte retries of the same request.
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different order")
)

// ValidationError carries the per-group failures of a rejected item so the
// client can surface them next to the offending option groups.
type ValidationError struct {
	ItemID uuid.UUID
	Result menu.ValidationResult
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("item %s: %d option group constraint(s) failed", e.ItemID, len(e.Result.Failures))
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create and read orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
	GetNextOrderNumber(ctx context.Context, storeID uuid.UUID) (int32, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	ListOptionGroupsByItem(ctx context.Context, itemID uuid.UUID) ([]database.OptionGroup, error)
	ListChoicesByGroup(ctx context.Context, groupID uuid.UUID) ([]database.OptionChoice, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, arg database.GetOrderByIdempotencyKeyParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	CreateOrderItemOption(ctx context.Context, arg database.CreateOrderItemOptionParams) (database.OrderItemOption, error)
	ListOrderItemOptionsByItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemOption, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	StoreID             uuid.UUID
	OrderType           string
	CustomerName        string
	ScheduledPickupTime string // RFC3339, optional
	IdempotencyKey      string
	Items               []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single configured item in the order.
type CreateOrderItemRequest struct {
	ItemID   string
	Quantity int32
	Options  []CreateOrderOptionRequest
}

// CreateOrderOptionRequest is one selected choice. Quantity is only
// meaningful for quantity_select groups; it defaults to 1 elsewhere.
type CreateOrderOptionRequest struct {
	GroupID  string
	ChoiceID string
	Quantity int32
}

// CreateOrderResult is the full created order with its frozen lines.
// Replayed is true when the idempotency key matched an existing order and
// no new order was created.
type CreateOrderResult struct {
	Order    database.Order
	Items    []OrderItemResult
	Replayed bool
}

// OrderItemResult is a line with its frozen option choices.
type OrderItemResult struct {
	Item    database.OrderItem
	Options []database.OrderItemOption
}

// OrderService handles order business logic. store is pool-backed and used
// for reads; writes that must be atomic go through newStore on a fresh tx.
type OrderService struct {
	store    OrderStore
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(store OrderStore, pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{store: store, pool: pool, newStore: newStore}
}

// optionInfo holds a frozen option row to insert under an order item.
type optionInfo struct {
	groupID    uuid.UUID
	groupName  string
	choiceID   uuid.UUID
	choiceName string
	price      int64
	quantity   int32
}

// processedItem holds a prepared order line and its options.
type processedItem struct {
	params  database.CreateOrderItemParams
	options []optionInfo
}

// CreateOrder validates, re-prices everything server-side, and creates an
// order atomically. Client-supplied prices are never trusted; the catalog is
// the only pricing source. The idempotency key makes retries safe: a replay
// returns the previously created order unchanged.
//
// Retries up to maxOrderNumberRetries times on order_number unique constraint
// violations (concurrent transactions can read the same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if req.IdempotencyKey == "" {
		return nil, ErrMissingIdempotency
	}
	if !isValidOrderType(req.OrderType) {
		return nil, ErrInvalidOrderType
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return nil, ErrMissingCustomerName
	}
	// Delivery runs on booked slots; the other types default to ASAP.
	if req.OrderType == enum.OrderTypeDelivery && req.ScheduledPickupTime == "" {
		return nil, ErrMissingTimeSlot
	}

	var pickupTime pgtype.Timestamptz
	if req.ScheduledPickupTime != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledPickupTime)
		if err != nil {
			return nil, ErrInvalidPickupTime
		}
		pickupTime = pgtype.Timestamptz{Time: t, Valid: true}
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req, pickupTime)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func isValidOrderType(t string) bool {
	switch t {
	case enum.OrderTypeDineIn, enum.OrderTypeTakeaway, enum.OrderTypeDelivery:
		return true
	}
	return false
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_store_id_order_number_key"
	}
	return false
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest, pickupTime pgtype.Timestamptz) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	venue, err := store.GetStore(ctx, req.StoreID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("get store: %w", err)
	}
	if !venue.IsOpen {
		return nil, ErrStoreClosed
	}

	// --- Process items: validate selections + re-price from the catalog ---
	var orderTotal int64
	var items []processedItem

	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}

		itemID, err := uuid.Parse(item.ItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidItemID)
		}

		menuItem, err := store.GetMenuItem(ctx, database.GetMenuItemParams{
			ID:      itemID,
			StoreID: req.StoreID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrItemNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}
		if !menuItem.IsAvailable {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrItemUnavailable)
		}

		groups, err := loadOptionGroups(ctx, store, itemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}

		sels, err := buildSelections(groups, item.Options)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}

		if result := menu.ValidateSelections(groups, sels); !result.Valid() {
			return nil, &ValidationError{ItemID: itemID, Result: result}
		}

		// Freeze the line the same way the client-held cart does: prices
		// and names snapshotted, selections flattened per group.
		line := cart.NewItem(itemID, menuItem.Name, menuItem.BasePrice, item.Quantity, groups, sels)

		items = append(items, processedItem{
			params: database.CreateOrderItemParams{
				ItemID:       itemID,
				Name:         line.Name,
				Quantity:     line.Quantity,
				UnitPrice:    line.BasePrice,
				OptionsPrice: line.OptionsPrice,
				TotalPrice:   line.TotalPrice(),
			},
			options: frozenOptions(line),
		})
		orderTotal += line.TotalPrice()
	}

	// --- Insert order; an idempotency replay returns the existing one ---
	nextNum, err := store.GetNextOrderNumber(ctx, req.StoreID)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("TVL-%03d", nextNum)

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		StoreID:             req.StoreID,
		OrderNumber:         orderNumber,
		OrderType:           req.OrderType,
		CustomerName:        req.CustomerName,
		ScheduledPickupTime: pickupTime,
		Status:              enum.OrderStatusAwaitingPayment,
		PaymentStatus:       enum.PaymentStatusPending,
		IdempotencyKey:      req.IdempotencyKey,
		TotalAmount:         orderTotal,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the idempotency race (or a retry of a committed request):
			// return the winner's order unchanged.
			return s.replayOrder(ctx, store, req, orderTotal)
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	result := &CreateOrderResult{Order: order}
	for i, item := range items {
		item.params.OrderID = order.ID
		created, err := store.CreateOrderItem(ctx, item.params)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: create order item: %w", i, err)
		}
		itemResult := OrderItemResult{Item: created}
		for j, opt := range item.options {
			createdOpt, err := store.CreateOrderItemOption(ctx, database.CreateOrderItemOptionParams{
				OrderItemID: created.ID,
				GroupID:     opt.groupID,
				GroupName:   opt.groupName,
				ChoiceID:    opt.choiceID,
				ChoiceName:  opt.choiceName,
				Price:       opt.price,
				Quantity:    opt.quantity,
			})
			if err != nil {
				return nil, fmt.Errorf("item[%d].options[%d]: %w", i, j, err)
			}
			itemResult.Options = append(itemResult.Options, createdOpt)
		}
		result.Items = append(result.Items, itemResult)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// replayOrder fetches the order a previous request with the same idempotency
// key already created.
func (s *OrderService) replayOrder(ctx context.Context, store OrderStore, req CreateOrderRequest, wantTotal int64) (*CreateOrderResult, error) {
	order, err := store.GetOrderByIdempotencyKey(ctx, database.GetOrderByIdempotencyKeyParams{
		StoreID:        req.StoreID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("get order by idempotency key: %w", err)
	}
	// Cheap payload sanity check: a key reuse with a different cart prices
	// differently and must be rejected, not silently replayed.
	if order.TotalAmount != wantTotal || order.OrderType != req.OrderType {
		return nil, ErrIdempotencyConflict
	}
	items, err := s.loadOrderItems(ctx, store, order.ID)
	if err != nil {
		return nil, err
	}
	return &CreateOrderResult{Order: order, Items: items, Replayed: true}, nil
}

// GetOrder returns an order with its lines and frozen options.
func (s *OrderService) GetOrder(ctx context.Context, storeID, orderID uuid.UUID) (*CreateOrderResult, error) {
	store := s.store

	order, err := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, StoreID: storeID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	items, err := s.loadOrderItems(ctx, store, order.ID)
	if err != nil {
		return nil, err
	}
	return &CreateOrderResult{Order: order, Items: items}, nil
}

func (s *OrderService) loadOrderItems(ctx context.Context, store OrderStore, orderID uuid.UUID) ([]OrderItemResult, error) {
	rows, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	var items []OrderItemResult
	for _, row := range rows {
		opts, err := store.ListOrderItemOptionsByItem(ctx, row.ID)
		if err != nil {
			return nil, fmt.Errorf("list order item options: %w", err)
		}
		items = append(items, OrderItemResult{Item: row, Options: opts})
	}
	return items, nil
}

// allowedTransitions is the kitchen lifecycle state machine. An order only
// enters it after payment confirms it; AWAITING_PAYMENT can only be
// cancelled.
var allowedTransitions = map[string][]string{
	enum.OrderStatusAwaitingPayment: {enum.OrderStatusCancelled},
	enum.OrderStatusConfirmed:       {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing:       {enum.OrderStatusReady, enum.OrderStatusCancelled},
	enum.OrderStatusReady:           {enum.OrderStatusCompleted},
}

func transitionAllowed(from, to string) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// UpdateStatus moves an order through the kitchen lifecycle. The database
// update is a compare-and-set on the current status, so a concurrent
// transition loses cleanly instead of double-applying.
func (s *OrderService) UpdateStatus(ctx context.Context, storeID, orderID uuid.UUID, toStatus string) (database.Order, error) {
	store := s.store

	order, err := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, StoreID: storeID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if !transitionAllowed(order.Status, toStatus) {
		return database.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, toStatus)
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         orderID,
		StoreID:    storeID,
		Status:     toStatus,
		FromStatus: order.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Status moved underneath us.
			return database.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, toStatus)
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}
	return updated, nil
}

// loadOptionGroups assembles the pricing-engine view of an item's option
// groups from catalog rows.
func loadOptionGroups(ctx context.Context, store OrderStore, itemID uuid.UUID) ([]menu.OptionGroup, error) {
	rows, err := store.ListOptionGroupsByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("list option groups: %w", err)
	}
	var groups []menu.OptionGroup
	for _, row := range rows {
		g := menu.OptionGroup{
			ID:                   row.ID,
			Name:                 row.Name,
			Type:                 row.GroupType,
			IsRequired:           row.IsRequired,
			MinSelections:        int4Ptr(row.MinSelections),
			MaxSelections:        int4Ptr(row.MaxSelections),
			AggregateMinQuantity: int4Ptr(row.AggregateMinQuantity),
			AggregateMaxQuantity: int4Ptr(row.AggregateMaxQuantity),
			NumFreeOptions:       row.NumFreeOptions,
		}
		choices, err := store.ListChoicesByGroup(ctx, row.ID)
		if err != nil {
			return nil, fmt.Errorf("list choices: %w", err)
		}
		for _, c := range choices {
			g.Choices = append(g.Choices, menu.Choice{
				ID:            c.ID,
				Name:          c.Name,
				PriceModifier: c.PriceModifier,
				IsAvailable:   c.IsAvailable,
				IsDefault:     c.IsDefault,
				MinQuantity:   c.MinQuantity,
				MaxQuantity:   int4Ptr(c.MaxQuantity),
			})
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func int4Ptr(v pgtype.Int4) *int32 {
	if !v.Valid {
		return nil
	}
	n := v.Int32
	return &n
}

// buildSelections converts request options into per-group selections. Choices
// referencing unknown groups fail here; constraint checks are the
// validator's job.
func buildSelections(groups []menu.OptionGroup, opts []CreateOrderOptionRequest) (map[uuid.UUID]menu.Selection, error) {
	byID := make(map[uuid.UUID]menu.OptionGroup, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}

	sels := make(map[uuid.UUID]menu.Selection)
	for _, opt := range opts {
		groupID, err := uuid.Parse(opt.GroupID)
		if err != nil {
			return nil, ErrInvalidGroupID
		}
		choiceID, err := uuid.Parse(opt.ChoiceID)
		if err != nil {
			return nil, ErrInvalidChoiceID
		}
		group, ok := byID[groupID]
		if !ok {
			return nil, ErrInvalidGroupID
		}

		sel, ok := sels[groupID]
		if !ok {
			sel = menu.NewSelection(groupID)
		}
		switch group.Type {
		case enum.OptionGroupQuantitySelect:
			qty := opt.Quantity
			if qty <= 0 {
				qty = 1
			}
			sel = sel.WithQuantity(choiceID, qty)
		case enum.OptionGroupSingleSelect:
			sel = sel.WithOnlyChoice(choiceID)
		default:
			sel = sel.WithChoice(choiceID)
		}
		sels[groupID] = sel
	}
	return sels, nil
}

// frozenOptions flattens a cart line's frozen selections into snapshot rows,
// carrying the group and choice names so receipts survive menu edits.
func frozenOptions(line cart.Item) []optionInfo {
	var out []optionInfo
	for _, g := range line.SelectedOptions {
		for _, c := range g.Choices {
			out = append(out, optionInfo{
				groupID: g.GroupID, groupName: g.GroupName,
				choiceID: c.ID, choiceName: c.Name,
				price: c.Price, quantity: c.Quantity,
			})
		}
	}
	return out
}
