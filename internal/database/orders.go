package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, store_id, order_number, order_type, customer_name,
       scheduled_pickup_time, status, payment_status,
       payment_provider, payment_reference, idempotency_key,
       total_amount, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.StoreID, &o.OrderNumber, &o.OrderType, &o.CustomerName,
		&o.ScheduledPickupTime, &o.Status, &o.PaymentStatus,
		&o.PaymentProvider, &o.PaymentReference, &o.IdempotencyKey,
		&o.TotalAmount, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

type CreateOrderParams struct {
	StoreID             uuid.UUID
	OrderNumber         string
	OrderType           string
	CustomerName        string
	ScheduledPickupTime pgtype.Timestamptz
	Status              string
	PaymentStatus       string
	IdempotencyKey      string
	TotalAmount         int64
}

// createOrder inserts if absent: a concurrent request with the same
// (store_id, idempotency_key) loses the race, gets no row back, and the
// caller returns the winner's order instead.
const createOrder = `
INSERT INTO orders (
    store_id, order_number, order_type, customer_name,
    scheduled_pickup_time, status, payment_status,
    idempotency_key, total_amount
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (store_id, idempotency_key) DO NOTHING
RETURNING ` + orderColumns

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.StoreID, arg.OrderNumber, arg.OrderType, arg.CustomerName,
		arg.ScheduledPickupTime, arg.Status, arg.PaymentStatus,
		arg.IdempotencyKey, arg.TotalAmount,
	))
}

type GetOrderParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND store_id = $2`

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, arg.ID, arg.StoreID))
}

type GetOrderForUpdateParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

// Row lock serializes concurrent checkout/session operations on one order.
const getOrderForUpdate = `SELECT ` + orderColumns + ` FROM orders
WHERE id = $1 AND store_id = $2 FOR NO KEY UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderForUpdateParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, arg.ID, arg.StoreID))
}

type GetOrderByIdempotencyKeyParams struct {
	StoreID        uuid.UUID
	IdempotencyKey string
}

const getOrderByIdempotencyKey = `SELECT ` + orderColumns + ` FROM orders
WHERE store_id = $1 AND idempotency_key = $2`

func (q *Queries) GetOrderByIdempotencyKey(ctx context.Context, arg GetOrderByIdempotencyKeyParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByIdempotencyKey, arg.StoreID, arg.IdempotencyKey))
}

type ListOrdersByStoreParams struct {
	StoreID uuid.UUID
	Status  string // optional filter, empty matches all
	Limit   int32
}

const listOrdersByStore = `SELECT ` + orderColumns + ` FROM orders
WHERE store_id = $1 AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3`

func (q *Queries) ListOrdersByStore(ctx context.Context, arg ListOrdersByStoreParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByStore, arg.StoreID, arg.Status, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type GetOrderByPaymentReferenceParams struct {
	PaymentProvider  string
	PaymentReference string
}

// Webhook deliveries identify the payment session, not the order.
const getOrderByPaymentReference = `SELECT ` + orderColumns + ` FROM orders
WHERE payment_provider = $1 AND payment_reference = $2`

func (q *Queries) GetOrderByPaymentReference(ctx context.Context, arg GetOrderByPaymentReferenceParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByPaymentReference, arg.PaymentProvider, arg.PaymentReference))
}

const getNextOrderNumber = `
SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM 5) AS INTEGER)), 0) + 1
FROM orders WHERE store_id = $1
`

func (q *Queries) GetNextOrderNumber(ctx context.Context, storeID uuid.UUID) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, getNextOrderNumber, storeID).Scan(&n)
	return n, err
}

type UpdateOrderPaymentStatusParams struct {
	ID            uuid.UUID
	PaymentStatus string
	FromStatus    string
}

// Compare-and-set: the update only lands if the stored payment status still
// matches what the caller read. A lost race surfaces as no rows.
const updateOrderPaymentStatus = `
UPDATE orders SET payment_status = $2, updated_at = now()
WHERE id = $1 AND payment_status = $3
RETURNING ` + orderColumns

func (q *Queries) UpdateOrderPaymentStatus(ctx context.Context, arg UpdateOrderPaymentStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderPaymentStatus, arg.ID, arg.PaymentStatus, arg.FromStatus))
}

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	StoreID    uuid.UUID
	Status     string
	FromStatus string
}

const updateOrderStatus = `
UPDATE orders SET status = $3, updated_at = now()
WHERE id = $1 AND store_id = $2 AND status = $4
RETURNING ` + orderColumns

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.StoreID, arg.Status, arg.FromStatus))
}

type SetOrderPaymentSessionParams struct {
	ID               uuid.UUID
	PaymentProvider  string
	PaymentReference string
	PaymentStatus    string
}

// Binds a payment session to an order exactly once.
const setOrderPaymentSession = `
UPDATE orders SET payment_provider = $2, payment_reference = $3,
       payment_status = $4, updated_at = now()
WHERE id = $1 AND payment_reference IS NULL
RETURNING ` + orderColumns

func (q *Queries) SetOrderPaymentSession(ctx context.Context, arg SetOrderPaymentSessionParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, setOrderPaymentSession,
		arg.ID, arg.PaymentProvider, arg.PaymentReference, arg.PaymentStatus))
}

// Replaces a failed or expired session so a restarted checkout gets a fresh
// one on the same order. Sessions in any other state are never replaced.
const resetOrderPaymentSession = `
UPDATE orders SET payment_provider = $2, payment_reference = $3,
       payment_status = $4, updated_at = now()
WHERE id = $1 AND payment_status IN ('FAILED', 'EXPIRED')
RETURNING ` + orderColumns

func (q *Queries) ResetOrderPaymentSession(ctx context.Context, arg SetOrderPaymentSessionParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, resetOrderPaymentSession,
		arg.ID, arg.PaymentProvider, arg.PaymentReference, arg.PaymentStatus))
}

type CreateOrderItemParams struct {
	OrderID      uuid.UUID
	ItemID       uuid.UUID
	Name         string
	Quantity     int32
	UnitPrice    int64
	OptionsPrice int64
	TotalPrice   int64
}

const createOrderItem = `
INSERT INTO order_items (order_id, item_id, name, quantity, unit_price, options_price, total_price)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, item_id, name, quantity, unit_price, options_price, total_price
`

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	var it OrderItem
	err := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.ItemID, arg.Name, arg.Quantity,
		arg.UnitPrice, arg.OptionsPrice, arg.TotalPrice,
	).Scan(&it.ID, &it.OrderID, &it.ItemID, &it.Name, &it.Quantity,
		&it.UnitPrice, &it.OptionsPrice, &it.TotalPrice)
	return it, err
}

const listOrderItemsByOrder = `
SELECT id, order_id, item_id, name, quantity, unit_price, options_price, total_price
FROM order_items WHERE order_id = $1 ORDER BY id
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.Name, &it.Quantity,
			&it.UnitPrice, &it.OptionsPrice, &it.TotalPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type CreateOrderItemOptionParams struct {
	OrderItemID uuid.UUID
	GroupID     uuid.UUID
	GroupName   string
	ChoiceID    uuid.UUID
	ChoiceName  string
	Price       int64
	Quantity    int32
}

const createOrderItemOption = `
INSERT INTO order_item_options (order_item_id, group_id, group_name, choice_id, choice_name, price, quantity)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_item_id, group_id, group_name, choice_id, choice_name, price, quantity
`

func (q *Queries) CreateOrderItemOption(ctx context.Context, arg CreateOrderItemOptionParams) (OrderItemOption, error) {
	var o OrderItemOption
	err := q.db.QueryRow(ctx, createOrderItemOption,
		arg.OrderItemID, arg.GroupID, arg.GroupName,
		arg.ChoiceID, arg.ChoiceName, arg.Price, arg.Quantity,
	).Scan(&o.ID, &o.OrderItemID, &o.GroupID, &o.GroupName,
		&o.ChoiceID, &o.ChoiceName, &o.Price, &o.Quantity)
	return o, err
}

const listOrderItemOptionsByItem = `
SELECT id, order_item_id, group_id, group_name, choice_id, choice_name, price, quantity
FROM order_item_options WHERE order_item_id = $1 ORDER BY id
`

func (q *Queries) ListOrderItemOptionsByItem(ctx context.Context, orderItemID uuid.UUID) ([]OrderItemOption, error) {
	rows, err := q.db.Query(ctx, listOrderItemOptionsByItem, orderItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opts []OrderItemOption
	for rows.Next() {
		var o OrderItemOption
		if err := rows.Scan(&o.ID, &o.OrderItemID, &o.GroupID, &o.GroupName,
			&o.ChoiceID, &o.ChoiceName, &o.Price, &o.Quantity); err != nil {
			return nil, err
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}
