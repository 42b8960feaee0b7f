package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tavolo-app/api/internal/database"
	"github.com/tavolo-app/api/internal/service"
)

// OrderPlacer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderPlacer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	GetOrder(ctx context.Context, storeID, orderID uuid.UUID) (*service.CreateOrderResult, error)
}

// OrderHandler serves the public order endpoints: creation with an
// idempotency key and read-back by ID.
type OrderHandler struct {
	orders OrderPlacer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders OrderPlacer) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// RegisterRoutes registers public order endpoints on the given Chi router.
// Expected to be mounted inside a store-scoped subrouter: /stores/{sid}
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
	r.Get("/orders/{id}", h.Get)
}

// --- Request / Response types ---

type createOrderRequest struct {
	OrderType           string                   `json:"order_type"`
	CustomerName        string                   `json:"customer_name"`
	ScheduledPickupTime string                   `json:"scheduled_pickup_time"`
	IdempotencyKey      string                   `json:"idempotency_key"`
	Items               []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ItemID   string                     `json:"item_id"`
	Quantity int32                      `json:"quantity"`
	Options  []createOrderOptionRequest `json:"options"`
}

type createOrderOptionRequest struct {
	GroupID  string `json:"group_id"`
	ChoiceID string `json:"choice_id"`
	Quantity int32  `json:"quantity"`
}

type orderResponse struct {
	ID                  uuid.UUID           `json:"id"`
	StoreID             uuid.UUID           `json:"store_id"`
	OrderNumber         string              `json:"order_number"`
	OrderType           string              `json:"order_type"`
	CustomerName        string              `json:"customer_name"`
	ScheduledPickupTime *time.Time          `json:"scheduled_pickup_time"`
	Status              string              `json:"status"`
	PaymentStatus       string              `json:"payment_status"`
	PaymentProvider     *string             `json:"payment_provider"`
	TotalAmount         int64               `json:"total_amount"`
	CreatedAt           time.Time           `json:"created_at"`
	Items               []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID           uuid.UUID             `json:"id"`
	ItemID       uuid.UUID             `json:"item_id"`
	Name         string                `json:"name"`
	Quantity     int32                 `json:"quantity"`
	UnitPrice    int64                 `json:"unit_price"`
	OptionsPrice int64                 `json:"options_price"`
	TotalPrice   int64                 `json:"total_price"`
	Options      []orderOptionResponse `json:"options,omitempty"`
}

type orderOptionResponse struct {
	GroupID    uuid.UUID `json:"group_id"`
	GroupName  string    `json:"group_name"`
	ChoiceID   uuid.UUID `json:"choice_id"`
	ChoiceName string    `json:"choice_name"`
	Price      int64     `json:"price"`
	Quantity   int32     `json:"quantity"`
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		StoreID:       o.StoreID,
		OrderNumber:   o.OrderNumber,
		OrderType:     o.OrderType,
		CustomerName:  o.CustomerName,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount,
		CreatedAt:     o.CreatedAt,
	}
	if o.ScheduledPickupTime.Valid {
		t := o.ScheduledPickupTime.Time
		resp.ScheduledPickupTime = &t
	}
	if o.PaymentProvider.Valid {
		p := o.PaymentProvider.String
		resp.PaymentProvider = &p
	}
	return resp
}

func toOrderDetailResponse(result *service.CreateOrderResult) orderResponse {
	resp := toOrderResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, line := range result.Items {
		ir := orderItemResponse{
			ID:           line.Item.ID,
			ItemID:       line.Item.ItemID,
			Name:         line.Item.Name,
			Quantity:     line.Item.Quantity,
			UnitPrice:    line.Item.UnitPrice,
			OptionsPrice: line.Item.OptionsPrice,
			TotalPrice:   line.Item.TotalPrice,
		}
		for _, opt := range line.Options {
			ir.Options = append(ir.Options, orderOptionResponse{
				GroupID:    opt.GroupID,
				GroupName:  opt.GroupName,
				ChoiceID:   opt.ChoiceID,
				ChoiceName: opt.ChoiceName,
				Price:      opt.Price,
				Quantity:   opt.Quantity,
			})
		}
		resp.Items[i] = ir
	}
	return resp
}

// --- Handlers ---

// Create places a new order. The idempotency key comes from the
// Idempotency-Key header or, failing that, the request body; replays of the
// same key return the original order with a 200 instead of a 201.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = req.IdempotencyKey
	}

	svcReq := service.CreateOrderRequest{
		StoreID:             storeID,
		OrderType:           req.OrderType,
		CustomerName:        req.CustomerName,
		ScheduledPickupTime: req.ScheduledPickupTime,
		IdempotencyKey:      key,
	}
	for _, it := range req.Items {
		item := service.CreateOrderItemRequest{
			ItemID:   it.ItemID,
			Quantity: it.Quantity,
		}
		for _, opt := range it.Options {
			item.Options = append(item.Options, service.CreateOrderOptionRequest{
				GroupID:  opt.GroupID,
				ChoiceID: opt.ChoiceID,
				Quantity: opt.Quantity,
			})
		}
		svcReq.Items = append(svcReq.Items, item)
	}

	result, err := h.orders.CreateOrder(r.Context(), svcReq)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, toOrderDetailResponse(result))
}

// Get returns one order with its frozen lines.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	result, err := h.orders.GetOrder(r.Context(), storeID, orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderDetailResponse(result))
}
