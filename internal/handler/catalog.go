package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tavolo-app/api/internal/database"
	"github.com/tavolo-app/api/internal/service"
)

// CatalogStore defines the database methods needed by storefront handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CatalogStore interface {
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
	ListPaymentAccountsByStore(ctx context.Context, storeID uuid.UUID) ([]database.PaymentAccount, error)
	ListMenuItemsByStore(ctx context.Context, storeID uuid.UUID) ([]database.MenuItem, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	ListOptionGroupsByItem(ctx context.Context, itemID uuid.UUID) ([]database.OptionGroup, error)
	ListChoicesByGroup(ctx context.Context, groupID uuid.UUID) ([]database.OptionChoice, error)
}

// CatalogHandler serves the public storefront reads: store info with its
// current capabilities, the menu list, and item detail with option groups.
type CatalogHandler struct {
	store CatalogStore
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(store CatalogStore) *CatalogHandler {
	return &CatalogHandler{store: store}
}

// RegisterRoutes registers storefront endpoints on the given Chi router.
// Expected to be mounted inside a store-scoped subrouter: /stores/{sid}
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.GetStoreInfo)
	r.Get("/menu", h.ListMenu)
	r.Get("/menu/{id}", h.GetMenuItem)
}

// --- Response types ---

type storeResponse struct {
	ID           uuid.UUID            `json:"id"`
	Name         string               `json:"name"`
	Capabilities service.Capabilities `json:"capabilities"`
}

type menuItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	BasePrice   int64     `json:"base_price"`
	IsAvailable bool      `json:"is_available"`
}

type optionChoiceResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	PriceModifier int64     `json:"price_modifier"`
	IsAvailable   bool      `json:"is_available"`
	IsDefault     bool      `json:"is_default"`
	MinQuantity   int32     `json:"min_quantity"`
	MaxQuantity   *int32    `json:"max_quantity"`
}

type optionGroupResponse struct {
	ID                   uuid.UUID              `json:"id"`
	Name                 string                 `json:"name"`
	GroupType            string                 `json:"group_type"`
	IsRequired           bool                   `json:"is_required"`
	MinSelections        *int32                 `json:"min_selections"`
	MaxSelections        *int32                 `json:"max_selections"`
	AggregateMinQuantity *int32                 `json:"aggregate_min_quantity"`
	AggregateMaxQuantity *int32                 `json:"aggregate_max_quantity"`
	NumFreeOptions       int32                  `json:"num_free_options"`
	Choices              []optionChoiceResponse `json:"choices"`
}

type menuItemDetailResponse struct {
	menuItemResponse
	OptionGroups []optionGroupResponse `json:"option_groups"`
}

func toMenuItemResponse(m database.MenuItem) menuItemResponse {
	return menuItemResponse{
		ID:          m.ID,
		Name:        m.Name,
		BasePrice:   m.BasePrice,
		IsAvailable: m.IsAvailable,
	}
}

func toOptionGroupResponse(g database.OptionGroup, choices []database.OptionChoice) optionGroupResponse {
	resp := optionGroupResponse{
		ID:             g.ID,
		Name:           g.Name,
		GroupType:      g.GroupType,
		IsRequired:     g.IsRequired,
		NumFreeOptions: g.NumFreeOptions,
		Choices:        make([]optionChoiceResponse, len(choices)),
	}
	if g.MinSelections.Valid {
		v := g.MinSelections.Int32
		resp.MinSelections = &v
	}
	if g.MaxSelections.Valid {
		v := g.MaxSelections.Int32
		resp.MaxSelections = &v
	}
	if g.AggregateMinQuantity.Valid {
		v := g.AggregateMinQuantity.Int32
		resp.AggregateMinQuantity = &v
	}
	if g.AggregateMaxQuantity.Valid {
		v := g.AggregateMaxQuantity.Int32
		resp.AggregateMaxQuantity = &v
	}
	for i, c := range choices {
		cr := optionChoiceResponse{
			ID:            c.ID,
			Name:          c.Name,
			PriceModifier: c.PriceModifier,
			IsAvailable:   c.IsAvailable,
			IsDefault:     c.IsDefault,
			MinQuantity:   c.MinQuantity,
		}
		if c.MaxQuantity.Valid {
			v := c.MaxQuantity.Int32
			cr.MaxQuantity = &v
		}
		resp.Choices[i] = cr
	}
	return resp
}

// --- Handlers ---

// GetStoreInfo returns the store profile with its derived capabilities.
func (h *CatalogHandler) GetStoreInfo(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	store, err := h.store.GetStore(r.Context(), storeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "store not found"})
			return
		}
		log.Printf("ERROR: get store: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	accounts, err := h.store.ListPaymentAccountsByStore(r.Context(), storeID)
	if err != nil {
		log.Printf("ERROR: list payment accounts: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, storeResponse{
		ID:           store.ID,
		Name:         store.Name,
		Capabilities: service.ResolveCapabilities(store, accounts),
	})
}

// ListMenu returns all menu items for the given store.
func (h *CatalogHandler) ListMenu(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	items, err := h.store.ListMenuItemsByStore(r.Context(), storeID)
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, m := range items {
		resp[i] = toMenuItemResponse(m)
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetMenuItem returns one item with its option groups and choices.
func (h *CatalogHandler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	item, err := h.store.GetMenuItem(r.Context(), database.GetMenuItemParams{
		ID:      itemID,
		StoreID: storeID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	groups, err := h.store.ListOptionGroupsByItem(r.Context(), item.ID)
	if err != nil {
		log.Printf("ERROR: list option groups: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	detail := menuItemDetailResponse{
		menuItemResponse: toMenuItemResponse(item),
		OptionGroups:     make([]optionGroupResponse, len(groups)),
	}
	for i, g := range groups {
		choices, err := h.store.ListChoicesByGroup(r.Context(), g.ID)
		if err != nil {
			log.Printf("ERROR: list option choices: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		detail.OptionGroups[i] = toOptionGroupResponse(g, choices)
	}

	writeJSON(w, http.StatusOK, detail)
}
