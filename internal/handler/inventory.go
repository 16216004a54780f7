package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/three-sisters-oyster/api/internal/database"
	"github.com/three-sisters-oyster/api/internal/enum"
	"github.com/three-sisters-oyster/api/internal/ws"
)

// InventoryStore defines the DB methods inventory handlers need.
// Satisfied by *database.Queries.
type InventoryStore interface {
	ListInventory(ctx context.Context) ([]database.InventoryItem, error)
	ListInventoryByClass(ctx context.Context, locationClass string) ([]database.InventoryItem, error)
	GetInventoryItem(ctx context.Context, id uuid.UUID) (database.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, arg database.CreateInventoryItemParams) (database.InventoryItem, error)
	UpdateInventoryItem(ctx context.Context, arg database.UpdateInventoryItemParams) (database.InventoryItem, error)
	DeleteInventoryItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	SumInventoryByClass(ctx context.Context, locationClass string) (int64, error)
	CountProducts(ctx context.Context) (int64, error)
}

type InventoryHandler struct {
	store  InventoryStore
	events Broadcaster
}

func NewInventoryHandler(store InventoryStore, events Broadcaster) *InventoryHandler {
	return &InventoryHandler{store: store, events: events}
}

func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/stats", h.Stats)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// nurseryAttributes describe juvenile stock still in upweller bins.
type nurseryAttributes struct {
	Size string `json:"size"`
	Age  string `json:"age"`
}

// farmAttributes describe grow-out stock staged in lease plots.
type farmAttributes struct {
	Location      string `json:"location"`
	HarvestReady  bool   `json:"harvest_ready"`
	PricePerDozen string `json:"price_per_dozen"`
}

// inventoryItemRequest carries exactly one attribute block, matching the
// location class.
type inventoryItemRequest struct {
	VarietyName   string             `json:"variety_name"`
	LocationClass string             `json:"location_class"`
	Count         int32              `json:"count"`
	Health        string             `json:"health"`
	Nursery       *nurseryAttributes `json:"nursery,omitempty"`
	Farm          *farmAttributes    `json:"farm,omitempty"`
}

type inventoryItemResponse struct {
	ID            uuid.UUID          `json:"id"`
	VarietyName   string             `json:"variety_name"`
	LocationClass string             `json:"location_class"`
	Count         int32              `json:"count"`
	Health        *string            `json:"health,omitempty"`
	Nursery       *nurseryAttributes `json:"nursery,omitempty"`
	Farm          *farmAttributes    `json:"farm,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func toInventoryItemResponse(it database.InventoryItem) inventoryItemResponse {
	resp := inventoryItemResponse{
		ID:            it.ID,
		VarietyName:   it.VarietyName,
		LocationClass: it.LocationClass,
		Count:         it.Count,
		Health:        textOrNil(it.Health),
		CreatedAt:     it.CreatedAt,
		UpdatedAt:     it.UpdatedAt,
	}
	switch it.LocationClass {
	case enum.LocationClassNursery:
		resp.Nursery = &nurseryAttributes{
			Size: it.Size.String,
			Age:  it.Age.String,
		}
	case enum.LocationClassFarm:
		resp.Farm = &farmAttributes{
			Location:      it.Location.String,
			HarvestReady:  it.HarvestReady.Bool,
			PricePerDozen: numericToDecimal(it.PricePerDozen).StringFixed(2),
		}
	}
	return resp
}

// toParams validates the tagged attribute block and flattens it into the
// row shape. The block for the other class must be absent.
func (req *inventoryItemRequest) toParams() (database.CreateInventoryItemParams, string) {
	var zero database.CreateInventoryItemParams

	if req.VarietyName == "" {
		return zero, "variety_name is required"
	}
	if req.Count < 0 {
		return zero, "count must be >= 0"
	}
	if req.Health != "" &&
		req.Health != enum.HealthExcellent && req.Health != enum.HealthGood && req.Health != enum.HealthFair {
		return zero, "health must be excellent, good, or fair"
	}

	params := database.CreateInventoryItemParams{
		VarietyName:   req.VarietyName,
		LocationClass: req.LocationClass,
		Count:         req.Count,
		Health:        pgtype.Text{String: req.Health, Valid: req.Health != ""},
	}

	switch req.LocationClass {
	case enum.LocationClassNursery:
		if req.Farm != nil {
			return zero, "nursery items cannot carry farm attributes"
		}
		if req.Nursery != nil {
			params.Size = pgtype.Text{String: req.Nursery.Size, Valid: req.Nursery.Size != ""}
			params.Age = pgtype.Text{String: req.Nursery.Age, Valid: req.Nursery.Age != ""}
		}
	case enum.LocationClassFarm:
		if req.Nursery != nil {
			return zero, "farm items cannot carry nursery attributes"
		}
		if req.Farm != nil {
			price, err := decimal.NewFromString(req.Farm.PricePerDozen)
			if err != nil || price.IsNegative() {
				return zero, "price_per_dozen must be a non-negative decimal string"
			}
			params.Location = pgtype.Text{String: req.Farm.Location, Valid: req.Farm.Location != ""}
			params.HarvestReady = pgtype.Bool{Bool: req.Farm.HarvestReady, Valid: true}
			params.PricePerDozen = decimalToNumeric(price)
		}
	default:
		return zero, "location_class must be nursery or farm"
	}

	return params, ""
}

func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		items []database.InventoryItem
		err   error
	)
	switch class := r.URL.Query().Get("type"); class {
	case "":
		items, err = h.store.ListInventory(r.Context())
	case enum.LocationClassNursery, enum.LocationClassFarm:
		items, err = h.store.ListInventoryByClass(r.Context(), class)
	default:
		writeError(w, http.StatusBadRequest, "type must be nursery or farm")
		return
	}
	if err != nil {
		log.Printf("ERROR: list inventory: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]inventoryItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, toInventoryItemResponse(it))
	}
	writeJSON(w, http.StatusOK, resp)
}

type inventoryStatsResponse struct {
	TotalNursery  int64 `json:"total_nursery"`
	TotalFarm     int64 `json:"total_farm"`
	TotalProducts int64 `json:"total_products"`
}

func (h *InventoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	nursery, err := h.store.SumInventoryByClass(r.Context(), enum.LocationClassNursery)
	if err != nil {
		log.Printf("ERROR: sum nursery inventory: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	farm, err := h.store.SumInventoryByClass(r.Context(), enum.LocationClassFarm)
	if err != nil {
		log.Printf("ERROR: sum farm inventory: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	products, err := h.store.CountProducts(r.Context())
	if err != nil {
		log.Printf("ERROR: count products: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, inventoryStatsResponse{
		TotalNursery:  nursery,
		TotalFarm:     farm,
		TotalProducts: products,
	})
}

func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid inventory id")
		return
	}

	it, err := h.store.GetInventoryItem(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "inventory item not found")
		return
	}
	if err != nil {
		log.Printf("ERROR: get inventory item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toInventoryItemResponse(it))
}

func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req inventoryItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	params, msg := req.toParams()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	it, err := h.store.CreateInventoryItem(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: create inventory item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.events.Broadcast(ws.EventInventoryUpdated, map[string]string{"inventory_id": it.ID.String()})
	writeJSON(w, http.StatusCreated, toInventoryItemResponse(it))
}

func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid inventory id")
		return
	}

	var req inventoryItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	params, msg := req.toParams()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	it, err := h.store.UpdateInventoryItem(r.Context(), database.UpdateInventoryItemParams{
		ID:            id,
		VarietyName:   params.VarietyName,
		LocationClass: params.LocationClass,
		Count:         params.Count,
		Health:        params.Health,
		Size:          params.Size,
		Age:           params.Age,
		Location:      params.Location,
		HarvestReady:  params.HarvestReady,
		PricePerDozen: params.PricePerDozen,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "inventory item not found")
		return
	}
	if err != nil {
		log.Printf("ERROR: update inventory item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.events.Broadcast(ws.EventInventoryUpdated, map[string]string{"inventory_id": it.ID.String()})
	writeJSON(w, http.StatusOK, toInventoryItemResponse(it))
}

func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid inventory id")
		return
	}

	deleted, err := h.store.DeleteInventoryItem(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "inventory item not found")
		return
	}
	if err != nil {
		log.Printf("ERROR: delete inventory item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.events.Broadcast(ws.EventInventoryUpdated, map[string]string{"inventory_id": deleted.String()})
	writeJSON(w, http.StatusOK, map[string]uuid.UUID{"id": deleted})
}
