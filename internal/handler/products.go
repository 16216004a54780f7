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
	"github.com/shopspring/decimal"

	"github.com/three-sisters-oyster/api/internal/cache"
	"github.com/three-sisters-oyster/api/internal/database"
	"github.com/three-sisters-oyster/api/internal/enum"
	"github.com/three-sisters-oyster/api/internal/ws"
)

const (
	productListCacheKey = "catalog:products"
	productListCacheTTL = time.Minute
)

// ProductStore defines the DB methods product handlers need.
// Satisfied by *database.Queries.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

type ProductHandler struct {
	store  ProductStore
	cache  cache.Cache
	events Broadcaster
}

func NewProductHandler(store ProductStore, c cache.Cache, events Broadcaster) *ProductHandler {
	return &ProductHandler{store: store, cache: c, events: events}
}

// RegisterPublicRoutes mounts the storefront catalog endpoints.
func (h *ProductHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterAdminRoutes mounts the catalog management endpoints.
func (h *ProductHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type productRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       string  `json:"price"`
	Category    string  `json:"category"`
	StockCount  int32   `json:"stock_count"`
	ImageURL    *string `json:"image_url"`
}

type productResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Price       string    `json:"price"`
	Category    string    `json:"category"`
	StockCount  int32     `json:"stock_count"`
	InStock     bool      `json:"in_stock"`
	ImageURL    *string   `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProductResponse(p database.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: textOrNil(p.Description),
		Price:       numericToDecimal(p.Price).StringFixed(2),
		Category:    p.Category,
		StockCount:  p.StockCount,
		InStock:     p.StockCount > 0,
		ImageURL:    textOrNil(p.ImageUrl),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (req *productRequest) validate() (decimal.Decimal, string) {
	if req.Name == "" {
		return decimal.Zero, "name is required"
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return decimal.Zero, "price must be a decimal string"
	}
	if !price.IsPositive() {
		return decimal.Zero, "price must be greater than zero"
	}
	if req.Category != enum.ProductCategoryOyster && req.Category != enum.ProductCategoryMerch {
		return decimal.Zero, "category must be oyster or merch"
	}
	if req.StockCount < 0 {
		return decimal.Zero, "stock_count must be >= 0"
	}
	return price, ""
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	var cached []productResponse
	hit, err := h.cache.GetJSON(r.Context(), productListCacheKey, &cached)
	if err != nil {
		log.Printf("ERROR: read product cache: %v", err)
	}
	if hit {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	products, err := h.store.ListProducts(r.Context())
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}

	if err := h.cache.SetJSON(r.Context(), productListCacheKey, resp, productListCacheTTL); err != nil {
		log.Printf("ERROR: write product cache: %v", err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	p, err := h.store.GetProduct(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		log.Printf("ERROR: get product: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	price, msg := req.validate()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	p, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		Name:        req.Name,
		Description: textFromPtr(req.Description),
		Price:       decimalToNumeric(price),
		Category:    req.Category,
		StockCount:  req.StockCount,
		ImageUrl:    textFromPtr(req.ImageURL),
	})
	if err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.invalidateAndNotify(r.Context(), p.ID)
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	price, msg := req.validate()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	p, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:          id,
		Name:        req.Name,
		Description: textFromPtr(req.Description),
		Price:       decimalToNumeric(price),
		Category:    req.Category,
		StockCount:  req.StockCount,
		ImageUrl:    textFromPtr(req.ImageURL),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		log.Printf("ERROR: update product: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.invalidateAndNotify(r.Context(), p.ID)
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	deleted, err := h.store.DeleteProduct(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		log.Printf("ERROR: delete product: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.invalidateAndNotify(r.Context(), deleted)
	writeJSON(w, http.StatusOK, map[string]uuid.UUID{"id": deleted})
}

func (h *ProductHandler) invalidateAndNotify(ctx context.Context, productID uuid.UUID) {
	if err := h.cache.Delete(ctx, productListCacheKey); err != nil {
		log.Printf("ERROR: invalidate product cache: %v", err)
	}
	h.events.Broadcast(ws.EventInventoryUpdated, map[string]string{"product_id": productID.String()})
}
