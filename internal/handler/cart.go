package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/three-sisters-oyster/api/internal/cart"
	"github.com/three-sisters-oyster/api/internal/database"
)

// sessionHeader carries the shopper's anonymous session id. The mobile app
// generates a UUID on first launch and sends it with every cart call.
const sessionHeader = "X-Session-ID"

// CartStore persists session carts. Satisfied by *cart.Store.
type CartStore interface {
	Get(ctx context.Context, sessionID string) (*cart.Cart, error)
	Save(ctx context.Context, c *cart.Cart) error
	Clear(ctx context.Context, sessionID string) error
}

// CartProductStore is the catalog lookup the cart needs to snapshot lines.
type CartProductStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
}

type CartHandler struct {
	carts    CartStore
	products CartProductStore
}

func NewCartHandler(carts CartStore, products CartProductStore) *CartHandler {
	return &CartHandler{carts: carts, products: products}
}

func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Post("/items", h.AddItem)
	r.Put("/items/{productID}", h.UpdateItem)
	r.Delete("/items/{productID}", h.RemoveItem)
	r.Delete("/", h.Clear)
}

type cartLineResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unit_price"`
	Quantity  int32     `json:"quantity"`
	Category  string    `json:"category"`
	LineTotal string    `json:"line_total"`
}

type cartResponse struct {
	SessionID string             `json:"session_id"`
	Lines     []cartLineResponse `json:"lines"`
	Total     string             `json:"total"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	resp := cartResponse{
		SessionID: c.SessionID,
		Lines:     make([]cartLineResponse, 0, len(c.Lines)),
		Total:     c.Total().StringFixed(2),
	}
	for _, l := range c.Lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Quantity:  l.Quantity,
			Category:  l.Category,
			LineTotal: l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity)).StringFixed(2),
		})
	}
	return resp
}

func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing "+sessionHeader+" header")
		return "", false
	}
	return id, true
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	c, err := h.carts.Get(r.Context(), sid)
	if err != nil {
		log.Printf("ERROR: load cart: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type addItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be > 0")
		return
	}

	p, err := h.products.GetProduct(r.Context(), req.ProductID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		log.Printf("ERROR: get product: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	c, err := h.carts.Get(r.Context(), sid)
	if err != nil {
		log.Printf("ERROR: load cart: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	c.Upsert(cart.Line{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: numericToDecimal(p.Price),
		Quantity:  req.Quantity,
		Category:  p.Category,
	})

	if err := h.carts.Save(r.Context(), c); err != nil {
		log.Printf("ERROR: save cart: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type updateItemRequest struct {
	Quantity int32 `json:"quantity"`
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.carts.Get(r.Context(), sid)
	if err != nil {
		log.Printf("ERROR: load cart: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !c.SetQuantity(productID, req.Quantity) {
		writeError(w, http.StatusNotFound, "product not in cart")
		return
	}

	if err := h.carts.Save(r.Context(), c); err != nil {
		log.Printf("ERROR: save cart: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	c, err := h.carts.Get(r.Context(), sid)
	if err != nil {
		log.Printf("ERROR: load cart: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !c.Remove(productID) {
		writeError(w, http.StatusNotFound, "product not in cart")
		return
	}

	if err := h.carts.Save(r.Context(), c); err != nil {
		log.Printf("ERROR: save cart: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := h.carts.Clear(r.Context(), sid); err != nil {
		log.Printf("ERROR: clear cart: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(&cart.Cart{SessionID: sid}))
}
