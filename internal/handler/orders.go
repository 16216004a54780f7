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

	"github.com/three-sisters-oyster/api/internal/database"
	"github.com/three-sisters-oyster/api/internal/enum"
	"github.com/three-sisters-oyster/api/internal/ws"
)

// orderTransitions lists the status changes the dashboard may make.
// pending -> confirmed is reserved for inventory reconciliation.
var orderTransitions = map[string]string{
	enum.OrderStatusPending:   enum.OrderStatusCancelled,
	enum.OrderStatusConfirmed: enum.OrderStatusShipped,
	enum.OrderStatusShipped:   enum.OrderStatusDelivered,
}

// OrderStore defines the DB methods order handlers need.
// Satisfied by *database.Queries.
type OrderStore interface {
	ListOrders(ctx context.Context) ([]database.Order, error)
	ListOrdersByStatus(ctx context.Context, status string) ([]database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
}

type OrderHandler struct {
	store  OrderStore
	events Broadcaster
}

func NewOrderHandler(store OrderStore, events Broadcaster) *OrderHandler {
	return &OrderHandler{store: store, events: events}
}

func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
}

type orderItemResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unit_price"`
	Quantity  int32     `json:"quantity"`
	Category  string    `json:"category"`
}

type orderResponse struct {
	ID               uuid.UUID           `json:"id"`
	CustomerName     string              `json:"customer_name"`
	CustomerEmail    string              `json:"customer_email"`
	CustomerPhone    *string             `json:"customer_phone,omitempty"`
	ShippingAddress  *string             `json:"shipping_address,omitempty"`
	ShippingCity     *string             `json:"shipping_city,omitempty"`
	ShippingState    *string             `json:"shipping_state,omitempty"`
	ShippingZip      *string             `json:"shipping_zip,omitempty"`
	TotalAmount      string              `json:"total_amount"`
	Status           string              `json:"status"`
	PaymentReference string              `json:"payment_reference"`
	Items            []orderItemResponse `json:"items,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:               o.ID,
		CustomerName:     o.CustomerName,
		CustomerEmail:    o.CustomerEmail,
		CustomerPhone:    textOrNil(o.CustomerPhone),
		ShippingAddress:  textOrNil(o.ShippingAddress),
		ShippingCity:     textOrNil(o.ShippingCity),
		ShippingState:    textOrNil(o.ShippingState),
		ShippingZip:      textOrNil(o.ShippingZip),
		TotalAmount:      numericToDecimal(o.TotalAmount).StringFixed(2),
		Status:           o.Status,
		PaymentReference: o.PaymentReference,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: numericToDecimal(it.UnitPrice).StringFixed(2),
			Quantity:  it.Quantity,
			Category:  it.Category,
		})
	}
	return resp
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		orders []database.Order
		err    error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		if !validOrderStatus(status) {
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		orders, err = h.store.ListOrdersByStatus(r.Context(), status)
	} else {
		orders, err = h.store.ListOrders(r.Context())
	}
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o, nil))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.store.GetOrder(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		log.Printf("ERROR: get order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	items, err := h.store.ListOrderItems(r.Context(), o.ID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, items))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validOrderStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	o, err := h.store.GetOrder(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		log.Printf("ERROR: get order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if orderTransitions[o.Status] != req.Status {
		writeError(w, http.StatusConflict, "cannot move order from "+o.Status+" to "+req.Status)
		return
	}

	updated, err := h.store.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
		ID:     o.ID,
		Status: req.Status,
	})
	if err != nil {
		log.Printf("ERROR: update order status: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.events.Broadcast(ws.EventOrderStatusChanged, map[string]string{
		"order_id": updated.ID.String(),
		"status":   updated.Status,
	})
	writeJSON(w, http.StatusOK, toOrderResponse(updated, nil))
}

func validOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusConfirmed, enum.OrderStatusShipped,
		enum.OrderStatusDelivered, enum.OrderStatusCancelled:
		return true
	}
	return false
}
