package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/three-sisters-oyster/api/internal/cart"
	"github.com/three-sisters-oyster/api/internal/database"
	"github.com/three-sisters-oyster/api/internal/payment"
	"github.com/three-sisters-oyster/api/internal/service"
	"github.com/three-sisters-oyster/api/internal/ws"
)

// CheckoutFlow is the order-placement workflow. Satisfied by
// *service.CheckoutService.
type CheckoutFlow interface {
	BeginCheckout(ctx context.Context, cust service.Customer, c *cart.Cart) (*payment.Intent, error)
	CompleteCheckout(ctx context.Context, paymentRef string, cust service.Customer, c *cart.Cart) (*database.Order, error)
}

type CheckoutHandler struct {
	flow   CheckoutFlow
	carts  CartStore
	events Broadcaster
}

func NewCheckoutHandler(flow CheckoutFlow, carts CartStore, events Broadcaster) *CheckoutHandler {
	return &CheckoutHandler{flow: flow, carts: carts, events: events}
}

func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/payment-intent", h.CreatePaymentIntent)
	r.Post("/complete", h.Complete)
}

type customerRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
}

func (c customerRequest) toCustomer() service.Customer {
	return service.Customer{
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Address: c.Address,
		City:    c.City,
		State:   c.State,
		ZipCode: c.ZipCode,
	}
}

type createIntentRequest struct {
	Customer customerRequest `json:"customer"`
}

type createIntentResponse struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
}

func (h *CheckoutHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req createIntentRequest
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

	intent, err := h.flow.BeginCheckout(r.Context(), req.Customer.toCustomer(), c)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createIntentResponse{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		Status:          intent.Status,
	})
}

type completeRequest struct {
	PaymentIntentID string          `json:"payment_intent_id"`
	Customer        customerRequest `json:"customer"`
}

func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req completeRequest
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

	order, err := h.flow.CompleteCheckout(r.Context(), req.PaymentIntentID, req.Customer.toCustomer(), c)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}

	// The cart is spent. A clear failure only means the shopper sees stale
	// lines until the TTL runs out.
	if err := h.carts.Clear(r.Context(), sid); err != nil {
		log.Printf("ERROR: clear cart after checkout: %v", err)
	}

	h.events.Broadcast(ws.EventOrderCreated, map[string]string{
		"order_id": order.ID.String(),
		"total":    numericToDecimal(order.TotalAmount).StringFixed(2),
	})
	h.events.Broadcast(ws.EventInventoryUpdated, map[string]string{"order_id": order.ID.String()})

	writeJSON(w, http.StatusCreated, toOrderResponse(*order, nil))
}

// writeCheckoutError maps workflow errors onto HTTP statuses. Buyer
// mistakes are 400s, contention is 409, and anything else stays a generic
// retryable 500; error details never leak past the log.
func writeCheckoutError(w http.ResponseWriter, err error) {
	var oos *service.OutOfStockError

	switch {
	case errors.As(err, &oos):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":             "out of stock",
			"unavailable_items": oos.Items,
		})
	case errors.Is(err, service.ErrMissingCustomField),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrNonPositiveTotal),
		errors.Is(err, service.ErrMissingPaymentRef):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrPaymentNotSettled),
		errors.Is(err, service.ErrAmountMismatch):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrOrderNotConfirmed):
		log.Printf("ERROR: checkout: %v", err)
		writeError(w, http.StatusInternalServerError, "order processing failed, please retry")
	default:
		log.Printf("ERROR: checkout: %v", err)
		writeError(w, http.StatusInternalServerError, "checkout failed, please retry")
	}
}
