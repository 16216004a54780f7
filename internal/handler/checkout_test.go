package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/three-sisters-oyster/api/internal/cart"
	"github.com/three-sisters-oyster/api/internal/database"
	"github.com/three-sisters-oyster/api/internal/enum"
	"github.com/three-sisters-oyster/api/internal/handler"
	"github.com/three-sisters-oyster/api/internal/payment"
	"github.com/three-sisters-oyster/api/internal/service"
)

type stubFlow struct {
	intent      *payment.Intent
	beginErr    error
	order       *database.Order
	completeErr error
}

func (f *stubFlow) BeginCheckout(context.Context, service.Customer, *cart.Cart) (*payment.Intent, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.intent, nil
}

func (f *stubFlow) CompleteCheckout(context.Context, string, service.Customer, *cart.Cart) (*database.Order, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return f.order, nil
}

func setupCheckoutRouter(flow *stubFlow, carts *memCartStore, events *stubEvents) *chi.Mux {
	h := handler.NewCheckoutHandler(flow, carts, events)
	r := chi.NewRouter()
	r.Route("/checkout", h.RegisterRoutes)
	return r
}

func validCustomerBody() map[string]interface{} {
	return map[string]interface{}{
		"customer": map[string]string{
			"name": "Pat Rivera", "email": "pat@example.com", "phone": "555-0101",
			"address": "12 Harbor Rd", "city": "Port Haven", "state": "ME", "zip_code": "04101",
		},
	}
}

func TestCreatePaymentIntent_MissingSession(t *testing.T) {
	router := setupCheckoutRouter(&stubFlow{}, newMemCartStore(), &stubEvents{})

	rr := doRequest(t, router, "POST", "/checkout/payment-intent", validCustomerBody())
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreatePaymentIntent_Success(t *testing.T) {
	flow := &stubFlow{intent: &payment.Intent{
		ID:           "pi_test_123",
		ClientSecret: "pi_test_123_secret",
		Amount:       24000,
		Currency:     "usd",
		Status:       payment.StatusRequiresAction,
	}}
	router := setupCheckoutRouter(flow, newMemCartStore(), &stubEvents{})

	rr := doSessionRequest(t, router, "POST", "/checkout/payment-intent", "sess-1", validCustomerBody())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeMapResponse(t, rr)
	if resp["client_secret"] != "pi_test_123_secret" {
		t.Errorf("client_secret: got %v", resp["client_secret"])
	}
	if resp["amount"] != float64(24000) {
		t.Errorf("amount: got %v, want 24000", resp["amount"])
	}
}

func TestCreatePaymentIntent_OutOfStock(t *testing.T) {
	flow := &stubFlow{beginErr: &service.OutOfStockError{Items: []string{"Logo T-Shirt"}}}
	router := setupCheckoutRouter(flow, newMemCartStore(), &stubEvents{})

	rr := doSessionRequest(t, router, "POST", "/checkout/payment-intent", "sess-1", validCustomerBody())
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}

	resp := decodeMapResponse(t, rr)
	items, ok := resp["unavailable_items"].([]interface{})
	if !ok || len(items) != 1 || items[0] != "Logo T-Shirt" {
		t.Errorf("unavailable_items: got %v", resp["unavailable_items"])
	}
}

func TestCreatePaymentIntent_ValidationErrorIs400(t *testing.T) {
	flow := &stubFlow{beginErr: service.ErrEmptyCart}
	router := setupCheckoutRouter(flow, newMemCartStore(), &stubEvents{})

	rr := doSessionRequest(t, router, "POST", "/checkout/payment-intent", "sess-1", validCustomerBody())
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestComplete_Success(t *testing.T) {
	orderID := uuid.New()
	flow := &stubFlow{order: &database.Order{
		ID:               orderID,
		CustomerName:     "Pat Rivera",
		CustomerEmail:    "pat@example.com",
		TotalAmount:      testNumeric("240.00"),
		Status:           enum.OrderStatusConfirmed,
		PaymentReference: "pi_test_123",
	}}
	carts := newMemCartStore()
	carts.carts["sess-1"] = &cart.Cart{SessionID: "sess-1", Lines: []cart.Line{{
		ProductID: uuid.New(), Name: "Fresh Oysters - Dozen",
		UnitPrice: decimal.RequireFromString("120.00"), Quantity: 2,
		Category: enum.ProductCategoryOyster,
	}}}
	events := &stubEvents{}
	router := setupCheckoutRouter(flow, carts, events)

	body := validCustomerBody()
	body["payment_intent_id"] = "pi_test_123"
	rr := doSessionRequest(t, router, "POST", "/checkout/complete", "sess-1", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeMapResponse(t, rr)
	if resp["id"] != orderID.String() {
		t.Errorf("order id: got %v", resp["id"])
	}
	if resp["status"] != enum.OrderStatusConfirmed {
		t.Errorf("status: got %v", resp["status"])
	}
	if _, ok := carts.carts["sess-1"]; ok {
		t.Errorf("cart not cleared after successful checkout")
	}
	if len(events.types) != 2 {
		t.Fatalf("broadcasts: got %v", events.types)
	}
	if events.types[0] != "order.created" || events.types[1] != "inventory.updated" {
		t.Errorf("broadcasts: got %v", events.types)
	}
}

func TestComplete_UnsettledPaymentIs409(t *testing.T) {
	flow := &stubFlow{completeErr: service.ErrPaymentNotSettled}
	carts := newMemCartStore()
	carts.carts["sess-1"] = &cart.Cart{SessionID: "sess-1", Lines: []cart.Line{{
		ProductID: uuid.New(), Name: "Fresh Oysters - Dozen",
		UnitPrice: decimal.RequireFromString("24.00"), Quantity: 1,
	}}}
	router := setupCheckoutRouter(flow, carts, &stubEvents{})

	body := validCustomerBody()
	body["payment_intent_id"] = "pi_test_123"
	rr := doSessionRequest(t, router, "POST", "/checkout/complete", "sess-1", body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
	if _, ok := carts.carts["sess-1"]; !ok {
		t.Errorf("cart cleared despite failed checkout")
	}
}

func TestComplete_ReconciliationFailureIsRetryable500(t *testing.T) {
	flow := &stubFlow{completeErr: service.ErrOrderNotConfirmed}
	router := setupCheckoutRouter(flow, newMemCartStore(), &stubEvents{})

	body := validCustomerBody()
	body["payment_intent_id"] = "pi_test_123"
	rr := doSessionRequest(t, router, "POST", "/checkout/complete", "sess-1", body)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}
