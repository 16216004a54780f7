package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/three-sisters-oyster/api/internal/cart"
	"github.com/three-sisters-oyster/api/internal/database"
	"github.com/three-sisters-oyster/api/internal/enum"
	"github.com/three-sisters-oyster/api/internal/payment"
	"github.com/three-sisters-oyster/api/internal/service"
)

// --- Fakes ---

// fakeTx satisfies pgx.Tx for the two methods the service calls; the
// embedded interface panics on anything else, which would flag a logic
// change in the service.
type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type fakePool struct{}

func (fakePool) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

type stubProvider struct {
	createdAmounts []int64
	createErr      error
	intent         *payment.Intent
	getErr         error
}

func (p *stubProvider) CreateIntent(_ context.Context, amount int64, currency string, _ map[string]string) (*payment.Intent, error) {
	p.createdAmounts = append(p.createdAmounts, amount)
	if p.createErr != nil {
		return nil, p.createErr
	}
	return &payment.Intent{
		ID:           "pi_test_123",
		ClientSecret: "pi_test_123_secret",
		Amount:       amount,
		Currency:     currency,
		Status:       payment.StatusRequiresAction,
	}, nil
}

func (p *stubProvider) GetIntent(context.Context, string) (*payment.Intent, error) {
	if p.getErr != nil {
		return nil, p.getErr
	}
	return p.intent, nil
}

type stubStore struct {
	products     map[uuid.UUID]database.Product
	orders       map[uuid.UUID]database.Order
	itemsByOrder map[uuid.UUID][]database.OrderItem
	enqueued     []database.Notification

	getProductCalls int
}

func newStubStore() *stubStore {
	return &stubStore{
		products:     make(map[uuid.UUID]database.Product),
		orders:       make(map[uuid.UUID]database.Order),
		itemsByOrder: make(map[uuid.UUID][]database.OrderItem),
	}
}

func (s *stubStore) GetProduct(_ context.Context, id uuid.UUID) (database.Product, error) {
	s.getProductCalls++
	p, ok := s.products[id]
	if !ok {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *stubStore) DecrementStock(_ context.Context, arg database.DecrementStockParams) (int32, error) {
	p, ok := s.products[arg.ID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	p.StockCount -= arg.Quantity
	if p.StockCount < 0 {
		p.StockCount = 0
	}
	s.products[arg.ID] = p
	return p.StockCount, nil
}

func (s *stubStore) CreateOrder(_ context.Context, arg database.CreateOrderParams) (database.Order, error) {
	now := time.Now()
	o := database.Order{
		ID:               uuid.New(),
		CustomerName:     arg.CustomerName,
		CustomerEmail:    arg.CustomerEmail,
		CustomerPhone:    arg.CustomerPhone,
		ShippingAddress:  arg.ShippingAddress,
		ShippingCity:     arg.ShippingCity,
		ShippingState:    arg.ShippingState,
		ShippingZip:      arg.ShippingZip,
		TotalAmount:      arg.TotalAmount,
		Status:           arg.Status,
		PaymentReference: arg.PaymentReference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.orders[o.ID] = o
	return o, nil
}

func (s *stubStore) CreateOrderItem(_ context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	it := database.OrderItem{
		ID:        uuid.New(),
		OrderID:   arg.OrderID,
		ProductID: arg.ProductID,
		Name:      arg.Name,
		UnitPrice: arg.UnitPrice,
		Quantity:  arg.Quantity,
		Category:  arg.Category,
	}
	s.itemsByOrder[arg.OrderID] = append(s.itemsByOrder[arg.OrderID], it)
	return it, nil
}

func (s *stubStore) GetOrderByPaymentReference(_ context.Context, ref string) (database.Order, error) {
	for _, o := range s.orders {
		if o.PaymentReference == ref {
			return o, nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (s *stubStore) ListOrderItems(_ context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return s.itemsByOrder[orderID], nil
}

func (s *stubStore) ConfirmPendingOrder(_ context.Context, id uuid.UUID) (database.Order, error) {
	o, ok := s.orders[id]
	if !ok || o.Status != enum.OrderStatusPending {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = enum.OrderStatusConfirmed
	s.orders[id] = o
	return o, nil
}

func (s *stubStore) EnqueueNotification(_ context.Context, arg database.EnqueueNotificationParams) (database.Notification, error) {
	n := database.Notification{
		ID:      uuid.New(),
		Kind:    arg.Kind,
		OrderID: arg.OrderID,
		Payload: arg.Payload,
		Status:  enum.NotificationStatusPending,
	}
	s.enqueued = append(s.enqueued, n)
	return n, nil
}

func (s *stubStore) kindsEnqueued() []string {
	var kinds []string
	for _, n := range s.enqueued {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

// --- Helpers ---

func testNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func testCustomer() service.Customer {
	return service.Customer{
		Name:    "Pat Rivera",
		Email:   "pat@example.com",
		Phone:   "555-0101",
		Address: "12 Harbor Rd",
		City:    "Port Haven",
		State:   "ME",
		ZipCode: "04101",
	}
}

func addProduct(s *stubStore, name, price string, category string, stock int32) database.Product {
	p := database.Product{
		ID:         uuid.New(),
		Name:       name,
		Price:      testNumeric(price),
		Category:   category,
		StockCount: stock,
	}
	s.products[p.ID] = p
	return p
}

func cartWith(lines ...cart.Line) *cart.Cart {
	return &cart.Cart{SessionID: "sess-1", Lines: lines}
}

func lineFor(p database.Product, qty int32) cart.Line {
	price, _ := decimal.NewFromString("0")
	if v, err := p.Price.Value(); err == nil && v != nil {
		price, _ = decimal.NewFromString(v.(string))
	}
	return cart.Line{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: price,
		Quantity:  qty,
		Category:  p.Category,
	}
}

func newService(store *stubStore, provider *stubProvider) *service.CheckoutService {
	return service.NewCheckoutService(fakePool{}, store, func(database.DBTX) service.CheckoutStore {
		return store
	}, provider)
}

// --- BeginCheckout ---

func TestBeginCheckout_BlankCustomerFieldRejectedBeforeAnyCall(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{}
	svc := newService(store, provider)

	p := addProduct(store, "Fresh Oysters - Dozen", "24.00", enum.ProductCategoryOyster, 10)
	c := cartWith(lineFor(p, 1))

	cust := testCustomer()
	cust.Phone = "   "

	_, err := svc.BeginCheckout(context.Background(), cust, c)
	if !errors.Is(err, service.ErrMissingCustomField) {
		t.Fatalf("expected ErrMissingCustomField, got %v", err)
	}
	if len(provider.createdAmounts) != 0 {
		t.Errorf("payment intent created despite invalid customer")
	}
	if store.getProductCalls != 0 {
		t.Errorf("stock checked despite invalid customer")
	}
}

func TestBeginCheckout_EmptyCart(t *testing.T) {
	svc := newService(newStubStore(), &stubProvider{})

	_, err := svc.BeginCheckout(context.Background(), testCustomer(), cartWith())
	if !errors.Is(err, service.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestBeginCheckout_ZeroTotalRejected(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{}
	svc := newService(store, provider)

	p := addProduct(store, "Free Sticker", "0.00", enum.ProductCategoryMerch, 10)
	_, err := svc.BeginCheckout(context.Background(), testCustomer(), cartWith(lineFor(p, 1)))
	if !errors.Is(err, service.ErrNonPositiveTotal) {
		t.Fatalf("expected ErrNonPositiveTotal, got %v", err)
	}
	if len(provider.createdAmounts) != 0 {
		t.Errorf("payment intent created for zero total")
	}
}

func TestBeginCheckout_InsufficientStock(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{}
	svc := newService(store, provider)

	p := addProduct(store, "Logo T-Shirt", "25.00", enum.ProductCategoryMerch, 1)
	_, err := svc.BeginCheckout(context.Background(), testCustomer(), cartWith(lineFor(p, 2)))

	var oos *service.OutOfStockError
	if !errors.As(err, &oos) {
		t.Fatalf("expected OutOfStockError, got %v", err)
	}
	if len(oos.Items) != 1 || oos.Items[0] != "Logo T-Shirt" {
		t.Errorf("unexpected unavailable items: %v", oos.Items)
	}
	if len(provider.createdAmounts) != 0 {
		t.Errorf("payment intent created despite stock shortfall")
	}
}

func TestBeginCheckout_CreatesIntentForCartTotal(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{}
	svc := newService(store, provider)

	p := addProduct(store, "Fresh Oysters - Dozen", "120.00", enum.ProductCategoryOyster, 500)
	intent, err := svc.BeginCheckout(context.Background(), testCustomer(), cartWith(lineFor(p, 2)))
	if err != nil {
		t.Fatalf("BeginCheckout: %v", err)
	}

	if intent.Amount != 24000 {
		t.Errorf("amount: got %d cents, want 24000", intent.Amount)
	}
	if intent.ClientSecret == "" {
		t.Errorf("expected a client secret")
	}
	if store.products[p.ID].StockCount != 500 {
		t.Errorf("stock changed during intent creation: got %d", store.products[p.ID].StockCount)
	}
	if len(store.orders) != 0 {
		t.Errorf("order recorded before payment settled")
	}
}

// --- CompleteCheckout ---

func TestCompleteCheckout_MissingPaymentReference(t *testing.T) {
	svc := newService(newStubStore(), &stubProvider{})

	_, err := svc.CompleteCheckout(context.Background(), "", testCustomer(), cartWith())
	if !errors.Is(err, service.ErrMissingPaymentRef) {
		t.Fatalf("expected ErrMissingPaymentRef, got %v", err)
	}
}

func TestCompleteCheckout_UnsettledPaymentRecordsNothing(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{intent: &payment.Intent{
		ID:     "pi_test_123",
		Amount: 24000,
		Status: payment.StatusRequiresAction,
	}}
	svc := newService(store, provider)

	p := addProduct(store, "Fresh Oysters - Dozen", "120.00", enum.ProductCategoryOyster, 500)
	_, err := svc.CompleteCheckout(context.Background(), "pi_test_123", testCustomer(), cartWith(lineFor(p, 2)))
	if !errors.Is(err, service.ErrPaymentNotSettled) {
		t.Fatalf("expected ErrPaymentNotSettled, got %v", err)
	}
	if len(store.orders) != 0 {
		t.Errorf("order recorded for unsettled payment")
	}
	if store.products[p.ID].StockCount != 500 {
		t.Errorf("stock touched for unsettled payment")
	}
}

func TestCompleteCheckout_AmountMismatch(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{intent: &payment.Intent{
		ID:     "pi_test_123",
		Amount: 100, // cart totals 24000
		Status: payment.StatusSucceeded,
	}}
	svc := newService(store, provider)

	p := addProduct(store, "Fresh Oysters - Dozen", "120.00", enum.ProductCategoryOyster, 500)
	_, err := svc.CompleteCheckout(context.Background(), "pi_test_123", testCustomer(), cartWith(lineFor(p, 2)))
	if !errors.Is(err, service.ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
	if len(store.orders) != 0 {
		t.Errorf("order recorded despite amount mismatch")
	}
}

func TestCompleteCheckout_RecordsConfirmsAndReconciles(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{intent: &payment.Intent{
		ID:     "pi_test_123",
		Amount: 24000,
		Status: payment.StatusSucceeded,
	}}
	svc := newService(store, provider)

	p := addProduct(store, "Fresh Oysters - Dozen", "120.00", enum.ProductCategoryOyster, 500)
	order, err := svc.CompleteCheckout(context.Background(), "pi_test_123", testCustomer(), cartWith(lineFor(p, 2)))
	if err != nil {
		t.Fatalf("CompleteCheckout: %v", err)
	}

	if order.Status != enum.OrderStatusConfirmed {
		t.Errorf("status: got %s, want confirmed", order.Status)
	}
	if order.PaymentReference != "pi_test_123" {
		t.Errorf("payment reference: got %s", order.PaymentReference)
	}
	if got := store.products[p.ID].StockCount; got != 498 {
		t.Errorf("stock: got %d, want 498", got)
	}
	if len(store.itemsByOrder[order.ID]) != 1 {
		t.Fatalf("expected 1 order item, got %d", len(store.itemsByOrder[order.ID]))
	}

	kinds := store.kindsEnqueued()
	if len(kinds) != 1 || kinds[0] != enum.NotificationKindOrderEmail {
		t.Errorf("notifications: got %v, want only order_email", kinds)
	}
}

func TestCompleteCheckout_MerchEnqueuesDropship(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{intent: &payment.Intent{
		ID:     "pi_test_456",
		Amount: 7400, // 24.00 + 2 x 25.00
		Status: payment.StatusSucceeded,
	}}
	svc := newService(store, provider)

	oysters := addProduct(store, "Fresh Oysters - Dozen", "24.00", enum.ProductCategoryOyster, 40)
	shirt := addProduct(store, "Logo T-Shirt", "25.00", enum.ProductCategoryMerch, 25)

	order, err := svc.CompleteCheckout(context.Background(), "pi_test_456", testCustomer(),
		cartWith(lineFor(oysters, 1), lineFor(shirt, 2)))
	if err != nil {
		t.Fatalf("CompleteCheckout: %v", err)
	}

	if got := store.products[shirt.ID].StockCount; got != 23 {
		t.Errorf("shirt stock: got %d, want 23", got)
	}
	if got := store.products[oysters.ID].StockCount; got != 39 {
		t.Errorf("oyster stock: got %d, want 39", got)
	}

	kinds := store.kindsEnqueued()
	if len(kinds) != 2 {
		t.Fatalf("notifications: got %v, want order_email and dropship_order", kinds)
	}
	hasEmail, hasDropship := false, false
	for _, k := range kinds {
		switch k {
		case enum.NotificationKindOrderEmail:
			hasEmail = true
		case enum.NotificationKindDropship:
			hasDropship = true
		}
	}
	if !hasEmail || !hasDropship {
		t.Errorf("notifications: got %v", kinds)
	}
	if len(store.itemsByOrder[order.ID]) != 2 {
		t.Errorf("expected 2 order items, got %d", len(store.itemsByOrder[order.ID]))
	}
}

func TestCompleteCheckout_IdempotentOnPaymentReference(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{intent: &payment.Intent{
		ID:     "pi_test_123",
		Amount: 24000,
		Status: payment.StatusSucceeded,
	}}
	svc := newService(store, provider)

	p := addProduct(store, "Fresh Oysters - Dozen", "120.00", enum.ProductCategoryOyster, 500)
	c := cartWith(lineFor(p, 2))

	first, err := svc.CompleteCheckout(context.Background(), "pi_test_123", testCustomer(), c)
	if err != nil {
		t.Fatalf("first CompleteCheckout: %v", err)
	}
	second, err := svc.CompleteCheckout(context.Background(), "pi_test_123", testCustomer(), c)
	if err != nil {
		t.Fatalf("second CompleteCheckout: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("retry created a new order: %s vs %s", first.ID, second.ID)
	}
	if len(store.orders) != 1 {
		t.Errorf("expected 1 order, got %d", len(store.orders))
	}
	if got := store.products[p.ID].StockCount; got != 498 {
		t.Errorf("stock decremented more than once: got %d, want 498", got)
	}
	if got := len(store.enqueued); got != 1 {
		t.Errorf("notifications duplicated: got %d", got)
	}
}

// --- ConfirmByPaymentReference ---

func TestConfirmByPaymentReference_NoOrderYet(t *testing.T) {
	svc := newService(newStubStore(), &stubProvider{})

	order, err := svc.ConfirmByPaymentReference(context.Background(), "pi_unknown")
	if err != nil {
		t.Fatalf("ConfirmByPaymentReference: %v", err)
	}
	if order != nil {
		t.Errorf("expected nil order for unknown reference")
	}
}

func TestConfirmByPaymentReference_ConfirmsPendingOrder(t *testing.T) {
	store := newStubStore()
	svc := newService(store, &stubProvider{})

	p := addProduct(store, "Fresh Oysters - Dozen", "24.00", enum.ProductCategoryOyster, 10)
	order, _ := store.CreateOrder(context.Background(), database.CreateOrderParams{
		CustomerName:     "Pat Rivera",
		CustomerEmail:    "pat@example.com",
		TotalAmount:      testNumeric("24.00"),
		Status:           enum.OrderStatusPending,
		PaymentReference: "pi_test_789",
	})
	store.itemsByOrder[order.ID] = []database.OrderItem{{
		ID: uuid.New(), OrderID: order.ID, ProductID: p.ID,
		Name: p.Name, UnitPrice: testNumeric("24.00"), Quantity: 1, Category: p.Category,
	}}

	confirmed, err := svc.ConfirmByPaymentReference(context.Background(), "pi_test_789")
	if err != nil {
		t.Fatalf("ConfirmByPaymentReference: %v", err)
	}
	if confirmed.Status != enum.OrderStatusConfirmed {
		t.Errorf("status: got %s, want confirmed", confirmed.Status)
	}
	if got := store.products[p.ID].StockCount; got != 9 {
		t.Errorf("stock: got %d, want 9", got)
	}
}
