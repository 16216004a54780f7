package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/three-sisters-oyster/api/internal/cart"
	"github.com/three-sisters-oyster/api/internal/database"
	"github.com/three-sisters-oyster/api/internal/enum"
	"github.com/three-sisters-oyster/api/internal/notify"
	"github.com/three-sisters-oyster/api/internal/payment"
)

// Errors returned by the checkout service.
var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrNonPositiveTotal   = errors.New("total must be greater than zero")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrPaymentNotSettled  = errors.New("payment has not succeeded")
	ErrAmountMismatch     = errors.New("payment amount does not match cart total")
	ErrMissingPaymentRef  = errors.New("payment reference is required")
	ErrOrderNotConfirmed  = errors.New("order recorded but inventory reconciliation failed")
	ErrMissingCustomField = errors.New("missing required customer field")
)

// OutOfStockError reports which cart lines cannot be fulfilled.
type OutOfStockError struct {
	Items []string
}

func (e *OutOfStockError) Error() string {
	return "out of stock: " + strings.Join(e.Items, ", ")
}

// Customer is the validated buyer information collected at checkout.
type Customer struct {
	Name    string
	Email   string
	Phone   string
	Address string
	City    string
	State   string
	ZipCode string
}

// Validate rejects blank required fields before any collaborator call.
func (c Customer) Validate() error {
	fields := []struct {
		name, value string
	}{
		{"name", c.Name},
		{"email", c.Email},
		{"phone", c.Phone},
		{"address", c.Address},
		{"city", c.City},
		{"state", c.State},
		{"zip_code", c.ZipCode},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s: %w", f.name, ErrMissingCustomField)
		}
	}
	return nil
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CheckoutStore defines the DB methods the checkout flow needs.
// Satisfied by *database.Queries (and its WithTx variant).
type CheckoutStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	DecrementStock(ctx context.Context, arg database.DecrementStockParams) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderByPaymentReference(ctx context.Context, paymentReference string) (database.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ConfirmPendingOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	EnqueueNotification(ctx context.Context, arg database.EnqueueNotificationParams) (database.Notification, error)
}

// NewCheckoutStore creates a CheckoutStore from a DBTX (pool or tx).
type NewCheckoutStore func(db database.DBTX) CheckoutStore

// CheckoutService drives the order-placement workflow: stock pre-check,
// payment intent creation, order recording, inventory reconciliation, and
// notification enqueueing.
type CheckoutService struct {
	pool     TxBeginner
	store    CheckoutStore
	newStore NewCheckoutStore
	payments payment.Provider
	currency string
}

func NewCheckoutService(pool TxBeginner, store CheckoutStore, newStore NewCheckoutStore, payments payment.Provider) *CheckoutService {
	return &CheckoutService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		payments: payments,
		currency: "usd",
	}
}

// CheckStock returns the names of cart lines that cannot be fulfilled.
// A missing product or a read error counts as unavailable (fails closed).
func (s *CheckoutService) CheckStock(ctx context.Context, lines []cart.Line) []string {
	var unavailable []string
	for _, l := range lines {
		p, err := s.store.GetProduct(ctx, l.ProductID)
		if err != nil || p.StockCount < l.Quantity {
			unavailable = append(unavailable, l.Name)
		}
	}
	return unavailable
}

// BeginCheckout validates the customer and cart, verifies stock, and
// requests a payment authorization for the cart total. Nothing is
// persisted; the returned intent carries the client secret the mobile SDK
// needs to collect the card.
func (s *CheckoutService) BeginCheckout(ctx context.Context, cust Customer, c *cart.Cart) (*payment.Intent, error) {
	if err := cust.Validate(); err != nil {
		return nil, err
	}
	if c == nil || c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	for _, l := range c.Lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%s: %w", l.Name, ErrInvalidQuantity)
		}
	}

	total := c.Total()
	if !total.IsPositive() {
		return nil, ErrNonPositiveTotal
	}

	if unavailable := s.CheckStock(ctx, c.Lines); len(unavailable) > 0 {
		return nil, &OutOfStockError{Items: unavailable}
	}

	intent, err := s.payments.CreateIntent(ctx, toMinorUnits(total), s.currency, map[string]string{
		"customer_name":  cust.Name,
		"customer_email": cust.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return intent, nil
}

// CompleteCheckout verifies the authorization is finalized, records the
// order, reconciles inventory, and enqueues notifications. Idempotent on
// the payment reference: a retry for an already-confirmed order returns it
// unchanged, and a retry for a pending order re-runs reconciliation only.
func (s *CheckoutService) CompleteCheckout(ctx context.Context, paymentRef string, cust Customer, c *cart.Cart) (*database.Order, error) {
	if paymentRef == "" {
		return nil, ErrMissingPaymentRef
	}
	if err := cust.Validate(); err != nil {
		return nil, err
	}

	intent, err := s.payments.GetIntent(ctx, paymentRef)
	if err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}
	if intent.Status != payment.StatusSucceeded {
		return nil, fmt.Errorf("%w: status %s", ErrPaymentNotSettled, intent.Status)
	}

	// Retry path: the order may already exist for this payment.
	existing, err := s.store.GetOrderByPaymentReference(ctx, intent.ID)
	switch {
	case err == nil:
		if existing.Status != enum.OrderStatusPending {
			return &existing, nil
		}
		return s.reconcile(ctx, existing)
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("look up order: %w", err)
	}

	if c == nil || c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	total := c.Total()
	if toMinorUnits(total) != intent.Amount {
		return nil, ErrAmountMismatch
	}

	order, err := s.recordOrder(ctx, cust, c, total, intent.ID)
	if err != nil {
		return nil, err
	}

	return s.reconcile(ctx, *order)
}

// ConfirmByPaymentReference is the webhook path: a succeeded payment event
// confirms the matching pending order. Returns nil without error when no
// order exists yet; the client completion call will pick it up.
func (s *CheckoutService) ConfirmByPaymentReference(ctx context.Context, paymentRef string) (*database.Order, error) {
	order, err := s.store.GetOrderByPaymentReference(ctx, paymentRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up order: %w", err)
	}
	if order.Status != enum.OrderStatusPending {
		return &order, nil
	}
	return s.reconcile(ctx, order)
}

// recordOrder writes the order and its line items in one transaction,
// status pending. This is the single point that must succeed before any
// stock is touched.
func (s *CheckoutService) recordOrder(ctx context.Context, cust Customer, c *cart.Cart, total decimal.Decimal, paymentRef string) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CustomerName:     cust.Name,
		CustomerEmail:    cust.Email,
		CustomerPhone:    pgtype.Text{String: cust.Phone, Valid: cust.Phone != ""},
		ShippingAddress:  pgtype.Text{String: cust.Address, Valid: true},
		ShippingCity:     pgtype.Text{String: cust.City, Valid: true},
		ShippingState:    pgtype.Text{String: cust.State, Valid: true},
		ShippingZip:      pgtype.Text{String: cust.ZipCode, Valid: true},
		TotalAmount:      decimalToNumeric(total),
		Status:           enum.OrderStatusPending,
		PaymentReference: paymentRef,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	for _, l := range c.Lines {
		if _, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:   order.ID,
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: decimalToNumeric(l.UnitPrice),
			Quantity:  l.Quantity,
			Category:  l.Category,
		}); err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &order, nil
}

// reconcile decrements stock for every line item, confirms the order, and
// enqueues the side-channel notifications, all in one transaction. When it
// fails the order stays pending and the caller may retry; payment is never
// reversed here.
func (s *CheckoutService) reconcile(ctx context.Context, order database.Order) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &order, fmt.Errorf("%w: begin tx: %v", ErrOrderNotConfirmed, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	items, err := store.ListOrderItems(ctx, order.ID)
	if err != nil {
		return &order, fmt.Errorf("%w: list items: %v", ErrOrderNotConfirmed, err)
	}

	for _, it := range items {
		if _, err := store.DecrementStock(ctx, database.DecrementStockParams{
			ID:       it.ProductID,
			Quantity: it.Quantity,
		}); err != nil {
			return &order, fmt.Errorf("%w: decrement stock for %s: %v", ErrOrderNotConfirmed, it.Name, err)
		}
	}

	confirmed, err := store.ConfirmPendingOrder(ctx, order.ID)
	if err != nil {
		// Lost the race with another reconciler; the order is already past
		// pending and its notifications are already queued.
		if errors.Is(err, pgx.ErrNoRows) {
			return &order, nil
		}
		return &order, fmt.Errorf("%w: confirm order: %v", ErrOrderNotConfirmed, err)
	}

	if err := s.enqueueNotifications(ctx, store, confirmed, items); err != nil {
		return &order, fmt.Errorf("%w: enqueue notifications: %v", ErrOrderNotConfirmed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return &order, fmt.Errorf("%w: commit tx: %v", ErrOrderNotConfirmed, err)
	}
	return &confirmed, nil
}

// enqueueNotifications writes the outbox rows: the admin email always, the
// fulfillment-partner submission only when the order contains merchandise.
func (s *CheckoutService) enqueueNotifications(ctx context.Context, store CheckoutStore, order database.Order, items []database.OrderItem) error {
	payload, err := json.Marshal(buildOrderPayload(order, items))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	if _, err := store.EnqueueNotification(ctx, database.EnqueueNotificationParams{
		Kind:    enum.NotificationKindOrderEmail,
		OrderID: order.ID,
		Payload: payload,
	}); err != nil {
		return err
	}

	hasMerch := false
	for _, it := range items {
		if it.Category == enum.ProductCategoryMerch {
			hasMerch = true
			break
		}
	}
	if !hasMerch {
		return nil
	}

	_, err = store.EnqueueNotification(ctx, database.EnqueueNotificationParams{
		Kind:    enum.NotificationKindDropship,
		OrderID: order.ID,
		Payload: payload,
	})
	return err
}

func buildOrderPayload(order database.Order, items []database.OrderItem) notify.OrderPayload {
	p := notify.OrderPayload{
		OrderID:       order.ID.String(),
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Total:         numericToDecimal(order.TotalAmount).StringFixed(2),
		PlacedAt:      order.CreatedAt,
	}
	if order.CustomerPhone.Valid {
		p.CustomerPhone = order.CustomerPhone.String
	}
	if order.ShippingAddress.Valid {
		p.Address = order.ShippingAddress.String
	}
	if order.ShippingCity.Valid {
		p.City = order.ShippingCity.String
	}
	if order.ShippingState.Valid {
		p.State = order.ShippingState.String
	}
	if order.ShippingZip.Valid {
		p.ZipCode = order.ShippingZip.String
	}
	for _, it := range items {
		p.Items = append(p.Items, notify.Item{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: numericToDecimal(it.UnitPrice).StringFixed(2),
			Category:  it.Category,
		})
	}
	return p
}

// --- Helpers ---

// toMinorUnits converts a dollar amount to cents for the payment
// collaborator. Prices carry two decimal places, so this is exact.
func toMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).IntPart()
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
