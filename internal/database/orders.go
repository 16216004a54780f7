package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, customer_name, customer_email, customer_phone, shipping_address, shipping_city, shipping_state, shipping_zip, total_amount, status, payment_reference, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.CustomerPhone,
		&o.ShippingAddress,
		&o.ShippingCity,
		&o.ShippingState,
		&o.ShippingZip,
		&o.TotalAmount,
		&o.Status,
		&o.PaymentReference,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

func (q *Queries) collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type CreateOrderParams struct {
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    pgtype.Text
	ShippingAddress  pgtype.Text
	ShippingCity     pgtype.Text
	ShippingState    pgtype.Text
	ShippingZip      pgtype.Text
	TotalAmount      pgtype.Numeric
	Status           string
	PaymentReference string
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (customer_name, customer_email, customer_phone, shipping_address, shipping_city, shipping_state, shipping_zip, total_amount, status, payment_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+orderColumns,
		arg.CustomerName, arg.CustomerEmail, arg.CustomerPhone,
		arg.ShippingAddress, arg.ShippingCity, arg.ShippingState, arg.ShippingZip,
		arg.TotalAmount, arg.Status, arg.PaymentReference,
	)
	return scanOrder(row)
}

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Name      string
	UnitPrice pgtype.Numeric
	Quantity  int32
	Category  string
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, name, unit_price, quantity, category)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, order_id, product_id, name, unit_price, quantity, category`,
		arg.OrderID, arg.ProductID, arg.Name, arg.UnitPrice, arg.Quantity, arg.Category,
	)
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Quantity, &it.Category)
	return it, err
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (q *Queries) GetOrderByPaymentReference(ctx context.Context, paymentReference string) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_reference = $1`, paymentReference)
	return scanOrder(row)
}

func (q *Queries) ListOrders(ctx context.Context) ([]Order, error) {
	rows, err := q.db.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return q.collectOrders(rows)
}

func (q *Queries) ListOrdersByStatus(ctx context.Context, status string) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1
		ORDER BY created_at DESC`,
		status,
	)
	if err != nil {
		return nil, err
	}
	return q.collectOrders(rows)
}

func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, product_id, name, unit_price, quantity, category
		FROM order_items
		WHERE order_id = $1
		ORDER BY name`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Quantity, &it.Category); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type UpdateOrderStatusParams struct {
	ID     uuid.UUID
	Status string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		arg.ID, arg.Status,
	)
	return scanOrder(row)
}

// ConfirmPendingOrder advances pending -> confirmed. Returns pgx.ErrNoRows
// when the order is missing or already past pending, which keeps the
// reconciliation path idempotent.
func (q *Queries) ConfirmPendingOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET status = 'confirmed', updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+orderColumns,
		id,
	)
	return scanOrder(row)
}
