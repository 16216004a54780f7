package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, name, description, price, category, stock_count, image_url, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Category,
		&p.StockCount,
		&p.ImageUrl,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (q *Queries) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

type CreateProductParams struct {
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Category    string
	StockCount  int32
	ImageUrl    pgtype.Text
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO products (name, description, price, category, stock_count, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+productColumns,
		arg.Name, arg.Description, arg.Price, arg.Category, arg.StockCount, arg.ImageUrl,
	)
	return scanProduct(row)
}

type UpdateProductParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Category    string
	StockCount  int32
	ImageUrl    pgtype.Text
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, category = $5, stock_count = $6, image_url = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		arg.ID, arg.Name, arg.Description, arg.Price, arg.Category, arg.StockCount, arg.ImageUrl,
	)
	return scanProduct(row)
}

func (q *Queries) DeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, `DELETE FROM products WHERE id = $1 RETURNING id`, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}

type DecrementStockParams struct {
	ID       uuid.UUID
	Quantity int32
}

// DecrementStock floors at zero so a late purchase of an already-drained
// product never drives the count negative. The single conditional UPDATE
// also serializes concurrent purchasers of the same product.
func (q *Queries) DecrementStock(ctx context.Context, arg DecrementStockParams) (int32, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE products
		SET stock_count = GREATEST(stock_count - $2, 0), updated_at = now()
		WHERE id = $1
		RETURNING stock_count`,
		arg.ID, arg.Quantity,
	)
	var remaining int32
	err := row.Scan(&remaining)
	return remaining, err
}

func (q *Queries) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	return n, err
}
