package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const inventoryColumns = `id, variety_name, location_class, count, health, size, age, location, harvest_ready, price_per_dozen, created_at, updated_at`

func scanInventoryItem(row pgx.Row) (InventoryItem, error) {
	var it InventoryItem
	err := row.Scan(
		&it.ID,
		&it.VarietyName,
		&it.LocationClass,
		&it.Count,
		&it.Health,
		&it.Size,
		&it.Age,
		&it.Location,
		&it.HarvestReady,
		&it.PricePerDozen,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	return it, err
}

func (q *Queries) collectInventory(rows pgx.Rows) ([]InventoryItem, error) {
	defer rows.Close()
	var items []InventoryItem
	for rows.Next() {
		it, err := scanInventoryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (q *Queries) ListInventory(ctx context.Context) ([]InventoryItem, error) {
	rows, err := q.db.Query(ctx, `SELECT `+inventoryColumns+` FROM inventory ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return q.collectInventory(rows)
}

func (q *Queries) ListInventoryByClass(ctx context.Context, locationClass string) ([]InventoryItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+inventoryColumns+` FROM inventory
		WHERE location_class = $1
		ORDER BY created_at DESC`,
		locationClass,
	)
	if err != nil {
		return nil, err
	}
	return q.collectInventory(rows)
}

func (q *Queries) GetInventoryItem(ctx context.Context, id uuid.UUID) (InventoryItem, error) {
	row := q.db.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE id = $1`, id)
	return scanInventoryItem(row)
}

type CreateInventoryItemParams struct {
	VarietyName   string
	LocationClass string
	Count         int32
	Health        pgtype.Text
	Size          pgtype.Text
	Age           pgtype.Text
	Location      pgtype.Text
	HarvestReady  pgtype.Bool
	PricePerDozen pgtype.Numeric
}

func (q *Queries) CreateInventoryItem(ctx context.Context, arg CreateInventoryItemParams) (InventoryItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO inventory (variety_name, location_class, count, health, size, age, location, harvest_ready, price_per_dozen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+inventoryColumns,
		arg.VarietyName, arg.LocationClass, arg.Count, arg.Health,
		arg.Size, arg.Age, arg.Location, arg.HarvestReady, arg.PricePerDozen,
	)
	return scanInventoryItem(row)
}

type UpdateInventoryItemParams struct {
	ID            uuid.UUID
	VarietyName   string
	LocationClass string
	Count         int32
	Health        pgtype.Text
	Size          pgtype.Text
	Age           pgtype.Text
	Location      pgtype.Text
	HarvestReady  pgtype.Bool
	PricePerDozen pgtype.Numeric
}

func (q *Queries) UpdateInventoryItem(ctx context.Context, arg UpdateInventoryItemParams) (InventoryItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE inventory
		SET variety_name = $2, location_class = $3, count = $4, health = $5,
		    size = $6, age = $7, location = $8, harvest_ready = $9, price_per_dozen = $10,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+inventoryColumns,
		arg.ID, arg.VarietyName, arg.LocationClass, arg.Count, arg.Health,
		arg.Size, arg.Age, arg.Location, arg.HarvestReady, arg.PricePerDozen,
	)
	return scanInventoryItem(row)
}

func (q *Queries) DeleteInventoryItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, `DELETE FROM inventory WHERE id = $1 RETURNING id`, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}

func (q *Queries) SumInventoryByClass(ctx context.Context, locationClass string) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(count), 0) FROM inventory WHERE location_class = $1`,
		locationClass,
	).Scan(&total)
	return total, err
}
