package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Product struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Category    string
	StockCount  int32
	ImageUrl    pgtype.Text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// InventoryItem is a farm or nursery stock record. Nursery rows use
// Size/Age, farm rows use Location/HarvestReady/PricePerDozen; the
// handler layer enforces which attributes belong to which class.
type InventoryItem struct {
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
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Order struct {
	ID               uuid.UUID
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
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Name      string
	UnitPrice pgtype.Numeric
	Quantity  int32
	Category  string
}

// Notification is one outbox row: a side-channel task recorded in the
// same transaction as the order change that caused it.
type Notification struct {
	ID            uuid.UUID
	Kind          string
	OrderID       uuid.UUID
	Payload       []byte
	Status        string
	Attempts      int32
	NextAttemptAt time.Time
	LastError     pgtype.Text
	CreatedAt     time.Time
}
