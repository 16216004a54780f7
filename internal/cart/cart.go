package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is one product/quantity pair in a session cart. Name and price are
// snapshotted from the product at add time so the cart renders without a
// catalog lookup.
type Line struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int32           `json:"quantity"`
	Category  string          `json:"category"`
}

// Cart is the session-scoped shopping cart. It lives in Redis as a JSON
// blob and is destroyed on checkout success or explicit clear.
type Cart struct {
	SessionID string    `json:"session_id"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Total recomputes Σ(unit_price × quantity) on every call; the total is
// never stored.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity)))
	}
	return total
}

// Upsert adds the line or replaces the existing line for the same product.
// A non-positive quantity removes the line.
func (c *Cart) Upsert(line Line) {
	if line.Quantity <= 0 {
		c.Remove(line.ProductID)
		return
	}
	for i, l := range c.Lines {
		if l.ProductID == line.ProductID {
			c.Lines[i] = line
			return
		}
	}
	c.Lines = append(c.Lines, line)
}

// SetQuantity updates the quantity of an existing line; zero removes it.
// Reports whether the product was present.
func (c *Cart) SetQuantity(productID uuid.UUID, quantity int32) bool {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			if quantity <= 0 {
				c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			} else {
				c.Lines[i].Quantity = quantity
			}
			return true
		}
	}
	return false
}

// Remove deletes the line for the product. Reports whether it was present.
func (c *Cart) Remove(productID uuid.UUID) bool {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}
