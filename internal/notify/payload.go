package notify

import "time"

// OrderPayload is the JSON body stored in the notifications outbox. It is
// self-contained so delivery never needs to re-read order rows.
type OrderPayload struct {
	OrderID       string    `json:"order_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	City          string    `json:"city,omitempty"`
	State         string    `json:"state,omitempty"`
	ZipCode       string    `json:"zip_code,omitempty"`
	Items         []Item    `json:"items"`
	Total         string    `json:"total"`
	PlacedAt      time.Time `json:"placed_at"`
}

type Item struct {
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Category  string `json:"category"`
}
