package catalog

import "time"

type Product struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Name        string    `json:"name"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	Unit        string    `json:"unit,omitempty"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	StockItemID *int64    `json:"stock_item_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Input is the raw, unvalidated form of a product.
type Input struct {
	Name        string
	Price       string
	Currency    string
	Unit        string
	Description string
	ImageURL    string
	StockItemID string
}
