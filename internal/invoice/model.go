package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	DNI     string `json:"dni,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type Invoice struct {
	ID            int64     `json:"id"`
	OwnerID       int64     `json:"owner_id"`
	Customer      Customer  `json:"customer"`
	Detail        string    `json:"detail"`
	Currency      string    `json:"currency"`
	TotalCents    int64     `json:"total_cents"`
	SourceOrderID *int64    `json:"source_order_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Item struct {
	ID             int64           `json:"id"`
	InvoiceID      int64           `json:"invoice_id"`
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit,omitempty"`
	UnitPriceCents int64           `json:"unit_price_cents"`
	LineTotalCents int64           `json:"line_total_cents"`
	StockItemID    *int64          `json:"stock_item_id,omitempty"`
}

// Document is a committed invoice with its items, ready for rendering.
type Document struct {
	Invoice Invoice `json:"invoice"`
	Items   []Item  `json:"items"`
}

// ItemInput carries one line as typed by the user. Price is the total for
// the line, not a per-unit price.
type ItemInput struct {
	Description string
	Quantity    string
	Unit        string
	Price       string
	ProductID   *int64
	StockItemID *int64
}

type CreateInput struct {
	Customer      Customer
	Detail        string
	Currency      string
	Items         []ItemInput
	SourceOrderID *int64
}
