package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

type Reason string

const (
	ReasonManual  Reason = "manual"
	ReasonInvoice Reason = "invoice"
)

// Item is a countable inventory row. Quantity never goes below zero.
type Item struct {
	ID        int64           `json:"id"`
	OwnerID   int64           `json:"owner_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku,omitempty"`
	Unit      string          `json:"unit,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Movement records one applied adjustment.
type Movement struct {
	ID            int64           `json:"id"`
	StockItemID   int64           `json:"stock_item_id"`
	OwnerID       int64           `json:"owner_id"`
	Delta         decimal.Decimal `json:"delta"`
	QuantityAfter decimal.Decimal `json:"quantity_after"`
	Reason        Reason          `json:"reason"`
	InvoiceID     *int64          `json:"invoice_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type CreateItemInput struct {
	Name     string
	SKU      string
	Unit     string
	Quantity string
}

// LineDebit is an invoice line as seen by the ledger.
type LineDebit struct {
	Description string
	Quantity    decimal.Decimal
	StockItemID *int64
	InvoiceID   int64
}

type DebitResult struct {
	StockItemID int64
	Matched     bool
	// ByHeuristic is set when the item was found by name or SKU rather than
	// an explicit link.
	ByHeuristic bool
}
