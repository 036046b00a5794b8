package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesLine aggregates the invoices of one currency.
type SalesLine struct {
	Currency   string `json:"currency" db:"currency"`
	Invoices   int64  `json:"invoices" db:"invoices"`
	TotalCents int64  `json:"total_cents" db:"total_cents"`
	Formatted  string `json:"formatted" db:"-"`
}

type SalesSummary struct {
	From  time.Time   `json:"from"`
	To    time.Time   `json:"to"`
	Lines []SalesLine `json:"lines"`
}

type LowStockItem struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	SKU      string          `json:"sku,omitempty"`
	Unit     string          `json:"unit,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
}

type StatusCount struct {
	Status string `json:"status" db:"status"`
	Count  int64  `json:"count" db:"count"`
}
