package order

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusNew       OrderStatus = "new"
	StatusConfirmed OrderStatus = "confirmed"
	StatusFulfilled OrderStatus = "fulfilled"
	StatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) String() string {
	return string(s)
}

// ParseStatus accepts the status names case-insensitively.
func ParseStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := allowedTransitions[status]; !ok {
		return "", ErrInvalidStatus
	}
	return status, nil
}

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	DNI     string `json:"dni,omitempty"`
	Address string `json:"address,omitempty"`
}

type OrderItem struct {
	ID             int64           `json:"id"`
	OrderID        int64           `json:"order_id"`
	ProductID      int64           `json:"product_id"`
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit,omitempty"`
	UnitPriceCents int64           `json:"unit_price_cents"`
	LineTotalCents int64           `json:"line_total_cents"`
	StockItemID    *int64          `json:"stock_item_id,omitempty"`
}

type Order struct {
	ID          int64       `json:"id"`
	OwnerID     int64       `json:"owner_id"`
	PublicToken uuid.UUID   `json:"public_token"`
	Customer    Customer    `json:"customer"`
	Notes       string      `json:"notes,omitempty"`
	Currency    string      `json:"currency"`
	TotalCents  int64       `json:"total_cents"`
	Status      OrderStatus `json:"status"`
	OrderItems  []OrderItem `json:"order_items"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// CartLine is one storefront line; Quantity is the raw submitted text.
type CartLine struct {
	ProductID int64
	Quantity  string
}

type CreateInput struct {
	Customer Customer
	Notes    string
	Items    []CartLine
}

// Receipt is returned to the anonymous customer after ordering.
type Receipt struct {
	OrderID     int64     `json:"order_id"`
	PublicToken uuid.UUID `json:"public_token"`
	TotalCents  int64     `json:"total_cents"`
	Currency    string    `json:"currency"`
}
