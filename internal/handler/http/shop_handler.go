package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/backoffice/internal/catalog"
	"github.com/vasiliy-maslov/backoffice/internal/money"
	"github.com/vasiliy-maslov/backoffice/internal/order"
)

type ShopCustomerRequest struct {
	Name    string `json:"name" validate:"required,max=190"`
	Phone   string `json:"phone" validate:"required,max=40"`
	Email   string `json:"email" validate:"omitempty,email"`
	DNI     string `json:"dni" validate:"max=32"`
	Address string `json:"address" validate:"max=255"`
}

type CartLineRequest struct {
	ProductID int64      `json:"product_id" validate:"required,gt=0"`
	Quantity  flexString `json:"quantity" validate:"required,max=16"`
}

type PlaceOrderRequest struct {
	Customer ShopCustomerRequest `json:"customer"`
	Notes    string              `json:"notes" validate:"max=1000"`
	Items    []CartLineRequest   `json:"items" validate:"required,min=1,max=100,dive"`
}

type PublicProduct struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PriceCents  int64  `json:"price_cents"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	Unit        string `json:"unit,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type PublicOrderItem struct {
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit,omitempty"`
	LineTotalCents int64           `json:"line_total_cents"`
}

// PublicOrder is what an anonymous customer may see of their order.
type PublicOrder struct {
	Status     string            `json:"status"`
	Currency   string            `json:"currency"`
	TotalCents int64             `json:"total_cents"`
	Total      string            `json:"total"`
	Items      []PublicOrderItem `json:"items"`
	CreatedAt  time.Time         `json:"created_at"`
}

type ShopHandler struct {
	base
	catalog catalog.Service
	orders  order.Service
}

func NewShopHandler(catalogService catalog.Service, orderService order.Service, verbose bool) *ShopHandler {
	return &ShopHandler{base: newBase(verbose), catalog: catalogService, orders: orderService}
}

func (h *ShopHandler) RegisterRoutes(router chi.Router) {
	router.Get("/shop/{ownerID}/products", h.handleProducts)
	router.Post("/shop/{ownerID}/orders", h.handlePlaceOrder)
	router.Get("/shop/{ownerID}/orders/{token}", h.handleOrderStatus)
}

func (h *ShopHandler) handleProducts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := idParam(w, r, "ownerID")
	if !ok {
		return
	}

	products, err := h.catalog.ListPublic(r.Context(), ownerID, r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, err, "list products")
		return
	}

	out := make([]PublicProduct, 0, len(products))
	for _, p := range products {
		out = append(out, PublicProduct{
			ID:          p.ID,
			Name:        p.Name,
			PriceCents:  p.PriceCents,
			Price:       money.FormatCents(p.PriceCents, p.Currency),
			Currency:    p.Currency,
			Unit:        p.Unit,
			Description: p.Description,
			ImageURL:    p.ImageURL,
		})
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (h *ShopHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := idParam(w, r, "ownerID")
	if !ok {
		return
	}

	var req PlaceOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	lines := make([]order.CartLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, order.CartLine{ProductID: it.ProductID, Quantity: it.Quantity.String()})
	}

	receipt, err := h.orders.CreateOrder(r.Context(), ownerID, order.CreateInput{
		Customer: order.Customer{
			Name:    req.Customer.Name,
			Phone:   req.Customer.Phone,
			Email:   req.Customer.Email,
			DNI:     req.Customer.DNI,
			Address: req.Customer.Address,
		},
		Notes: req.Notes,
		Items: lines,
	})
	if err != nil {
		h.fail(w, r, err, "place order")
		return
	}
	respondWithJSON(w, http.StatusCreated, receipt)
}

func (h *ShopHandler) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := idParam(w, r, "ownerID")
	if !ok {
		return
	}

	o, err := h.orders.GetOrderByToken(r.Context(), ownerID, chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err, "get order")
		return
	}

	items := make([]PublicOrderItem, 0, len(o.OrderItems))
	for _, it := range o.OrderItems {
		items = append(items, PublicOrderItem{
			Description:    it.Description,
			Quantity:       it.Quantity,
			Unit:           it.Unit,
			LineTotalCents: it.LineTotalCents,
		})
	}
	respondWithJSON(w, http.StatusOK, PublicOrder{
		Status:     o.Status.String(),
		Currency:   o.Currency,
		TotalCents: o.TotalCents,
		Total:      money.FormatCents(o.TotalCents, o.Currency),
		Items:      items,
		CreatedAt:  o.CreatedAt,
	})
}
