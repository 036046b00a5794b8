package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vasiliy-maslov/backoffice/internal/invoice"
)

type InvoiceCustomerRequest struct {
	Name    string `json:"name" validate:"required,max=190"`
	Email   string `json:"email" validate:"required,email"`
	DNI     string `json:"dni" validate:"max=32"`
	Phone   string `json:"phone" validate:"max=40"`
	Address string `json:"address" validate:"max=255"`
}

type InvoiceItemRequest struct {
	Description string     `json:"description" validate:"required,max=190"`
	Quantity    flexString `json:"quantity" validate:"required,max=32"`
	Unit        string     `json:"unit" validate:"max=16"`
	Price       flexString `json:"price" validate:"required,max=32"`
	ProductID   *int64     `json:"product_id" validate:"omitempty,gt=0"`
	StockItemID *int64     `json:"stock_item_id" validate:"omitempty,gt=0"`
}

type CreateInvoiceRequest struct {
	Customer InvoiceCustomerRequest `json:"customer"`
	Detail   string                 `json:"detail"`
	Currency string                 `json:"currency" validate:"omitempty,len=3"`
	Items    []InvoiceItemRequest   `json:"items" validate:"required,min=1,dive"`
}

type InvoiceHandler struct {
	base
	service invoice.Service
}

func NewInvoiceHandler(service invoice.Service, verbose bool) *InvoiceHandler {
	return &InvoiceHandler{base: newBase(verbose), service: service}
}

func (h *InvoiceHandler) RegisterRoutes(router chi.Router) {
	router.Get("/invoices", h.handleList)
	router.Post("/invoices", h.handleCreate)
	router.Get("/invoices/{id}", h.handleGet)
}

func (h *InvoiceHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	invoices, err := h.service.List(r.Context(), ownerFrom(r.Context()), limit)
	if err != nil {
		h.fail(w, r, err, "list invoices")
		return
	}
	respondWithJSON(w, http.StatusOK, invoices)
}

func (h *InvoiceHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if !h.decode(w, r, &req) {
		return
	}

	items := make([]invoice.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, invoice.ItemInput{
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			Unit:        it.Unit,
			Price:       it.Price.String(),
			ProductID:   it.ProductID,
			StockItemID: it.StockItemID,
		})
	}

	ownerID := ownerFrom(r.Context())
	id, err := h.service.CreateInvoice(r.Context(), ownerID, invoice.CreateInput{
		Customer: invoice.Customer{
			Name:    req.Customer.Name,
			Email:   req.Customer.Email,
			DNI:     req.Customer.DNI,
			Phone:   req.Customer.Phone,
			Address: req.Customer.Address,
		},
		Detail:   req.Detail,
		Currency: req.Currency,
		Items:    items,
	})
	if err != nil {
		h.fail(w, r, err, "create invoice")
		return
	}

	doc, err := h.service.Get(r.Context(), ownerID, id)
	if err != nil {
		h.fail(w, r, err, "get invoice")
		return
	}
	respondWithJSON(w, http.StatusCreated, doc)
}

func (h *InvoiceHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	doc, err := h.service.Get(r.Context(), ownerFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err, "get invoice")
		return
	}
	respondWithJSON(w, http.StatusOK, doc)
}
