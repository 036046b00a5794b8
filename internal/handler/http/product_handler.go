package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vasiliy-maslov/backoffice/internal/catalog"
)

type ProductRequest struct {
	Name        string     `json:"name" validate:"required,max=190"`
	Price       flexString `json:"price" validate:"required,max=32"`
	Currency    string     `json:"currency" validate:"omitempty,len=3"`
	Unit        string     `json:"unit" validate:"max=16"`
	Description string     `json:"description"`
	ImageURL    string     `json:"image_url" validate:"omitempty,url"`
	StockItemID *int64     `json:"stock_item_id" validate:"omitempty,gt=0"`
}

func (p ProductRequest) input() catalog.Input {
	return catalog.Input{
		Name:        p.Name,
		Price:       p.Price.String(),
		Currency:    p.Currency,
		Unit:        p.Unit,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		StockItemID: optionalID(p.StockItemID),
	}
}

type ProductHandler struct {
	base
	service catalog.Service
}

func NewProductHandler(service catalog.Service, verbose bool) *ProductHandler {
	return &ProductHandler{base: newBase(verbose), service: service}
}

func (h *ProductHandler) RegisterRoutes(router chi.Router) {
	router.Get("/products", h.handleList)
	router.Post("/products", h.handleCreate)
	router.Get("/products/{id}", h.handleGet)
	router.Put("/products/{id}", h.handleUpdate)
	router.Delete("/products/{id}", h.handleDelete)
}

func (h *ProductHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	products, err := h.service.List(r.Context(), ownerFrom(r.Context()), r.URL.Query().Get("search"), limit)
	if err != nil {
		h.fail(w, r, err, "list products")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	product, err := h.service.Create(r.Context(), ownerFrom(r.Context()), req.input())
	if err != nil {
		h.fail(w, r, err, "create product")
		return
	}
	respondWithJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	product, err := h.service.Get(r.Context(), ownerFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err, "get product")
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req ProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	product, err := h.service.Update(r.Context(), ownerFrom(r.Context()), id, req.input())
	if err != nil {
		h.fail(w, r, err, "update product")
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), ownerFrom(r.Context()), id); err != nil {
		h.fail(w, r, err, "delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
