package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vasiliy-maslov/backoffice/internal/stock"
)

type CreateStockItemRequest struct {
	Name     string     `json:"name" validate:"required,max=190"`
	SKU      string     `json:"sku" validate:"max=64"`
	Unit     string     `json:"unit" validate:"max=8"`
	Quantity flexString `json:"quantity" validate:"max=32"`
}

type AdjustStockRequest struct {
	Delta flexString `json:"delta" validate:"required,max=32"`
}

type StockHandler struct {
	base
	service stock.Service
}

func NewStockHandler(service stock.Service, verbose bool) *StockHandler {
	return &StockHandler{base: newBase(verbose), service: service}
}

func (h *StockHandler) RegisterRoutes(router chi.Router) {
	router.Get("/stock", h.handleList)
	router.Post("/stock", h.handleCreate)
	router.Get("/stock/{id}", h.handleGet)
	router.Post("/stock/{id}/adjust", h.handleAdjust)
	router.Get("/stock/{id}/movements", h.handleMovements)
}

func (h *StockHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	items, err := h.service.List(r.Context(), ownerFrom(r.Context()), r.URL.Query().Get("search"), limit)
	if err != nil {
		h.fail(w, r, err, "list stock items")
		return
	}
	respondWithJSON(w, http.StatusOK, items)
}

func (h *StockHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateStockItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.service.CreateItem(r.Context(), ownerFrom(r.Context()), stock.CreateItemInput{
		Name:     req.Name,
		SKU:      req.SKU,
		Unit:     req.Unit,
		Quantity: req.Quantity.String(),
	})
	if err != nil {
		h.fail(w, r, err, "create stock item")
		return
	}
	respondWithJSON(w, http.StatusCreated, item)
}

func (h *StockHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	item, err := h.service.Get(r.Context(), ownerFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err, "get stock item")
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

func (h *StockHandler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req AdjustStockRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.service.Adjust(r.Context(), ownerFrom(r.Context()), id, req.Delta.String())
	if err != nil {
		h.fail(w, r, err, "adjust stock")
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

func (h *StockHandler) handleMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	movements, err := h.service.Movements(r.Context(), ownerFrom(r.Context()), id, limit)
	if err != nil {
		h.fail(w, r, err, "list stock movements")
		return
	}
	respondWithJSON(w, http.StatusOK, movements)
}
