package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vasiliy-maslov/backoffice/internal/order"
)

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,max=16"`
}

type OrderStatusResponse struct {
	OrderID   int64  `json:"order_id"`
	Status    string `json:"status"`
	InvoiceID *int64 `json:"invoice_id,omitempty"`
}

type OrderHandler struct {
	base
	service order.Service
}

func NewOrderHandler(service order.Service, verbose bool) *OrderHandler {
	return &OrderHandler{base: newBase(verbose), service: service}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Get("/orders", h.handleList)
	router.Get("/orders/{id}", h.handleGet)
	router.Put("/orders/{id}/status", h.handleUpdateStatus)
}

func (h *OrderHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), ownerFrom(r.Context()), r.URL.Query().Get("status"), limit)
	if err != nil {
		h.fail(w, r, err, "list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.service.GetOrderByID(r.Context(), ownerFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err, "get order")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	invoiceID, err := h.service.UpdateOrderStatus(r.Context(), ownerFrom(r.Context()), id, req.Status)
	if err != nil {
		h.fail(w, r, err, "update order status")
		return
	}

	status, _ := order.ParseStatus(req.Status)
	resp := OrderStatusResponse{OrderID: id, Status: status.String()}
	if invoiceID != 0 {
		resp.InvoiceID = &invoiceID
	}
	respondWithJSON(w, http.StatusOK, resp)
}
