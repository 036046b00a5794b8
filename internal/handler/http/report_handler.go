package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vasiliy-maslov/backoffice/internal/report"
)

const dateLayout = "2006-01-02"

type ReportHandler struct {
	base
	service report.Service
}

func NewReportHandler(service report.Service, verbose bool) *ReportHandler {
	return &ReportHandler{base: newBase(verbose), service: service}
}

func (h *ReportHandler) RegisterRoutes(router chi.Router) {
	router.Get("/reports/sales", h.handleSales)
	router.Get("/reports/low-stock", h.handleLowStock)
	router.Get("/reports/orders", h.handleOrders)
}

// parseBound accepts RFC 3339 or a plain date. A plain date used as the
// upper bound includes that whole day.
func parseBound(raw string, upper bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

func (h *ReportHandler) handleSales(w http.ResponseWriter, r *http.Request) {
	from, err := parseBound(r.URL.Query().Get("from"), false)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid from parameter")
		return
	}
	to, err := parseBound(r.URL.Query().Get("to"), true)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid to parameter")
		return
	}

	summary, err := h.service.SalesSummary(r.Context(), ownerFrom(r.Context()), from, to)
	if err != nil {
		h.fail(w, r, err, "build sales report")
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *ReportHandler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStock(r.Context(), ownerFrom(r.Context()), r.URL.Query().Get("threshold"))
	if err != nil {
		h.fail(w, r, err, "build low stock report")
		return
	}
	respondWithJSON(w, http.StatusOK, items)
}

func (h *ReportHandler) handleOrders(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.OrderStatusCounts(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "build order report")
		return
	}
	respondWithJSON(w, http.StatusOK, counts)
}
