package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers groups everything NewRouter mounts.
type Handlers struct {
	Products *ProductHandler
	Stock    *StockHandler
	Invoices *InvoiceHandler
	Orders   *OrderHandler
	Reports  *ReportHandler
	Shop     *ShopHandler
}

// NewRouter mounts the storefront routes openly and every back-office route
// behind OwnerScope.
func NewRouter(h Handlers) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	h.Shop.RegisterRoutes(router)

	router.Group(func(r chi.Router) {
		r.Use(OwnerScope)
		h.Products.RegisterRoutes(r)
		h.Stock.RegisterRoutes(r)
		h.Invoices.RegisterRoutes(r)
		h.Orders.RegisterRoutes(r)
		h.Reports.RegisterRoutes(r)
	})

	return router
}
