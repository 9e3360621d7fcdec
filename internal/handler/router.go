package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/storefront-checkout/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса оформления заказов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Compress(5, "application/json"))
	r.Use(custommiddleware.DecompressRequest)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.Recoverer(h.logger))
	r.Use(h.authMiddleware.Identify)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/quote", h.Quote)
		r.Post("/checkout", h.Checkout)
		r.Get("/{id}", h.GetOrder)
	})

	r.Post("/vouchers/validate", h.ValidateVoucher)

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)
		r.Use(custommiddleware.AdminOnly(h.admins))

		r.Post("/vouchers", h.CreateVoucher)
		r.Get("/vouchers", h.ListVouchers)
		r.Delete("/vouchers/{code}", h.DeleteVoucher)

		r.Patch("/orders/{id}/status", h.UpdateOrderStatus)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.WriteError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), "")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.WriteError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), "")
	})

	return r
}
