package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/storefront-checkout/internal/model"
	"github.com/mmeshcher/storefront-checkout/internal/service"
)

// IdempotencyKeyHeader содержит ключ идемпотентности оформления заказа.
const IdempotencyKeyHeader = "Idempotency-Key"

// Quote рассчитывает стоимость корзины.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	q, err := h.service.Quote(r.Context(), toCartLines(req.Items), req.VoucherCode, customerEmail(r))
	if err != nil {
		h.writeError(w, r, "quote", err)
		return
	}

	writeJSON(w, http.StatusOK, q)
}

// Checkout оформляет заказ. Повтор с тем же ключом идемпотентности отвечает 200 с тем же идентификатором.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" {
		writeErrorMessage(w, http.StatusBadRequest, IdempotencyKeyHeader+" header is required", "")
		return
	}
	if len(key) > service.MaxIdempotencyKeyLength {
		writeErrorMessage(w, http.StatusBadRequest, IdempotencyKeyHeader+" header is too long", "")
		return
	}

	var req checkoutRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.Checkout(r.Context(), key, req.toModel(customerEmail(r)))
	if err != nil {
		h.writeError(w, r, "checkout", err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, checkoutResponse{ID: res.OrderID})
}

// GetOrder возвращает сводку заказа.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

// UpdateOrderStatus меняет статус заказа. Доступно только администраторам.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	status := model.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status)))

	if err := h.service.UpdateOrderStatus(r.Context(), id, status, req.Note); err != nil {
		h.writeError(w, r, "update order status", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
