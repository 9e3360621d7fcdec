package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ValidateVoucher проверяет ваучер для корзины. Неприменимый ваучер возвращается с valid=false.
func (h *Handler) ValidateVoucher(w http.ResponseWriter, r *http.Request) {
	var req validateVoucherRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	customer := customerEmail(r)
	if customer == "" {
		customer = req.CustomerEmail
	}

	res, err := h.service.ValidateVoucher(r.Context(), req.Code, toCartLines(req.Items), customer)
	if err != nil {
		h.writeError(w, r, "validate voucher", err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// CreateVoucher создаёт ваучер.
func (h *Handler) CreateVoucher(w http.ResponseWriter, r *http.Request) {
	var req createVoucherRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	v, err := h.service.CreateVoucher(r.Context(), req.toModel())
	if err != nil {
		h.writeError(w, r, "create voucher", err)
		return
	}

	writeJSON(w, http.StatusCreated, newVoucherResponse(*v))
}

// ListVouchers возвращает список действующих ваучеров.
func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.service.ListVouchers(r.Context())
	if err != nil {
		h.writeError(w, r, "list vouchers", err)
		return
	}

	resp := make([]voucherResponse, 0, len(vouchers))
	for _, v := range vouchers {
		resp = append(resp, newVoucherResponse(v))
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteVoucher удаляет ваучер по коду.
func (h *Handler) DeleteVoucher(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteVoucher(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.writeError(w, r, "delete voucher", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
