// Package handler содержит HTTP-обработчики API оформления заказов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-checkout/internal/media"
	"github.com/mmeshcher/storefront-checkout/internal/middleware"
	"github.com/mmeshcher/storefront-checkout/internal/model"
	"github.com/mmeshcher/storefront-checkout/internal/pricing"
	"github.com/mmeshcher/storefront-checkout/internal/repository"
	"github.com/mmeshcher/storefront-checkout/internal/service"
	"github.com/mmeshcher/storefront-checkout/internal/validation"
)

const maxBodyBytes = 1 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Quote(ctx context.Context, lines []model.CartLine, voucherCode, customer string) (*model.Quote, error)
	ValidateVoucher(ctx context.Context, code string, lines []model.CartLine, customer string) (*model.VoucherValidation, error)
	Checkout(ctx context.Context, idempotencyKey string, req model.CheckoutRequest) (*model.CheckoutResult, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus, note string) error
	CreateVoucher(ctx context.Context, v *model.Voucher) (*model.Voucher, error)
	ListVouchers(ctx context.Context) ([]model.Voucher, error)
	DeleteVoucher(ctx context.Context, code string) error
}

// Handler реализует HTTP-обработчики API оформления заказов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	validator      *validation.Validator
	admins         []string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, admins []string) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		validator:      validation.New(),
		admins:         admins,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, message, code string) {
	middleware.WriteError(w, status, message, code)
}

// decodeJSON читает тело запроса и проверяет его по тегам validate.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON body", "")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error(), "")
		return false
	}

	return true
}

// writeError переводит ошибку бизнес-логики в HTTP-ответ.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *pricing.VoucherError

	switch {
	case validation.IsValidationError(err),
		errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrEmptyCart):
		writeErrorMessage(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, pricing.ErrProductNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrVoucherNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error(), "")
	case errors.As(err, &verr):
		writeErrorMessage(w, http.StatusUnprocessableEntity, err.Error(), "VOUCHER_"+string(verr.Reason))
	case errors.Is(err, pricing.ErrCurrencyMismatch):
		writeErrorMessage(w, http.StatusUnprocessableEntity, err.Error(), "CURRENCY_MISMATCH")
	case errors.Is(err, repository.ErrInsufficientStock):
		writeErrorMessage(w, http.StatusConflict, err.Error(), "INSUFFICIENT_STOCK")
	case errors.Is(err, service.ErrQuoteChanged):
		writeErrorMessage(w, http.StatusConflict, err.Error(), "QUOTE_CHANGED")
	case errors.Is(err, repository.ErrVoucherExists),
		errors.Is(err, repository.ErrInvalidTransition):
		writeErrorMessage(w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, media.ErrUnavailable):
		h.logger.Warn(op+" error", zap.Error(err))
		writeErrorMessage(w, http.StatusServiceUnavailable, "payment proof service unavailable, try again later", "")
	default:
		h.logger.Error(op+" error", zap.Error(err), zap.String("path", r.URL.Path))
		writeErrorMessage(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), "")
	}
}

// customerEmail возвращает почту аутентифицированного покупателя или пустую строку для гостя.
func customerEmail(r *http.Request) string {
	email, _ := middleware.GetCustomerEmailFromContext(r.Context())
	return email
}
