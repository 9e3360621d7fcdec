package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-checkout/internal/cache"
	"github.com/mmeshcher/storefront-checkout/internal/model"
	"github.com/mmeshcher/storefront-checkout/internal/pricing"
	"github.com/mmeshcher/storefront-checkout/internal/repository"
	"github.com/mmeshcher/storefront-checkout/internal/validation"
)

// MaxIdempotencyKeyLength ограничивает длину ключа идемпотентности.
const MaxIdempotencyKeyLength = 255

// Checkout оформляет заказ. Повторный вызов с тем же ключом идемпотентности возвращает
// ранее созданный заказ, ничего не пересчитывая и не списывая.
func (s *Service) Checkout(ctx context.Context, idempotencyKey string, req model.CheckoutRequest) (*model.CheckoutResult, error) {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return nil, validation.Newf("Idempotency-Key header is required")
	}
	if len(key) > MaxIdempotencyKeyLength {
		return nil, validation.Newf("Idempotency-Key must be at most %d characters", MaxIdempotencyKeyLength)
	}

	if id, ok, err := s.lookupReplay(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return &model.CheckoutResult{OrderID: id, Replayed: true}, nil
	}

	customer := validation.NormalizeEmail(req.AccountEmail)
	if customer == "" {
		customer = validation.NormalizeEmail(req.Contact.Email)
	}

	cart, err := s.priceCart(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	voucher, err := s.resolveVoucher(ctx, req.VoucherCode, customer, cart)
	if err != nil {
		return nil, err
	}

	quote, err := s.calculator.Finalize(cart, voucher)
	if err != nil {
		return nil, err
	}

	if req.ExpectedTotalCents != nil && *req.ExpectedTotalCents != quote.TotalCents {
		return nil, fmt.Errorf("%w: expected total %d, actual %d", ErrQuoteChanged, *req.ExpectedTotalCents, quote.TotalCents)
	}

	status, proofID, err := s.checkPayment(ctx, req.PaymentMethod, req.PaymentProofMediaID)
	if err != nil {
		return nil, err
	}

	order := buildOrder(key, req, quote, status, proofID)

	var redemption *model.VoucherRedemption
	if voucher != nil {
		redemption = &model.VoucherRedemption{VoucherID: voucher.ID, CustomerKey: customer}
	}

	id, replayed, err := s.repo.CommitCheckout(ctx, order, redemption)
	if err != nil {
		return nil, s.commitError(err, quote.VoucherCode)
	}

	s.rememberKey(ctx, key, id)

	if replayed {
		return &model.CheckoutResult{OrderID: id, Replayed: true}, nil
	}

	order.ID = id
	order.CreatedAt = s.now()
	if s.publisher != nil {
		if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
			s.logger.Warn("publish order created", zap.String("order_id", id), zap.Error(err))
		}
	}

	s.logger.Info("order placed",
		zap.String("order_id", id),
		zap.Int64("total_cents", order.TotalCents),
		zap.String("payment_method", string(order.PaymentMethod)),
	)

	return &model.CheckoutResult{OrderID: id}, nil
}

func (s *Service) lookupReplay(ctx context.Context, key string) (string, bool, error) {
	if s.cache != nil {
		id, err := s.cache.GetOrderID(ctx, key)
		if err == nil {
			return id, true, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("idempotency cache lookup", zap.Error(err))
		}
	}

	id, err := s.repo.GetOrderIDByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	s.rememberKey(ctx, key, id)
	return id, true, nil
}

func (s *Service) rememberKey(ctx context.Context, key, orderID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetOrderID(ctx, key, orderID); err != nil {
		s.logger.Warn("idempotency cache store", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *Service) checkPayment(ctx context.Context, method model.PaymentMethod, proofID string) (model.OrderStatus, string, error) {
	switch method {
	case model.PaymentCOD:
		return model.OrderStatusPending, "", nil
	case model.PaymentBankDeposit:
		proofID = strings.TrimSpace(proofID)
		if proofID == "" {
			return "", "", validation.Newf("paymentProofMediaId is required for bank deposit")
		}
		if s.media != nil {
			ok, err := s.media.Exists(ctx, proofID)
			if err != nil {
				return "", "", fmt.Errorf("resolve payment proof: %w", err)
			}
			if !ok {
				return "", "", validation.Newf("paymentProofMediaId %q not found", proofID)
			}
		}
		return model.OrderStatusAwaitingVerification, proofID, nil
	}
	return "", "", validation.Newf("paymentMethod must be one of: %s %s", model.PaymentCOD, model.PaymentBankDeposit)
}

func buildOrder(key string, req model.CheckoutRequest, q *model.Quote, status model.OrderStatus, proofID string) *model.Order {
	items := make([]model.OrderItem, 0, len(q.Items))
	for _, it := range q.Items {
		items = append(items, model.OrderItem{
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			Quantity:       it.Quantity,
			UnitCents:      it.UnitCents,
			LineTotalCents: it.LineTotalCents,
		})
	}

	contact := req.Contact
	contact.FullName = strings.TrimSpace(contact.FullName)
	contact.Email = validation.NormalizeEmail(contact.Email)
	if validation.IsValidPhone(contact.Phone) {
		contact.Phone = validation.NormalizePhone(contact.Phone)
	}

	return &model.Order{
		ID:                  uuid.NewString(),
		IdempotencyKey:      key,
		Contact:             contact,
		Shipping:            req.Shipping,
		Notes:               strings.TrimSpace(req.Notes),
		PaymentMethod:       req.PaymentMethod,
		PaymentProofMediaID: proofID,
		Status:              status,
		Currency:            q.Currency,
		SubtotalCents:       q.SubtotalCents,
		DiscountCents:       q.DiscountCents,
		ShippingCents:       q.ShippingCents,
		TotalCents:          q.TotalCents,
		VoucherCode:         q.VoucherCode,
		AccountEmail:        validation.NormalizeEmail(req.AccountEmail),
		Items:               items,
	}
}

// commitError переводит ошибки фиксации заказа в ошибки предметной области.
func (s *Service) commitError(err error, voucherCode string) error {
	switch {
	case errors.Is(err, repository.ErrVoucherExhausted):
		return &pricing.VoucherError{Code: voucherCode, Reason: pricing.ReasonUsageLimitExceeded}
	case errors.Is(err, repository.ErrVoucherNotFound):
		return &pricing.VoucherError{Code: voucherCode, Reason: pricing.ReasonNotFound}
	case errors.Is(err, repository.ErrPriceChanged):
		return fmt.Errorf("%w: %w", ErrQuoteChanged, err)
	}
	return err
}
