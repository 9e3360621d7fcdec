package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-checkout/internal/model"
	"github.com/mmeshcher/storefront-checkout/internal/pricing"
	"github.com/mmeshcher/storefront-checkout/internal/repository"
	"github.com/mmeshcher/storefront-checkout/internal/validation"
)

// Quote рассчитывает стоимость корзины по актуальным ценам. Неприменимый ваучер
// не приводит к ошибке: расчёт возвращается без скидки.
func (s *Service) Quote(ctx context.Context, lines []model.CartLine, voucherCode, customer string) (*model.Quote, error) {
	cart, err := s.priceCart(ctx, lines)
	if err != nil {
		return nil, err
	}

	voucher, err := s.resolveVoucher(ctx, voucherCode, customer, cart)
	if err != nil {
		if !errors.Is(err, pricing.ErrVoucherInvalid) {
			return nil, err
		}
		s.logger.Debug("voucher dropped from quote",
			zap.String("code", pricing.NormalizeCode(voucherCode)),
			zap.Error(err),
		)
		voucher = nil
	}

	return s.calculator.Finalize(cart, voucher)
}

// ValidateVoucher проверяет ваучер для корзины и возвращает условия скидки.
// Отказ в применении возвращается в поле Valid, а не как ошибка.
func (s *Service) ValidateVoucher(ctx context.Context, code string, lines []model.CartLine, customer string) (*model.VoucherValidation, error) {
	code = pricing.NormalizeCode(code)
	if code == "" {
		return nil, validation.Newf("code is required")
	}

	cart, err := s.priceCart(ctx, lines)
	if err != nil {
		return nil, err
	}

	v, err := s.resolveVoucher(ctx, code, customer, cart)
	if err != nil {
		var verr *pricing.VoucherError
		if errors.As(err, &verr) {
			return &model.VoucherValidation{Valid: false, Message: verr.Error(), Code: code}, nil
		}
		return nil, err
	}

	res := &model.VoucherValidation{
		Valid:         true,
		Code:          v.Code,
		DiscountType:  v.DiscountType,
		DiscountCents: pricing.Discount(v, cart.SubtotalCents),
	}
	switch v.DiscountType {
	case model.DiscountPercentage:
		p := v.PercentOff.String()
		res.PercentOff = &p
	case model.DiscountFixed:
		a := v.AmountOffCents
		res.AmountOffCents = &a
	}

	return res, nil
}

func (s *Service) priceCart(ctx context.Context, lines []model.CartLine) (*pricing.PricedCart, error) {
	merged, err := pricing.MergeLines(lines)
	if err != nil {
		return nil, err
	}

	products, err := s.repo.GetProducts(ctx, pricing.ProductIDs(merged))
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	return s.calculator.Lines(merged, products)
}

// resolveVoucher находит ваучер и проверяет его применимость. Пустой код означает отсутствие ваучера.
func (s *Service) resolveVoucher(ctx context.Context, code, customer string, cart *pricing.PricedCart) (*model.Voucher, error) {
	code = pricing.NormalizeCode(code)
	if code == "" {
		return nil, nil
	}

	v, err := s.repo.GetVoucherByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrVoucherNotFound) {
			return nil, &pricing.VoucherError{Code: code, Reason: pricing.ReasonNotFound}
		}
		return nil, fmt.Errorf("load voucher: %w", err)
	}

	var usage pricing.VoucherUsage
	if customer = validation.NormalizeEmail(customer); customer != "" && v.PerCustomerLimit != nil {
		usage.CustomerRedemptions, err = s.repo.CountVoucherRedemptions(ctx, v.ID, customer)
		if err != nil {
			return nil, err
		}
	}

	if err := pricing.CheckVoucher(v, usage, cart.SubtotalCents, cart.Currency, s.now()); err != nil {
		return nil, err
	}

	return v, nil
}
