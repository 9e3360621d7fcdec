package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-checkout/internal/model"
	"github.com/mmeshcher/storefront-checkout/internal/pricing"
	"github.com/mmeshcher/storefront-checkout/internal/validation"
)

const expiryAuditBatch = 100

var hundred = decimal.NewFromInt(100)

// CreateVoucher проверяет условия ваучера и сохраняет его.
func (s *Service) CreateVoucher(ctx context.Context, v *model.Voucher) (*model.Voucher, error) {
	v.Code = pricing.NormalizeCode(v.Code)
	if v.Code == "" {
		return nil, validation.Newf("code is required")
	}

	switch v.DiscountType {
	case model.DiscountPercentage:
		if !v.PercentOff.IsPositive() || v.PercentOff.GreaterThan(hundred) {
			return nil, validation.Newf("percentOff must be greater than 0 and at most 100")
		}
		if !v.PercentOff.Equal(v.PercentOff.Round(2)) {
			return nil, validation.Newf("percentOff must have at most 2 decimal places")
		}
		v.AmountOffCents = 0
		v.Currency = ""
	case model.DiscountFixed:
		if v.AmountOffCents <= 0 {
			return nil, validation.Newf("amountOffCents must be greater than 0")
		}
		if v.Currency == "" {
			v.Currency = s.currency
		}
		v.PercentOff = decimal.Zero
	default:
		return nil, validation.Newf("discountType must be one of: %s %s", model.DiscountPercentage, model.DiscountFixed)
	}

	if v.MinOrderCents < 0 {
		return nil, validation.Newf("minOrderCents must not be negative")
	}
	if v.UsageLimit != nil && *v.UsageLimit <= 0 {
		return nil, validation.Newf("usageLimit must be greater than 0")
	}
	if v.PerCustomerLimit != nil && *v.PerCustomerLimit <= 0 {
		return nil, validation.Newf("perCustomerLimit must be greater than 0")
	}
	if v.StartsAt != nil && v.ExpiresAt != nil && !v.StartsAt.Before(*v.ExpiresAt) {
		return nil, validation.Newf("startsAt must be before expiresAt")
	}

	return s.repo.CreateVoucher(ctx, v)
}

// ListVouchers возвращает все действующие ваучеры.
func (s *Service) ListVouchers(ctx context.Context) ([]model.Voucher, error) {
	return s.repo.ListVouchers(ctx)
}

// DeleteVoucher помечает ваучер удалённым.
func (s *Service) DeleteVoucher(ctx context.Context, code string) error {
	return s.repo.DeleteVoucher(ctx, pricing.NormalizeCode(code))
}

// StartExpiryAudit периодически записывает в журнал истёкшие ваучеры и отмечает их.
// Блокируется до отмены контекста.
func (s *Service) StartExpiryAudit(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processExpiryBatch(ctx)
		}
	}
}

func (s *Service) processExpiryBatch(ctx context.Context) {
	now := s.now()

	vouchers, err := s.repo.GetVouchersForExpiryAudit(ctx, now, expiryAuditBatch)
	if err != nil {
		s.logger.Warn("load expired vouchers", zap.Error(err))
		return
	}

	for _, v := range vouchers {
		s.logger.Info("voucher expired",
			zap.String("code", v.Code),
			zap.Time("expires_at", v.ExpiresAt),
			zap.Int("used_count", v.UsedCount),
		)
		if err := s.repo.MarkVoucherExpiryLogged(ctx, v.ID, now); err != nil {
			s.logger.Warn("mark voucher expiry", zap.String("code", v.Code), zap.Error(err))
		}
	}
}
