// Package pricing содержит правила проверки ваучеров и расчёт стоимости корзины.
package pricing

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront-checkout/internal/model"
)

// ErrVoucherInvalid объединяет все причины, по которым ваучер не может быть применён.
var ErrVoucherInvalid = errors.New("voucher invalid")

// VoucherReason описывает причину отказа в применении ваучера.
type VoucherReason string

const (
	ReasonNotFound           VoucherReason = "NOT_FOUND"
	ReasonInactive           VoucherReason = "INACTIVE"
	ReasonNotStarted         VoucherReason = "NOT_STARTED"
	ReasonExpired            VoucherReason = "EXPIRED"
	ReasonUsageLimitExceeded VoucherReason = "USAGE_LIMIT_EXCEEDED"
	ReasonNotApplicable      VoucherReason = "NOT_APPLICABLE"
	ReasonMinimumNotMet      VoucherReason = "MINIMUM_NOT_MET"
)

var reasonMessages = map[VoucherReason]string{
	ReasonNotFound:           "voucher not found",
	ReasonInactive:           "voucher is not active",
	ReasonNotStarted:         "voucher is not valid yet",
	ReasonExpired:            "voucher has expired",
	ReasonUsageLimitExceeded: "voucher usage limit reached",
	ReasonNotApplicable:      "voucher does not apply to this cart",
	ReasonMinimumNotMet:      "order total is below the voucher minimum",
}

// VoucherError описывает отказ в применении ваучера.
type VoucherError struct {
	Code   string
	Reason VoucherReason
}

func (e *VoucherError) Error() string {
	return reasonMessages[e.Reason]
}

// Is позволяет сравнивать ошибку с ErrVoucherInvalid через errors.Is.
func (e *VoucherError) Is(target error) bool {
	return target == ErrVoucherInvalid
}

// VoucherUsage содержит счётчик использований ваучера конкретным покупателем.
type VoucherUsage struct {
	CustomerRedemptions int
}

// NormalizeCode приводит код ваучера к каноническому виду.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckVoucher проверяет применимость ваучера к корзине с указанной суммой и валютой.
// Проверка ничего не изменяет: счётчик использований увеличивается только при оформлении заказа.
func CheckVoucher(v *model.Voucher, usage VoucherUsage, subtotalCents int64, currency string, now time.Time) error {
	if v == nil || v.DeletedAt != nil {
		return &VoucherError{Reason: ReasonNotFound}
	}

	fail := func(r VoucherReason) error {
		return &VoucherError{Code: v.Code, Reason: r}
	}

	if !v.Active {
		return fail(ReasonInactive)
	}
	if v.StartsAt != nil && now.Before(*v.StartsAt) {
		return fail(ReasonNotStarted)
	}
	if v.ExpiresAt != nil && !now.Before(*v.ExpiresAt) {
		return fail(ReasonExpired)
	}
	if v.UsageLimit != nil && v.UsedCount >= *v.UsageLimit {
		return fail(ReasonUsageLimitExceeded)
	}
	if v.PerCustomerLimit != nil && usage.CustomerRedemptions >= *v.PerCustomerLimit {
		return fail(ReasonUsageLimitExceeded)
	}
	if v.DiscountType == model.DiscountFixed && v.Currency != "" && v.Currency != currency {
		return fail(ReasonNotApplicable)
	}
	if subtotalCents < v.MinOrderCents {
		return fail(ReasonMinimumNotMet)
	}

	return nil
}

var hundred = decimal.NewFromInt(100)

// Discount возвращает размер скидки в минимальных единицах валюты.
// Процентная скидка округляется вниз, фиксированная не превышает сумму корзины.
func Discount(v *model.Voucher, subtotalCents int64) int64 {
	if v == nil || subtotalCents <= 0 {
		return 0
	}

	var amount int64
	switch v.DiscountType {
	case model.DiscountPercentage:
		amount = decimal.NewFromInt(subtotalCents).
			Mul(v.PercentOff).
			Div(hundred).
			Floor().
			IntPart()
	case model.DiscountFixed:
		amount = v.AmountOffCents
	}

	if amount < 0 {
		return 0
	}
	if amount > subtotalCents {
		return subtotalCents
	}
	return amount
}
