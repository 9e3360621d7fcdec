package pricing

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/storefront-checkout/internal/model"
)

var (
	// ErrProductNotFound возвращается, если товар из корзины отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidQuantity возвращается для неположительного количества.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrEmptyCart возвращается для пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCurrencyMismatch возвращается, если товары корзины продаются в разных валютах.
	ErrCurrencyMismatch = errors.New("cart items use different currencies")
	// ErrInvariantViolation сигнализирует о внутренней ошибке расчёта.
	ErrInvariantViolation = errors.New("quote invariant violated")
)

// MaxLineQuantity ограничивает количество единиц одного товара в заказе.
const MaxLineQuantity = 1000

// Settings содержит параметры расчёта доставки.
type Settings struct {
	Currency                   string
	ShippingFlatCents          int64
	FreeShippingThresholdCents int64
}

// Calculator рассчитывает стоимость корзины по актуальным ценам.
type Calculator struct {
	settings Settings
}

// NewCalculator создаёт калькулятор с указанными настройками доставки.
func NewCalculator(settings Settings) *Calculator {
	return &Calculator{settings: settings}
}

// MergeLines проверяет количество и объединяет строки с одинаковым товаром,
// сохраняя порядок первого появления.
func MergeLines(lines []model.CartLine) ([]model.CartLine, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	index := make(map[string]int, len(lines))
	merged := make([]model.CartLine, 0, len(lines))

	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, l.ProductID)
		}
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
		} else {
			index[l.ProductID] = len(merged)
			merged = append(merged, l)
		}
	}

	for _, l := range merged {
		if l.Quantity > MaxLineQuantity {
			return nil, fmt.Errorf("%w: %s exceeds %d", ErrInvalidQuantity, l.ProductID, MaxLineQuantity)
		}
	}

	return merged, nil
}

// ProductIDs возвращает идентификаторы товаров из строк корзины.
func ProductIDs(lines []model.CartLine) []string {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

// PricedCart содержит строки корзины по актуальным ценам и сумму без скидки.
type PricedCart struct {
	Items         []model.QuoteItem
	Currency      string
	SubtotalCents int64
}

// Lines сопоставляет строки корзины с товарами каталога и считает сумму без скидки.
// Строки должны быть предварительно обработаны MergeLines.
func (c *Calculator) Lines(lines []model.CartLine, products map[string]model.Product) (*PricedCart, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]model.QuoteItem, 0, len(lines))
	currency := ""
	var subtotal int64

	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, l.ProductID)
		}

		p, ok := products[l.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, l.ProductID)
		}

		if currency == "" {
			currency = p.Currency
		} else if p.Currency != currency {
			return nil, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, currency, p.Currency)
		}

		lineTotal := p.PriceCents * int64(l.Quantity)
		subtotal += lineTotal

		items = append(items, model.QuoteItem{
			ProductID:      p.ID,
			ProductName:    p.Name,
			Quantity:       l.Quantity,
			UnitCents:      p.PriceCents,
			LineTotalCents: lineTotal,
		})
	}

	if c.settings.Currency != "" && currency != c.settings.Currency {
		return nil, fmt.Errorf("%w: %s and store currency %s", ErrCurrencyMismatch, currency, c.settings.Currency)
	}

	return &PricedCart{Items: items, Currency: currency, SubtotalCents: subtotal}, nil
}

// Finalize собирает итоговый расчёт. Ваучер должен быть заранее проверен CheckVoucher;
// nil означает расчёт без скидки.
func (c *Calculator) Finalize(cart *PricedCart, voucher *model.Voucher) (*model.Quote, error) {
	subtotalCents := cart.SubtotalCents
	discount := Discount(voucher, subtotalCents)
	shipping := c.shipping(subtotalCents - discount)

	total := subtotalCents - discount + shipping
	if total < 0 || discount > subtotalCents {
		return nil, fmt.Errorf("%w: subtotal=%d discount=%d shipping=%d", ErrInvariantViolation, subtotalCents, discount, shipping)
	}

	q := &model.Quote{
		Items:         cart.Items,
		SubtotalCents: subtotalCents,
		ShippingCents: shipping,
		DiscountCents: discount,
		TotalCents:    total,
		Currency:      cart.Currency,
	}
	if voucher != nil {
		q.VoucherCode = voucher.Code
	}

	return q, nil
}

func (c *Calculator) shipping(amountCents int64) int64 {
	if c.settings.FreeShippingThresholdCents > 0 && amountCents >= c.settings.FreeShippingThresholdCents {
		return 0
	}
	return c.settings.ShippingFlatCents
}
