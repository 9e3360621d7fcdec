// Package model содержит доменные сущности сервиса оформления заказов.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product описывает товар каталога с актуальной ценой и остатком.
type Product struct {
	ID         string
	Name       string
	PriceCents int64
	Currency   string
	Stock      int
}

// CartLine описывает строку корзины, присланную клиентом.
type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// DiscountType описывает способ расчёта скидки по ваучеру.
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// Voucher описывает скидочный код и ограничения на его использование.
type Voucher struct {
	ID               int64
	Code             string
	DiscountType     DiscountType
	PercentOff       decimal.Decimal
	AmountOffCents   int64
	Currency         string
	MinOrderCents    int64
	UsageLimit       *int
	PerCustomerLimit *int
	UsedCount        int
	StartsAt         *time.Time
	ExpiresAt        *time.Time
	Active           bool
	DeletedAt        *time.Time
	CreatedAt        time.Time
}

// QuoteItem описывает строку расчёта стоимости корзины.
type QuoteItem struct {
	ProductID      string `json:"productId"`
	ProductName    string `json:"productName"`
	Quantity       int    `json:"quantity"`
	UnitCents      int64  `json:"unitCents"`
	LineTotalCents int64  `json:"lineTotalCents"`
}

// Quote содержит рассчитанную на сервере стоимость корзины. Не сохраняется.
type Quote struct {
	Items         []QuoteItem `json:"items"`
	SubtotalCents int64       `json:"subtotalCents"`
	ShippingCents int64       `json:"shippingCents"`
	DiscountCents int64       `json:"discountCents"`
	TotalCents    int64       `json:"totalCents"`
	Currency      string      `json:"currency"`
	VoucherCode   string      `json:"voucherCode,omitempty"`
}

// VoucherValidation содержит результат проверки ваучера.
type VoucherValidation struct {
	Valid          bool         `json:"valid"`
	Message        string       `json:"message,omitempty"`
	Code           string       `json:"code,omitempty"`
	DiscountType   DiscountType `json:"discountType,omitempty"`
	PercentOff     *string      `json:"percentOff,omitempty"`
	AmountOffCents *int64       `json:"amountOffCents,omitempty"`
	DiscountCents  int64        `json:"discountCents"`
}

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod string

const (
	PaymentCOD         PaymentMethod = "COD"
	PaymentBankDeposit PaymentMethod = "BANK_DEPOSIT"
)

// OrderStatus описывает статус обработки заказа.
type OrderStatus string

const (
	OrderStatusPending              OrderStatus = "PENDING"
	OrderStatusAwaitingVerification OrderStatus = "AWAITING_VERIFICATION"
	OrderStatusConfirmed            OrderStatus = "CONFIRMED"
	OrderStatusShipped              OrderStatus = "SHIPPED"
	OrderStatusDelivered            OrderStatus = "DELIVERED"
	OrderStatusCancelled            OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:              {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusAwaitingVerification: {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:            {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:              {OrderStatusDelivered},
}

// CanTransition сообщает, допустим ли переход заказа из статуса from в статус to.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Valid сообщает, известен ли статус.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusAwaitingVerification, OrderStatusConfirmed,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Contact содержит контактные данные покупателя.
type Contact struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// ShippingAddress содержит адрес доставки.
type ShippingAddress struct {
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	Province     string `json:"province,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
}

// CheckoutRequest описывает данные оформления заказа.
type CheckoutRequest struct {
	Contact             Contact
	Shipping            ShippingAddress
	Notes               string
	PaymentMethod       PaymentMethod
	PaymentProofMediaID string
	Items               []CartLine
	VoucherCode         string
	ExpectedTotalCents  *int64
	AccountEmail        string
}

// CheckoutResult содержит результат оформления заказа.
type CheckoutResult struct {
	OrderID  string
	Replayed bool
}

// OrderItem описывает позицию заказа с зафиксированной ценой.
type OrderItem struct {
	ProductID      string `json:"productId"`
	ProductName    string `json:"productName"`
	Quantity       int    `json:"quantity"`
	UnitCents      int64  `json:"unitCents"`
	LineTotalCents int64  `json:"lineTotalCents"`
}

// StatusChange описывает запись истории статусов заказа.
type StatusChange struct {
	Status    OrderStatus `json:"status"`
	Note      string      `json:"note,omitempty"`
	ChangedAt time.Time   `json:"changedAt"`
}

// Order описывает оформленный заказ.
type Order struct {
	ID                  string
	IdempotencyKey      string
	Contact             Contact
	Shipping            ShippingAddress
	Notes               string
	PaymentMethod       PaymentMethod
	PaymentProofMediaID string
	Status              OrderStatus
	Currency            string
	SubtotalCents       int64
	DiscountCents       int64
	ShippingCents       int64
	TotalCents          int64
	VoucherCode         string
	AccountEmail        string
	Items               []OrderItem
	History             []StatusChange
	CreatedAt           time.Time
}

// VoucherRedemption описывает погашение ваучера при оформлении заказа.
type VoucherRedemption struct {
	VoucherID   int64
	CustomerKey string
}
