package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront-checkout/internal/model"
)

type cartLineRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=1000"`
}

func toCartLines(items []cartLineRequest) []model.CartLine {
	lines := make([]model.CartLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, model.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

type quoteRequest struct {
	Items       []cartLineRequest `json:"items" validate:"required,min=1,max=100,dive"`
	VoucherCode string            `json:"voucherCode" validate:"max=64"`
}

type contactRequest struct {
	FullName string `json:"fullName" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Phone    string `json:"phone" validate:"required,pkphone"`
}

type shippingRequest struct {
	AddressLine1 string `json:"addressLine1" validate:"required,max=200"`
	AddressLine2 string `json:"addressLine2" validate:"max=200"`
	City         string `json:"city" validate:"required,max=100"`
	Province     string `json:"province" validate:"max=100"`
	PostalCode   string `json:"postalCode" validate:"max=20"`
}

type checkoutRequest struct {
	Contact             contactRequest    `json:"contact"`
	Shipping            shippingRequest   `json:"shipping"`
	Notes               string            `json:"notes" validate:"max=1000"`
	PaymentMethod       string            `json:"paymentMethod" validate:"required,oneof=COD BANK_DEPOSIT"`
	PaymentProofMediaID string            `json:"paymentProofMediaId" validate:"required_if=PaymentMethod BANK_DEPOSIT,max=128"`
	Items               []cartLineRequest `json:"items" validate:"required,min=1,max=100,dive"`
	VoucherCode         string            `json:"voucherCode" validate:"max=64"`
	ExpectedTotalCents  *int64            `json:"expectedTotalCents" validate:"omitempty,gte=0"`
}

func (c checkoutRequest) toModel(accountEmail string) model.CheckoutRequest {
	return model.CheckoutRequest{
		Contact: model.Contact{
			FullName: c.Contact.FullName,
			Email:    c.Contact.Email,
			Phone:    c.Contact.Phone,
		},
		Shipping: model.ShippingAddress{
			AddressLine1: c.Shipping.AddressLine1,
			AddressLine2: c.Shipping.AddressLine2,
			City:         c.Shipping.City,
			Province:     c.Shipping.Province,
			PostalCode:   c.Shipping.PostalCode,
		},
		Notes:               c.Notes,
		PaymentMethod:       model.PaymentMethod(c.PaymentMethod),
		PaymentProofMediaID: c.PaymentProofMediaID,
		Items:               toCartLines(c.Items),
		VoucherCode:         c.VoucherCode,
		ExpectedTotalCents:  c.ExpectedTotalCents,
		AccountEmail:        accountEmail,
	}
}

type checkoutResponse struct {
	ID string `json:"id"`
}

type orderResponse struct {
	ID                  string                `json:"id"`
	Status              model.OrderStatus     `json:"status"`
	PaymentMethod       model.PaymentMethod   `json:"paymentMethod"`
	PaymentProofMediaID string                `json:"paymentProofMediaId,omitempty"`
	Contact             model.Contact         `json:"contact"`
	Shipping            model.ShippingAddress `json:"shipping"`
	Notes               string                `json:"notes,omitempty"`
	Currency            string                `json:"currency"`
	SubtotalCents       int64                 `json:"subtotalCents"`
	DiscountCents       int64                 `json:"discountCents"`
	ShippingCents       int64                 `json:"shippingCents"`
	TotalCents          int64                 `json:"totalCents"`
	VoucherCode         string                `json:"voucherCode,omitempty"`
	Items               []model.OrderItem     `json:"items"`
	History             []model.StatusChange  `json:"history"`
	CreatedAt           string                `json:"createdAt"`
}

func newOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:                  o.ID,
		Status:              o.Status,
		PaymentMethod:       o.PaymentMethod,
		PaymentProofMediaID: o.PaymentProofMediaID,
		Contact:             o.Contact,
		Shipping:            o.Shipping,
		Notes:               o.Notes,
		Currency:            o.Currency,
		SubtotalCents:       o.SubtotalCents,
		DiscountCents:       o.DiscountCents,
		ShippingCents:       o.ShippingCents,
		TotalCents:          o.TotalCents,
		VoucherCode:         o.VoucherCode,
		Items:               o.Items,
		History:             o.History,
		CreatedAt:           o.CreatedAt.Format(time.RFC3339),
	}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

type validateVoucherRequest struct {
	Code          string            `json:"code" validate:"required,max=64"`
	Items         []cartLineRequest `json:"items" validate:"required,min=1,max=100,dive"`
	CustomerEmail string            `json:"customerEmail" validate:"omitempty,email"`
}

type createVoucherRequest struct {
	Code             string           `json:"code" validate:"required,max=64"`
	DiscountType     string           `json:"discountType" validate:"required,oneof=PERCENTAGE FIXED"`
	PercentOff       *decimal.Decimal `json:"percentOff"`
	AmountOffCents   int64            `json:"amountOffCents" validate:"gte=0"`
	Currency         string           `json:"currency" validate:"omitempty,len=3"`
	MinOrderCents    int64            `json:"minOrderCents" validate:"gte=0"`
	UsageLimit       *int             `json:"usageLimit" validate:"omitempty,gte=1"`
	PerCustomerLimit *int             `json:"perCustomerLimit" validate:"omitempty,gte=1"`
	StartsAt         *time.Time       `json:"startsAt"`
	ExpiresAt        *time.Time       `json:"expiresAt"`
	Active           *bool            `json:"active"`
}

func (c createVoucherRequest) toModel() *model.Voucher {
	v := &model.Voucher{
		Code:             c.Code,
		DiscountType:     model.DiscountType(c.DiscountType),
		AmountOffCents:   c.AmountOffCents,
		Currency:         c.Currency,
		MinOrderCents:    c.MinOrderCents,
		UsageLimit:       c.UsageLimit,
		PerCustomerLimit: c.PerCustomerLimit,
		StartsAt:         c.StartsAt,
		ExpiresAt:        c.ExpiresAt,
		Active:           true,
	}
	if c.PercentOff != nil {
		v.PercentOff = *c.PercentOff
	}
	if c.Active != nil {
		v.Active = *c.Active
	}
	return v
}

type voucherResponse struct {
	Code             string             `json:"code"`
	DiscountType     model.DiscountType `json:"discountType"`
	PercentOff       *string            `json:"percentOff,omitempty"`
	AmountOffCents   *int64             `json:"amountOffCents,omitempty"`
	Currency         string             `json:"currency,omitempty"`
	MinOrderCents    int64              `json:"minOrderCents"`
	UsageLimit       *int               `json:"usageLimit,omitempty"`
	PerCustomerLimit *int               `json:"perCustomerLimit,omitempty"`
	UsedCount        int                `json:"usedCount"`
	StartsAt         *time.Time         `json:"startsAt,omitempty"`
	ExpiresAt        *time.Time         `json:"expiresAt,omitempty"`
	Active           bool               `json:"active"`
	CreatedAt        string             `json:"createdAt"`
}

func newVoucherResponse(v model.Voucher) voucherResponse {
	resp := voucherResponse{
		Code:             v.Code,
		DiscountType:     v.DiscountType,
		Currency:         v.Currency,
		MinOrderCents:    v.MinOrderCents,
		UsageLimit:       v.UsageLimit,
		PerCustomerLimit: v.PerCustomerLimit,
		UsedCount:        v.UsedCount,
		StartsAt:         v.StartsAt,
		ExpiresAt:        v.ExpiresAt,
		Active:           v.Active,
		CreatedAt:        v.CreatedAt.Format(time.RFC3339),
	}
	switch v.DiscountType {
	case model.DiscountPercentage:
		p := v.PercentOff.String()
		resp.PercentOff = &p
	case model.DiscountFixed:
		a := v.AmountOffCents
		resp.AmountOffCents = &a
	}
	return resp
}
