package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType is how a coupon's value is applied.
type DiscountType string

const (
	DiscountFixed   DiscountType = "fixed"
	DiscountPercent DiscountType = "percent"
)

// Coupon is read-only discount reference data. A coupon application binds a
// code to a checkout attempt and is re-validated against the live cart
// subtotal, never trusted from client state.
type Coupon struct {
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	MinimumAmount decimal.Decimal `json:"minimum_amount"`
	ValidFrom     time.Time       `json:"valid_from"`
	ValidUntil    time.Time       `json:"valid_until"`
}

// DiscountFor returns the discount this coupon grants on the given pre-tax,
// pre-shipping subtotal.
func (c Coupon) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	if c.DiscountType == DiscountFixed {
		return c.DiscountValue
	}
	return subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
}
