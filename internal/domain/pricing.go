package domain

import "github.com/shopspring/decimal"

// PricingResult is the derived price breakdown for a cart. It is recomputed
// on every cart or coupon change and only persisted as part of an Order.
type PricingResult struct {
	Subtotal          decimal.Decimal `json:"subtotal"`
	InclusiveTaxTotal decimal.Decimal `json:"inclusive_tax_total"`
	ExclusiveTaxTotal decimal.Decimal `json:"exclusive_tax_total"`
	ShippingCost      decimal.Decimal `json:"shipping_cost"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	GrandTotal        decimal.Decimal `json:"grand_total"`
}
