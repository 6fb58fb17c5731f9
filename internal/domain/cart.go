package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxMode says whether a line's tax is embedded in the unit price or added
// on top at checkout.
type TaxMode string

const (
	TaxInclusive TaxMode = "inclusive"
	TaxExclusive TaxMode = "exclusive"
)

// CartLineItem is a single cart line, frozen at checkout submission.
type CartLineItem struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	TaxMode   TaxMode         `json:"tax_mode"`
}

// LineTotal returns unit price times quantity.
func (l CartLineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SessionStatus is the lifecycle state of a checkout session.
type SessionStatus string

const (
	SessionOpen      SessionStatus = "open"
	SessionQuoted    SessionStatus = "quoted"
	SessionPending   SessionStatus = "pending_payment"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
)

// CheckoutSession carries a cart through the checkout stages. It is the
// explicit value passed between quote, intent, and completion instead of
// client-held state.
type CheckoutSession struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Lines           []CartLineItem  `json:"lines"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	ShippingOption  string          `json:"shipping_option,omitempty"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	Status          SessionStatus   `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DetachCoupon removes the applied coupon from the session.
func (s *CheckoutSession) DetachCoupon() {
	s.CouponCode = ""
}
