package pricing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/checkout-engine/internal/domain"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Compute derives the full price breakdown for a cart. It is a pure function
// of its inputs: identical carts always produce identical results, so a
// persisted breakdown stays reproducible from the persisted cart snapshot.
//
// Inclusive tax is backed out of the displayed price and does not add to the
// payable total; exclusive tax is added on top. A percent discount applies to
// the pre-tax, pre-shipping subtotal. The grand total never goes below zero.
func Compute(lines []domain.CartLineItem, coupon *domain.Coupon, shippingCost decimal.Decimal) (domain.PricingResult, error) {
	subtotal := decimal.Zero
	inclusiveTax := decimal.Zero
	exclusiveTax := decimal.Zero

	for _, line := range lines {
		if err := validateLine(line); err != nil {
			return domain.PricingResult{}, err
		}

		lineTotal := line.LineTotal()
		subtotal = subtotal.Add(lineTotal)

		if line.TaxRate.IsZero() {
			continue
		}
		switch line.TaxMode {
		case domain.TaxInclusive:
			// price - price/(1+rate/100)
			divisor := one.Add(line.TaxRate.Div(hundred))
			inclusiveTax = inclusiveTax.Add(lineTotal.Sub(lineTotal.Div(divisor)))
		case domain.TaxExclusive:
			exclusiveTax = exclusiveTax.Add(lineTotal.Mul(line.TaxRate).Div(hundred))
		}
	}

	discount := decimal.Zero
	if coupon != nil {
		discount = coupon.DiscountFor(subtotal)
	}

	grandTotal := subtotal.Add(shippingCost).Add(exclusiveTax).Sub(discount)
	if grandTotal.IsNegative() {
		grandTotal = decimal.Zero
	}

	return domain.PricingResult{
		Subtotal:          subtotal,
		InclusiveTaxTotal: inclusiveTax,
		ExclusiveTaxTotal: exclusiveTax,
		ShippingCost:      shippingCost,
		DiscountAmount:    discount,
		GrandTotal:        grandTotal,
	}, nil
}

func validateLine(line domain.CartLineItem) error {
	if line.Quantity <= 0 {
		return apperrors.InvalidInput("line quantity must be positive")
	}
	if line.UnitPrice.IsNegative() {
		return apperrors.InvalidInput("line unit price must not be negative")
	}
	if line.TaxRate.IsNegative() || line.TaxRate.GreaterThan(hundred) {
		return apperrors.InvalidInput("line tax rate must be between 0 and 100")
	}
	if line.TaxMode != domain.TaxInclusive && line.TaxMode != domain.TaxExclusive && !line.TaxRate.IsZero() {
		return apperrors.InvalidInput("line tax mode must be inclusive or exclusive")
	}
	return nil
}

// ValidateCoupon checks whether the coupon applies to a cart with the given
// subtotal at the given instant.
func ValidateCoupon(coupon domain.Coupon, subtotal decimal.Decimal, now time.Time) error {
	if !coupon.ValidFrom.IsZero() && now.Before(coupon.ValidFrom) {
		return apperrors.CouponNotStarted(coupon.Code)
	}
	if !coupon.ValidUntil.IsZero() && now.After(coupon.ValidUntil) {
		return apperrors.CouponExpired(coupon.Code)
	}
	if subtotal.LessThan(coupon.MinimumAmount) {
		return apperrors.CouponBelowMinimum(coupon.Code, coupon.MinimumAmount.String())
	}
	return nil
}

// Requote recomputes the breakdown after a cart change, re-validating any
// applied coupon. A coupon that no longer meets its minimum is silently
// detached and pricing is recomputed without it; expiry is still an error so
// a stale code cannot ride along unnoticed.
func Requote(lines []domain.CartLineItem, coupon *domain.Coupon, shippingCost decimal.Decimal, now time.Time) (domain.PricingResult, bool, error) {
	result, err := Compute(lines, nil, shippingCost)
	if err != nil {
		return domain.PricingResult{}, false, err
	}
	if coupon == nil {
		return result, false, nil
	}

	if err := ValidateCoupon(*coupon, result.Subtotal, now); err != nil {
		if errors.Is(err, apperrors.ErrCouponBelowMin) {
			return result, true, nil
		}
		return domain.PricingResult{}, false, err
	}

	result, err = Compute(lines, coupon, shippingCost)
	if err != nil {
		return domain.PricingResult{}, false, err
	}
	return result, false, nil
}
