package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeDiscount returns the discount c grants on subtotal, rounded to cents
// half-up. Rounding happens before the clamp, so the result never exceeds
// subtotal.
func ComputeDiscount(c *Coupon, subtotal decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch c.Kind {
	case KindPercentage:
		amount = subtotal.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.Valid && amount.GreaterThan(c.MaxDiscount.Decimal) {
			amount = c.MaxDiscount.Decimal
		}
	case KindFixed:
		amount = c.Value
	default:
		return decimal.Zero, errors.Errorf("unsupported discount kind: %q", c.Kind)
	}

	return decimal.Min(RoundMoney(floorAtZero(amount)), subtotal), nil
}

// RoundMoney rounds to 2 decimal places, half away from zero. For the
// non-negative amounts handled here that is round-half-up: 5.025 -> 5.03.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
