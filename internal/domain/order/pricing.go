package order

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/dash-orders/internal/domain/product"
)

// ErrPricingInvariant signals a logic bug upstream of totals computation.
// It is never corrected silently.
var ErrPricingInvariant = errors.New("pricing invariant violated")

// Line is a priced cart line: a catalog snapshot and the requested quantity.
type Line struct {
	Product  product.Product
	Quantity int
	Options  []string
}

// Total returns unit price times quantity.
func (l Line) Total() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals is the price breakdown of an order.
type Totals struct {
	ItemSubtotal   decimal.Decimal
	DeliveryFee    decimal.Decimal
	DiscountAmount decimal.Decimal
	PayableAmount  decimal.Decimal
}

// Subtotal sums line totals.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// CheckMinimum fails with ErrMinOrderNotMet when the pre-discount subtotal is
// below the merchant minimum.
func CheckMinimum(subtotal, minimum decimal.Decimal) error {
	if subtotal.LessThan(minimum) {
		return ErrMinOrderNotMet.
			WithMessage("minimum order amount is %s", minimum.StringFixed(2)).
			WithDetail("min_order_amount", minimum.StringFixed(2))
	}
	return nil
}

// ComputeTotals composes the final breakdown. payable = subtotal + fee -
// discount; any input that would break discount <= subtotal or payable >= 0
// is reported as ErrPricingInvariant.
func ComputeTotals(subtotal, fee, discount decimal.Decimal) (Totals, error) {
	switch {
	case subtotal.IsNegative():
		return Totals{}, errors.Wrapf(ErrPricingInvariant, "negative subtotal %s", subtotal)
	case fee.IsNegative():
		return Totals{}, errors.Wrapf(ErrPricingInvariant, "negative delivery fee %s", fee)
	case discount.IsNegative():
		return Totals{}, errors.Wrapf(ErrPricingInvariant, "negative discount %s", discount)
	case discount.GreaterThan(subtotal):
		return Totals{}, errors.Wrapf(ErrPricingInvariant, "discount %s exceeds subtotal %s", discount, subtotal)
	}

	payable := subtotal.Add(fee).Sub(discount)
	if payable.IsNegative() {
		return Totals{}, errors.Wrapf(ErrPricingInvariant, "negative payable amount %s", payable)
	}

	return Totals{
		ItemSubtotal:   subtotal,
		DeliveryFee:    fee,
		DiscountAmount: discount,
		PayableAmount:  payable,
	}, nil
}
