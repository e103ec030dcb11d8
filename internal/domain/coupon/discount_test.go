package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func capped(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(v))
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name       string
		coupon     *Coupon
		subtotal   decimal.Decimal
		wantAmount decimal.Decimal
	}{
		{
			name:       "percentage 18% of 100",
			coupon:     &Coupon{Kind: KindPercentage, Value: d("18")},
			subtotal:   d("100.00"),
			wantAmount: d("18.00"),
		},
		{
			name:       "percentage clamped to max discount",
			coupon:     &Coupon{Kind: KindPercentage, Value: d("20"), MaxDiscount: capped("10.00")},
			subtotal:   d("100.00"),
			wantAmount: d("10.00"),
		},
		{
			name:       "percentage below cap is untouched",
			coupon:     &Coupon{Kind: KindPercentage, Value: d("5"), MaxDiscount: capped("10.00")},
			subtotal:   d("100.00"),
			wantAmount: d("5.00"),
		},
		{
			name:       "percentage 100% equals subtotal",
			coupon:     &Coupon{Kind: KindPercentage, Value: d("100")},
			subtotal:   d("42.50"),
			wantAmount: d("42.50"),
		},
		{
			name:       "percentage above 100% is clamped to subtotal",
			coupon:     &Coupon{Kind: KindPercentage, Value: d("150")},
			subtotal:   d("20.00"),
			wantAmount: d("20.00"),
		},
		{
			name:       "fixed under subtotal",
			coupon:     &Coupon{Kind: KindFixed, Value: d("8.00")},
			subtotal:   d("30.00"),
			wantAmount: d("8.00"),
		},
		{
			name:       "fixed over subtotal is clamped",
			coupon:     &Coupon{Kind: KindFixed, Value: d("50.00")},
			subtotal:   d("12.34"),
			wantAmount: d("12.34"),
		},
		{
			name:       "cap ignored for fixed coupons",
			coupon:     &Coupon{Kind: KindFixed, Value: d("15.00"), MaxDiscount: capped("10.00")},
			subtotal:   d("100.00"),
			wantAmount: d("15.00"),
		},
		{
			name:       "half cent rounds up",
			coupon:     &Coupon{Kind: KindPercentage, Value: d("50")},
			subtotal:   d("10.05"),
			wantAmount: d("5.03"),
		},
		{
			name:       "below half cent rounds down",
			coupon:     &Coupon{Kind: KindPercentage, Value: d("15")},
			subtotal:   d("10.01"),
			wantAmount: d("1.50"),
		},
		{
			name:       "rounding never lifts a fixed discount above a sub-cent subtotal",
			coupon:     &Coupon{Kind: KindFixed, Value: d("20.00")},
			subtotal:   d("10.005"),
			wantAmount: d("10.005"),
		},
		{
			name:       "rounding never lifts a full percentage above a sub-cent subtotal",
			coupon:     &Coupon{Kind: KindPercentage, Value: d("100")},
			subtotal:   d("3.335"),
			wantAmount: d("3.335"),
		},
		{
			name:       "zero subtotal gives zero",
			coupon:     &Coupon{Kind: KindFixed, Value: d("5")},
			subtotal:   decimal.Zero,
			wantAmount: decimal.Zero,
		},
		{
			name:       "negative fixed value floors at zero",
			coupon:     &Coupon{Kind: KindFixed, Value: d("-3")},
			subtotal:   d("10"),
			wantAmount: decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeDiscount(tt.coupon, tt.subtotal)
			require.NoError(t, err)
			assert.True(t, tt.wantAmount.Equal(got), "expected %s, got %s", tt.wantAmount, got)
			assert.True(t, got.LessThanOrEqual(tt.subtotal), "discount %s exceeds subtotal %s", got, tt.subtotal)
		})
	}
}

func TestComputeDiscount_UnsupportedKind(t *testing.T) {
	_, err := ComputeDiscount(&Coupon{Kind: "free_lowest", Value: d("1")}, d("10"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported discount kind")
}

func TestRoundMoney_HalfUp(t *testing.T) {
	assert.Equal(t, "5.03", RoundMoney(d("5.025")).StringFixed(2))
	assert.Equal(t, "5.02", RoundMoney(d("5.0249")).StringFixed(2))
	assert.Equal(t, "0.01", RoundMoney(d("0.005")).StringFixed(2))
	assert.Equal(t, "2.35", RoundMoney(d("2.345")).StringFixed(2))
}
