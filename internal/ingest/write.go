package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/dash-orders/internal/domain/coupon"
	"github.com/xenking/dash-orders/internal/fixture"
)

// Sink stores imported coupons. The postgres seeder and the memory store
// implement it.
type Sink interface {
	UpsertCoupon(ctx context.Context, c coupon.Coupon) error
}

// Template holds the campaign terms shared by every code of a batch.
type Template struct {
	Kind           string
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	MaxDiscount    decimal.NullDecimal
	StartsAt       time.Time
	EndsAt         time.Time
	MerchantID     string
	TotalLimit     int
	PerUserLimit   int
	Description    string
}

// Coupon applies the template to one code.
func (t Template) Coupon(code string) (coupon.Coupon, error) {
	return fixture.Coupon{
		Code:           code,
		Kind:           t.Kind,
		Value:          t.Value,
		MinOrderAmount: t.MinOrderAmount,
		MaxDiscount:    t.MaxDiscount,
		StartsAt:       t.StartsAt,
		EndsAt:         t.EndsAt,
		MerchantID:     t.MerchantID,
		TotalLimit:     t.TotalLimit,
		PerUserLimit:   t.PerUserLimit,
		Description:    t.Description,
	}.Domain()
}

// Write upserts one coupon per code. Re-running a batch is idempotent since
// coupon ids derive from codes.
func Write(ctx context.Context, sink Sink, t Template, codes []string) error {
	slog.Info("writing coupons", slog.Int("count", len(codes)))
	for i, code := range codes {
		c, err := t.Coupon(code)
		if err != nil {
			return errors.Wrapf(err, "coupon %s", code)
		}
		if err := sink.UpsertCoupon(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", code)
		}
		if (i+1)%1000 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}
	return nil
}
