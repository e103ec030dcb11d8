package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Ledger records coupon redemptions and keeps the global usage counter.
//
// Redeem must run inside the transaction that persists the order: it takes a
// row lock on the coupon, so concurrent redemptions of the same coupon are
// serialized and both limits are re-checked against committed state.
type Ledger struct {
	coupons Repository
	now     func() time.Time
	newID   func() string
}

// NewLedger creates a Ledger. A nil now defaults to time.Now.
func NewLedger(coupons Repository, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		coupons: coupons,
		now:     now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Redeem consumes one use of couponID by userID for orderID.
func (l *Ledger) Redeem(ctx context.Context, userID, couponID, orderID string) (*Redemption, error) {
	c, err := l.coupons.LockByID(ctx, couponID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lock coupon")
	}

	if c.TotalLimit > 0 && c.UsageCount >= c.TotalLimit {
		return nil, ErrUsageLimitRaceLost
	}

	used, err := l.coupons.CountRedemptions(ctx, couponID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "count redemptions")
	}
	if used >= c.PerUserLimit {
		return nil, ErrPerUserLimitRaceLost
	}

	if err := l.coupons.IncrementUsage(ctx, couponID); err != nil {
		return nil, errors.Wrap(err, "increment coupon usage")
	}

	r := &Redemption{
		ID:         l.newID(),
		UserID:     userID,
		CouponID:   couponID,
		OrderID:    orderID,
		RedeemedAt: l.now().UTC(),
	}
	if err := l.coupons.InsertRedemption(ctx, r); err != nil {
		return nil, errors.Wrap(err, "insert redemption")
	}
	return r, nil
}
