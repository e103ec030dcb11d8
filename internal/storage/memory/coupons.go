package memory

import (
	"context"
	"slices"

	"github.com/xenking/dash-orders/internal/domain/coupon"
)

// CouponRepository stores coupons and their redemptions.
type CouponRepository struct{ s *Store }

// Coupons returns the coupon view of the store.
func (s *Store) Coupons() CouponRepository { return CouponRepository{s} }

// FindByCode returns the coupon with exactly this code.
func (r CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	defer r.s.lock(ctx)()

	id, ok := r.s.couponCodes[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	c := r.s.coupons[id]
	return &c, nil
}

// CountRedemptions counts redemptions of couponID by userID.
func (r CouponRepository) CountRedemptions(ctx context.Context, couponID, userID string) (int, error) {
	defer r.s.lock(ctx)()

	n := 0
	for _, red := range r.s.redemptions {
		if red.CouponID == couponID && red.UserID == userID {
			n++
		}
	}
	return n, nil
}

// LockByID returns the coupon. Inside a transaction the whole store is
// already held exclusively.
func (r CouponRepository) LockByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	defer r.s.lock(ctx)()

	c, ok := r.s.coupons[id]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

// IncrementUsage bumps the global usage counter.
func (r CouponRepository) IncrementUsage(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()

	c, ok := r.s.coupons[id]
	if !ok {
		return coupon.ErrNotFound
	}
	c.UsageCount++
	r.s.coupons[id] = c
	return nil
}

// InsertRedemption appends a redemption record.
func (r CouponRepository) InsertRedemption(ctx context.Context, red *coupon.Redemption) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.coupons[red.CouponID]; !ok {
		return coupon.ErrNotFound
	}
	r.s.redemptions = append(r.s.redemptions, *red)
	return nil
}

// Redemptions returns a copy of all recorded redemptions.
func (r CouponRepository) Redemptions(ctx context.Context) []coupon.Redemption {
	defer r.s.lock(ctx)()
	return slices.Clone(r.s.redemptions)
}

// UpsertCoupon inserts a coupon or updates the definition of the coupon with
// the same code. The usage counter of an existing coupon is preserved.
func (s *Store) UpsertCoupon(ctx context.Context, c coupon.Coupon) error {
	defer s.lock(ctx)()

	c.Value = c.Value.Round(2)
	c.MinOrderAmount = c.MinOrderAmount.Round(2)
	if c.MaxDiscount.Valid {
		c.MaxDiscount.Decimal = c.MaxDiscount.Decimal.Round(2)
	}
	if id, ok := s.couponCodes[c.Code]; ok {
		existing := s.coupons[id]
		c.ID = existing.ID
		c.UsageCount = existing.UsageCount
	}
	s.coupons[c.ID] = c
	s.couponCodes[c.Code] = c.ID
	return nil
}
