package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/dash-orders/internal/domain/coupon"
)

const couponColumns = `id, code, kind, value, min_order_amount, max_discount, starts_at, ends_at,
		merchant_id, total_limit, per_user_limit, usage_count, status, description`

const (
	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	lockCouponSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1 FOR UPDATE`

	countRedemptionsSQL = `SELECT count(*) FROM coupon_redemptions WHERE coupon_id = $1 AND user_id = $2`

	incrementCouponUsageSQL = `UPDATE coupons SET usage_count = usage_count + 1 WHERE id = $1`

	insertRedemptionSQL = `INSERT INTO coupon_redemptions (id, user_id, coupon_id, order_id, redeemed_at)
		VALUES ($1, $2, $3, $4, $5)`

	// The usage counter of an existing coupon is left alone.
	upsertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, $13)
		ON CONFLICT (code) DO UPDATE SET
			kind = EXCLUDED.kind, value = EXCLUDED.value, min_order_amount = EXCLUDED.min_order_amount,
			max_discount = EXCLUDED.max_discount, starts_at = EXCLUDED.starts_at, ends_at = EXCLUDED.ends_at,
			merchant_id = EXCLUDED.merchant_id, total_limit = EXCLUDED.total_limit,
			per_user_limit = EXCLUDED.per_user_limit, status = EXCLUDED.status,
			description = EXCLUDED.description`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its exact, case-sensitive code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.getOne(ctx, getCouponByCodeSQL, code)
}

// LockByID loads a coupon with SELECT ... FOR UPDATE. The lock is held until
// the transaction carried by ctx ends.
func (r *CouponRepository) LockByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.getOne(ctx, lockCouponSQL, id)
}

func (r *CouponRepository) getOne(ctx context.Context, sql, arg string) (*coupon.Coupon, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", arg, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", arg, err)
	}
	return &c, nil
}

// CountRedemptions counts redemptions of couponID by userID.
func (r *CouponRepository) CountRedemptions(ctx context.Context, couponID, userID string) (int, error) {
	var n int
	if err := conn(ctx, r.pool).QueryRow(ctx, countRedemptionsSQL, couponID, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting redemptions of coupon %q: %w", couponID, err)
	}
	return n, nil
}

// IncrementUsage bumps the global usage counter of a coupon.
func (r *CouponRepository) IncrementUsage(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, incrementCouponUsageSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing usage of coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// InsertRedemption appends a redemption record.
func (r *CouponRepository) InsertRedemption(ctx context.Context, red *coupon.Redemption) error {
	_, err := conn(ctx, r.pool).Exec(ctx, insertRedemptionSQL,
		red.ID, red.UserID, red.CouponID, red.OrderID, red.RedeemedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return coupon.ErrPerUserLimitRaceLost
		}
		return fmt.Errorf("inserting redemption of coupon %q: %w", red.CouponID, err)
	}
	return nil
}

// Upsert inserts a coupon or updates the definition of the coupon with the
// same code.
func (r *CouponRepository) Upsert(ctx context.Context, c coupon.Coupon) error {
	_, err := conn(ctx, r.pool).Exec(ctx, upsertCouponSQL,
		c.ID, c.Code, string(c.Kind), c.Value, c.MinOrderAmount, c.MaxDiscount,
		c.StartsAt, c.EndsAt, nullString(c.MerchantID), c.TotalLimit, c.PerUserLimit,
		string(c.Status), c.Description,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c          coupon.Coupon
		kind       string
		status     string
		merchantID *string
	)
	err := row.Scan(
		&c.ID, &c.Code, &kind, &c.Value, &c.MinOrderAmount, &c.MaxDiscount,
		&c.StartsAt, &c.EndsAt, &merchantID, &c.TotalLimit, &c.PerUserLimit,
		&c.UsageCount, &status, &c.Description,
	)
	c.Kind = coupon.Kind(kind)
	c.Status = coupon.Status(status)
	if merchantID != nil {
		c.MerchantID = *merchantID
	}
	return c, err
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
