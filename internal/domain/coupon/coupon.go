package coupon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/dash-orders/internal/domain/apperr"
)

// Kind enumerates the supported coupon discount strategies.
type Kind string

const (
	// KindPercentage takes a percentage of the subtotal, optionally capped.
	KindPercentage Kind = "percentage"
	// KindFixed takes a fixed monetary amount.
	KindFixed Kind = "fixed"
)

// Status is the lifecycle state of a coupon.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

var (
	// ErrNotFound is returned when no coupon matches the lookup.
	ErrNotFound = apperr.NotFound("coupon_not_found", "coupon not found")
	// ErrUsageLimitRaceLost is returned by the ledger when a concurrent
	// redemption consumed the last global slot.
	ErrUsageLimitRaceLost = apperr.Conflict("coupon_usage_limit_race", "coupon usage limit was reached by a concurrent order")
	// ErrPerUserLimitRaceLost is returned by the ledger when a concurrent
	// redemption by the same user consumed the last per-user slot.
	ErrPerUserLimitRaceLost = apperr.Conflict("coupon_per_user_limit_race", "coupon was already redeemed by a concurrent order")
	// ErrInvalidAmount is returned when the candidate subtotal is negative.
	ErrInvalidAmount = apperr.ValidationFailed("invalid_order_amount", "order amount must not be negative")
	// ErrAmountPrecision is returned when the candidate subtotal has
	// fractions of a cent.
	ErrAmountPrecision = apperr.ValidationFailed("invalid_order_amount_precision", "order amount must have at most 2 decimal places")
)

// Coupon is a redeemable discount rule. MaxDiscount caps percentage
// discounts and is ignored for fixed ones. An empty MerchantID means the
// coupon is valid at any merchant; a zero TotalLimit means unlimited.
type Coupon struct {
	ID             string
	Code           string
	Kind           Kind
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	MaxDiscount    decimal.NullDecimal
	StartsAt       time.Time
	EndsAt         time.Time
	MerchantID     string
	TotalLimit     int
	PerUserLimit   int
	UsageCount     int
	Status         Status
	Description    string
}

// Redemption records one consumption of a coupon by a user against an order.
type Redemption struct {
	ID         string
	UserID     string
	CouponID   string
	OrderID    string
	RedeemedAt time.Time
}

// Reader provides the read side used by eligibility evaluation.
type Reader interface {
	// FindByCode returns ErrNotFound when no coupon has exactly this code.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// CountRedemptions returns how many times userID redeemed couponID.
	CountRedemptions(ctx context.Context, couponID, userID string) (int, error)
}

// Repository adds the write side used by the redemption ledger. Write
// methods must be called inside a transaction carried by ctx.
type Repository interface {
	Reader
	// LockByID loads the coupon and holds a row lock on it until the
	// surrounding transaction ends. Returns ErrNotFound when absent.
	LockByID(ctx context.Context, id string) (*Coupon, error)
	IncrementUsage(ctx context.Context, id string) error
	InsertRedemption(ctx context.Context, r *Redemption) error
}
