package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// RejectionCode identifies the eligibility rule a coupon failed.
type RejectionCode string

const (
	RejectInvalidCode      RejectionCode = "invalid_code"
	RejectNotActive        RejectionCode = "not_active"
	RejectNotYetValid      RejectionCode = "not_yet_valid"
	RejectExpired          RejectionCode = "expired"
	RejectMinOrderNotMet   RejectionCode = "min_order_not_met"
	RejectMerchantMismatch RejectionCode = "merchant_mismatch"
	RejectUsageLimit       RejectionCode = "usage_limit_reached"
	RejectAlreadyUsed      RejectionCode = "already_used"
)

// Request is the input of an eligibility check. Subtotal is the pre-discount
// item subtotal, excluding delivery fee.
type Request struct {
	Code       string
	UserID     string
	MerchantID string
	Subtotal   decimal.Decimal
}

// Rejection explains why a coupon cannot be applied.
type Rejection struct {
	Code    RejectionCode
	Message string
}

// Validation is the outcome of an eligibility check. Exactly one of
// (Coupon, Discount) or Rejection is meaningful, depending on Valid.
type Validation struct {
	Valid     bool
	Discount  decimal.Decimal
	Coupon    *Coupon
	Rejection *Rejection
}

// evaluation carries the state a rule may inspect.
type evaluation struct {
	req     Request
	coupon  *Coupon
	now     time.Time
	coupons Reader
}

// rule is one eligibility predicate. The chain is evaluated in order and the
// first failing rule determines the rejection.
type rule struct {
	code    RejectionCode
	passes  func(ctx context.Context, ev *evaluation) (bool, error)
	message func(ev *evaluation) string
}

func staticMessage(msg string) func(*evaluation) string {
	return func(*evaluation) string { return msg }
}

var rules = []rule{
	{
		code: RejectInvalidCode,
		passes: func(_ context.Context, ev *evaluation) (bool, error) {
			return ev.coupon != nil, nil
		},
		message: staticMessage("coupon code is invalid"),
	},
	{
		code: RejectNotActive,
		passes: func(_ context.Context, ev *evaluation) (bool, error) {
			return ev.coupon.Status == StatusActive, nil
		},
		message: staticMessage("coupon is not active"),
	},
	{
		code: RejectNotYetValid,
		passes: func(_ context.Context, ev *evaluation) (bool, error) {
			return !ev.now.Before(ev.coupon.StartsAt), nil
		},
		message: func(ev *evaluation) string {
			return "coupon is not valid until " + ev.coupon.StartsAt.UTC().Format(time.RFC3339)
		},
	},
	{
		code: RejectExpired,
		passes: func(_ context.Context, ev *evaluation) (bool, error) {
			return !ev.now.After(ev.coupon.EndsAt), nil
		},
		message: staticMessage("coupon has expired"),
	},
	{
		code: RejectMinOrderNotMet,
		passes: func(_ context.Context, ev *evaluation) (bool, error) {
			return ev.req.Subtotal.GreaterThanOrEqual(ev.coupon.MinOrderAmount), nil
		},
		message: func(ev *evaluation) string {
			return "minimum order amount is " + ev.coupon.MinOrderAmount.StringFixed(2)
		},
	},
	{
		code: RejectMerchantMismatch,
		passes: func(_ context.Context, ev *evaluation) (bool, error) {
			return ev.coupon.MerchantID == "" || ev.coupon.MerchantID == ev.req.MerchantID, nil
		},
		message: staticMessage("coupon is not valid for this merchant"),
	},
	{
		code: RejectUsageLimit,
		passes: func(_ context.Context, ev *evaluation) (bool, error) {
			return ev.coupon.TotalLimit == 0 || ev.coupon.UsageCount < ev.coupon.TotalLimit, nil
		},
		message: staticMessage("coupon usage limit reached"),
	},
	{
		code: RejectAlreadyUsed,
		passes: func(ctx context.Context, ev *evaluation) (bool, error) {
			used, err := ev.coupons.CountRedemptions(ctx, ev.coupon.ID, ev.req.UserID)
			if err != nil {
				return false, errors.Wrap(err, "count redemptions")
			}
			return used < ev.coupon.PerUserLimit, nil
		},
		message: staticMessage("coupon already used"),
	},
}

// Evaluator decides whether a coupon applies to a candidate order and how
// much it takes off. It never mutates state, so it is safe to call for UI
// previews as often as needed.
type Evaluator struct {
	coupons Reader
	now     func() time.Time
}

// NewEvaluator creates an Evaluator. A nil now defaults to time.Now.
func NewEvaluator(coupons Reader, now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{coupons: coupons, now: now}
}

// Evaluate runs the eligibility rules in order. Business-rule failures are
// reported in the returned Validation; the error is reserved for storage
// failures and malformed input.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*Validation, error) {
	if req.Subtotal.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if !req.Subtotal.Equal(RoundMoney(req.Subtotal)) {
		return nil, ErrAmountPrecision
	}

	ev := &evaluation{
		req:     req,
		now:     e.now(),
		coupons: e.coupons,
	}

	if req.Code != "" {
		c, err := e.coupons.FindByCode(ctx, req.Code)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return nil, errors.Wrap(err, "lookup coupon")
		default:
			ev.coupon = c
		}
	}

	for _, r := range rules {
		ok, err := r.passes(ctx, ev)
		if err != nil {
			return nil, errors.Wrapf(err, "rule %s", r.code)
		}
		if !ok {
			return &Validation{
				Rejection: &Rejection{Code: r.code, Message: r.message(ev)},
			}, nil
		}
	}

	amount, err := ComputeDiscount(ev.coupon, req.Subtotal)
	if err != nil {
		return nil, err
	}

	return &Validation{
		Valid:    true,
		Discount: amount,
		Coupon:   ev.coupon,
	}, nil
}
