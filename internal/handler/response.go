package handler

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/dash-orders/internal/domain/address"
	"github.com/xenking/dash-orders/internal/domain/apperr"
	"github.com/xenking/dash-orders/internal/domain/coupon"
	"github.com/xenking/dash-orders/internal/domain/order"
)

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError maps a service error to an HTTP response. Typed domain errors
// keep their code, message and details; anything else becomes a generic 500.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		zctx.From(ctx).Error("Request failed", zap.Error(err))
		writeErrorBody(w, http.StatusInternalServerError, "internal", "internal server error", nil)
		return
	}
	writeErrorBody(w, statusFor(appErr.Kind), appErr.Code, appErr.Message, appErr.Details)
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindPreconditionFailed:
		return http.StatusUnprocessableEntity
	case apperr.KindValidationFailed:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string, details map[string]string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Str(code) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
			if len(details) > 0 {
				e.Field("details", func(e *jx.Encoder) {
					e.Obj(func(e *jx.Encoder) {
						for _, k := range slices.Sorted(maps.Keys(details)) {
							e.Field(k, func(e *jx.Encoder) { e.Str(details[k]) })
						}
					})
				})
			}
		})
	})
}

// money writes an amount as a JSON number with two decimal places.
func money(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.StringFixed(2)))
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func optTimestamp(e *jx.Encoder, name string, t *time.Time) {
	if t == nil {
		return
	}
	e.Field(name, func(e *jx.Encoder) { timestamp(e, *t) })
}

func optString(e *jx.Encoder, name, v string) {
	if v == "" {
		return
	}
	e.Field(name, func(e *jx.Encoder) { e.Str(v) })
}

func encodeRejection(e *jx.Encoder, r *coupon.Rejection) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(string(r.Code)) })
		e.Field("message", func(e *jx.Encoder) { e.Str(r.Message) })
	})
}

func encodeCreateResult(e *jx.Encoder, res *order.CreateOrderResult) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("order_id", func(e *jx.Encoder) { e.Str(res.OrderID) })
		e.Field("order_number", func(e *jx.Encoder) { e.Str(res.OrderNumber) })
		e.Field("item_subtotal", func(e *jx.Encoder) { money(e, res.ItemSubtotal) })
		e.Field("delivery_fee", func(e *jx.Encoder) { money(e, res.DeliveryFee) })
		e.Field("discount_amount", func(e *jx.Encoder) { money(e, res.DiscountAmount) })
		e.Field("payable_amount", func(e *jx.Encoder) { money(e, res.PayableAmount) })
		e.Field("payment_expires_at", func(e *jx.Encoder) { timestamp(e, res.PaymentExpiresAt) })
		if res.CouponRejection != nil {
			e.Field("coupon_rejection", func(e *jx.Encoder) { encodeRejection(e, res.CouponRejection) })
		}
	})
}

func encodeAddress(e *jx.Encoder, a address.Address) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(a.ID) })
		e.Field("recipient", func(e *jx.Encoder) { e.Str(a.Recipient) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(a.Phone) })
		e.Field("line1", func(e *jx.Encoder) { e.Str(a.Line1) })
		optString(e, "line2", a.Line2)
		e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
		optString(e, "postal_code", a.PostalCode)
	})
}

func encodeItem(e *jx.Encoder, it order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		optString(e, "image", it.Image)
		e.Field("unit_price", func(e *jx.Encoder) { money(e, it.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("options", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, opt := range it.Options {
					e.Str(opt)
				}
			})
		})
		e.Field("line_total", func(e *jx.Encoder) { money(e, it.LineTotal) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("order_number", func(e *jx.Encoder) { e.Str(o.Number) })
		e.Field("merchant_id", func(e *jx.Encoder) { e.Str(o.MerchantID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("item_subtotal", func(e *jx.Encoder) { money(e, o.ItemSubtotal) })
		e.Field("delivery_fee", func(e *jx.Encoder) { money(e, o.DeliveryFee) })
		e.Field("discount_amount", func(e *jx.Encoder) { money(e, o.DiscountAmount) })
		e.Field("payable_amount", func(e *jx.Encoder) { money(e, o.PayableAmount) })
		optString(e, "coupon_code", o.CouponCode)
		optString(e, "remark", o.Remark)
		optString(e, "cancel_reason", o.CancelReason)
		e.Field("address", func(e *jx.Encoder) { encodeAddress(e, o.Address) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					encodeItem(e, it)
				}
			})
		})
		e.Field("created_at", func(e *jx.Encoder) { timestamp(e, o.CreatedAt) })
		e.Field("payment_expires_at", func(e *jx.Encoder) { timestamp(e, o.PaymentExpiresAt) })
		optTimestamp(e, "paid_at", o.PaidAt)
		optTimestamp(e, "confirmed_at", o.ConfirmedAt)
		optTimestamp(e, "delivered_at", o.DeliveredAt)
		optTimestamp(e, "completed_at", o.CompletedAt)
		optTimestamp(e, "cancelled_at", o.CancelledAt)
	})
}

func encodeValidation(e *jx.Encoder, v *coupon.Validation) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("valid", func(e *jx.Encoder) { e.Bool(v.Valid) })
		e.Field("discount", func(e *jx.Encoder) { money(e, v.Discount) })
		if v.Valid && v.Coupon != nil {
			c := v.Coupon
			e.Field("coupon", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
					e.Field("kind", func(e *jx.Encoder) { e.Str(string(c.Kind)) })
					e.Field("value", func(e *jx.Encoder) { money(e, c.Value) })
					if c.MaxDiscount.Valid {
						e.Field("max_discount", func(e *jx.Encoder) { money(e, c.MaxDiscount.Decimal) })
					}
					optString(e, "description", c.Description)
					e.Field("ends_at", func(e *jx.Encoder) { timestamp(e, c.EndsAt) })
				})
			})
		}
		if v.Rejection != nil {
			e.Field("rejection", func(e *jx.Encoder) { encodeRejection(e, v.Rejection) })
		}
	})
}
