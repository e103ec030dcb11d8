// Package messaging delivers order events to downstream consumers.
package messaging

import (
	"context"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/dash-orders/internal/domain/order"
)

var _ order.EventPublisher = LogPublisher{}

// EncodeEvent renders an order event as the JSON message body.
func EncodeEvent(ev order.Event) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(string(ev.Type)) })
		e.Field("order_id", func(e *jx.Encoder) { e.Str(ev.OrderID) })
		e.Field("order_number", func(e *jx.Encoder) { e.Str(ev.OrderNumber) })
		e.Field("user_id", func(e *jx.Encoder) { e.Str(ev.UserID) })
		e.Field("merchant_id", func(e *jx.Encoder) { e.Str(ev.MerchantID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(ev.Status)) })
		e.Field("payable_amount", func(e *jx.Encoder) { e.Raw([]byte(ev.PayableAmount.StringFixed(2))) })
		if ev.CouponCode != "" {
			e.Field("coupon_code", func(e *jx.Encoder) { e.Str(ev.CouponCode) })
		}
		if ev.Reason != "" {
			e.Field("reason", func(e *jx.Encoder) { e.Str(ev.Reason) })
		}
		e.Field("occurred_at", func(e *jx.Encoder) { e.Str(ev.OccurredAt.UTC().Format(time.RFC3339Nano)) })
	})
	return append([]byte(nil), e.Bytes()...)
}

// LogPublisher writes events to the request logger. It stands in for a
// broker when none is configured.
type LogPublisher struct{}

// Publish implements order.EventPublisher.
func (LogPublisher) Publish(ctx context.Context, ev order.Event) error {
	zctx.From(ctx).Info("Order event",
		zap.String("type", string(ev.Type)),
		zap.String("order_id", ev.OrderID),
		zap.ByteString("body", EncodeEvent(ev)),
	)
	return nil
}
