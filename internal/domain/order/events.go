package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventType names an order lifecycle event.
type EventType string

const (
	EventCreated   EventType = "order.created"
	EventCancelled EventType = "order.cancelled"
)

// Event is published after the transaction that produced it has committed.
type Event struct {
	Type          EventType
	OrderID       string
	OrderNumber   string
	UserID        string
	MerchantID    string
	Status        Status
	PayableAmount decimal.Decimal
	CouponCode    string
	Reason        string
	OccurredAt    time.Time
}

// EventPublisher delivers order events to downstream consumers (payment
// initiation, merchant notification).
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

func newEvent(t EventType, o *Order, at time.Time) Event {
	return Event{
		Type:          t,
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		UserID:        o.UserID,
		MerchantID:    o.MerchantID,
		Status:        o.Status,
		PayableAmount: o.PayableAmount,
		CouponCode:    o.CouponCode,
		Reason:        o.CancelReason,
		OccurredAt:    at,
	}
}
