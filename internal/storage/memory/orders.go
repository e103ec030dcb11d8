package memory

import (
	"context"
	"slices"
	"time"

	"github.com/xenking/dash-orders/internal/domain/order"
)

// OrderRepository stores orders with their items.
type OrderRepository struct{ s *Store }

// Orders returns the order view of the store.
func (s *Store) Orders() OrderRepository { return OrderRepository{s} }

// Create inserts an order. The order number must be unique.
func (r OrderRepository) Create(ctx context.Context, o *order.Order) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.numbers[o.Number]; ok {
		return order.ErrNumberTaken
	}
	r.s.orders[o.ID] = cloneOrder(*o)
	r.s.numbers[o.Number] = o.ID
	return nil
}

// Get returns the order when it belongs to userID.
func (r OrderRepository) Get(ctx context.Context, userID, id string) (*order.Order, error) {
	defer r.s.lock(ctx)()

	o, ok := r.s.orders[id]
	if !ok || o.UserID != userID {
		return nil, order.ErrOrderNotFound
	}
	c := cloneOrder(o)
	return &c, nil
}

// GetForUpdate behaves like Get; transactions already hold the store
// exclusively.
func (r OrderRepository) GetForUpdate(ctx context.Context, userID, id string) (*order.Order, error) {
	return r.Get(ctx, userID, id)
}

// UpdateStatus moves an order between statuses. Price fields are untouched.
func (r OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status, at time.Time, reason string) error {
	defer r.s.lock(ctx)()

	o, ok := r.s.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	if o.Status != from {
		return order.ErrInvalidOrderStatus
	}
	o.Status = to
	stamp := at
	switch to {
	case order.StatusPendingConfirm:
		o.PaidAt = &stamp
	case order.StatusPreparing:
		o.ConfirmedAt = &stamp
	case order.StatusDelivered:
		o.DeliveredAt = &stamp
	case order.StatusCompleted:
		o.CompletedAt = &stamp
	case order.StatusCancelled:
		o.CancelledAt = &stamp
		o.CancelReason = reason
	}
	r.s.orders[id] = o
	return nil
}

// Count returns the number of stored orders.
func (r OrderRepository) Count(ctx context.Context) int {
	defer r.s.lock(ctx)()
	return len(r.s.orders)
}

func cloneOrder(o order.Order) order.Order {
	o.Items = slices.Clone(o.Items)
	for i := range o.Items {
		o.Items[i].Options = slices.Clone(o.Items[i].Options)
	}
	return o
}
