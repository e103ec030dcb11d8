package order

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/dash-orders/internal/domain/address"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPendingConfirm Status = "pending_confirm"
	StatusPreparing      Status = "preparing"
	StatusDelivering     Status = "delivering"
	StatusDelivered      Status = "delivered"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// transitions lists the statuses reachable from each state. Fulfillment
// transitions are driven by external collaborators; this engine only creates
// pending_payment orders and cancels them on user request.
var transitions = map[Status][]Status{
	StatusPendingPayment: {StatusPendingConfirm, StatusCancelled},
	StatusPendingConfirm: {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusDelivering},
	StatusDelivering:     {StatusDelivered},
	StatusDelivered:      {StatusCompleted},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusPendingConfirm, StatusPreparing,
		StatusDelivering, StatusDelivered, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Order is a customer order. Price fields are fixed at creation time and
// never change afterwards.
type Order struct {
	ID               string
	Number           string
	UserID           string
	MerchantID       string
	ItemSubtotal     decimal.Decimal
	DeliveryFee      decimal.Decimal
	DiscountAmount   decimal.Decimal
	PayableAmount    decimal.Decimal
	Address          address.Address
	Remark           string
	CouponID         string
	CouponCode       string
	Status           Status
	CancelReason     string
	CreatedAt        time.Time
	PaymentExpiresAt time.Time
	PaidAt           *time.Time
	ConfirmedAt      *time.Time
	DeliveredAt      *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	Items            []Item
}

// Item is an order line. Name, image and unit price are copies taken when
// the order was placed, not live catalog links.
type Item struct {
	ID        string
	OrderID   string
	ProductID string
	Name      string
	Image     string
	UnitPrice decimal.Decimal
	Quantity  int
	Options   []string
	LineTotal decimal.Decimal
}

// Repository defines persistence operations for orders. Methods participate
// in the transaction carried by ctx when there is one.
type Repository interface {
	// Create inserts the order with its items. Returns ErrNumberTaken when
	// the order number is already in use.
	Create(ctx context.Context, o *Order) error
	// Get returns the order with its items. Returns ErrOrderNotFound when
	// the order is absent or owned by another user.
	Get(ctx context.Context, userID, id string) (*Order, error)
	// GetForUpdate is Get plus a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, userID, id string) (*Order, error)
	// UpdateStatus moves the order from one status to another, stamping the
	// timestamp column that belongs to the new status. Returns
	// ErrInvalidOrderStatus when the stored status is not from.
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time, reason string) error
}

// UnitOfWork runs fn inside a single store transaction. The transaction is
// carried by the context passed to fn; fn's error rolls everything back.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
