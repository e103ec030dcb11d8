package merchant

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/dash-orders/internal/domain/apperr"
)

// Status is the administrative state of a merchant.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusClosed    Status = "closed"
)

// ErrNotFound is returned when a merchant does not exist.
var ErrNotFound = apperr.NotFound("merchant_not_found", "merchant not found")

// Merchant is the operational snapshot of a seller the engine needs to accept
// an order.
type Merchant struct {
	ID             string
	Name           string
	Status         Status
	Open           bool
	DeliveryFee    decimal.Decimal
	MinOrderAmount decimal.Decimal
}

// Active reports whether the merchant is administratively allowed to trade.
func (m *Merchant) Active() bool {
	return m.Status == StatusActive
}

// Reader loads merchants by id.
type Reader interface {
	// Get returns ErrNotFound when no merchant matches id.
	Get(ctx context.Context, id string) (*Merchant, error)
}
