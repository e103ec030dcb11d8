package address

import (
	"context"

	"github.com/xenking/dash-orders/internal/domain/apperr"
)

// ErrNotFound is returned when the address does not exist or belongs to
// another user.
var ErrNotFound = apperr.NotFound("address_not_found", "address not found")

// Address is a user's saved delivery address.
type Address struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	Recipient  string  `json:"recipient"`
	Phone      string  `json:"phone"`
	Line1      string  `json:"line1"`
	Line2      string  `json:"line2,omitempty"`
	City       string  `json:"city"`
	PostalCode string  `json:"postal_code,omitempty"`
	Latitude   float64 `json:"latitude,omitempty"`
	Longitude  float64 `json:"longitude,omitempty"`
}

// Reader loads addresses scoped to their owner.
type Reader interface {
	// Get returns ErrNotFound when the address is missing or not owned by
	// userID.
	Get(ctx context.Context, userID, addressID string) (*Address, error)
}
