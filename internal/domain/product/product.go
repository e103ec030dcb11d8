package product

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is the catalog snapshot the order engine prices against.
type Product struct {
	ID         string
	MerchantID string
	Name       string
	Image      string
	Price      decimal.Decimal
	Available  bool
}

// Reader defines read operations for the product catalog.
type Reader interface {
	// GetByIDs returns the products among ids that belong to merchantID.
	// Ids that are unknown or owned by another merchant are absent from the
	// result map.
	GetByIDs(ctx context.Context, merchantID string, ids []string) (map[string]Product, error)
}
