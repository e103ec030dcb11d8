package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/dash-orders/internal/domain/address"
	"github.com/xenking/dash-orders/internal/domain/coupon"
	"github.com/xenking/dash-orders/internal/domain/merchant"
	"github.com/xenking/dash-orders/internal/domain/product"
)

// Seeder writes reference data (merchants, addresses, products, coupons).
// It is used by the seed and ingest tools; the order engine itself never
// writes these tables.
type Seeder struct {
	merchants *MerchantRepository
	addresses *AddressRepository
	products  *ProductRepository
	coupons   *CouponRepository
}

// NewSeeder returns a Seeder that uses the given pool.
func NewSeeder(pool *pgxpool.Pool) *Seeder {
	return &Seeder{
		merchants: NewMerchantRepository(pool),
		addresses: NewAddressRepository(pool),
		products:  NewProductRepository(pool),
		coupons:   NewCouponRepository(pool),
	}
}

func (s *Seeder) UpsertMerchant(ctx context.Context, m merchant.Merchant) error {
	return s.merchants.Upsert(ctx, m)
}

func (s *Seeder) UpsertAddress(ctx context.Context, a address.Address) error {
	return s.addresses.Upsert(ctx, a)
}

func (s *Seeder) UpsertProduct(ctx context.Context, p product.Product) error {
	return s.products.Upsert(ctx, p)
}

func (s *Seeder) UpsertCoupon(ctx context.Context, c coupon.Coupon) error {
	return s.coupons.Upsert(ctx, c)
}
