package memory

import (
	"context"

	"github.com/xenking/dash-orders/internal/domain/address"
	"github.com/xenking/dash-orders/internal/domain/merchant"
	"github.com/xenking/dash-orders/internal/domain/product"
)

// MerchantRepository reads merchants from the store.
type MerchantRepository struct{ s *Store }

// Merchants returns the merchant view of the store.
func (s *Store) Merchants() MerchantRepository { return MerchantRepository{s} }

// Get returns a merchant by id.
func (r MerchantRepository) Get(ctx context.Context, id string) (*merchant.Merchant, error) {
	defer r.s.lock(ctx)()

	m, ok := r.s.merchants[id]
	if !ok {
		return nil, merchant.ErrNotFound
	}
	return &m, nil
}

// AddressRepository reads addresses from the store.
type AddressRepository struct{ s *Store }

// Addresses returns the address view of the store.
func (s *Store) Addresses() AddressRepository { return AddressRepository{s} }

// Get returns the address only when it belongs to userID.
func (r AddressRepository) Get(ctx context.Context, userID, addressID string) (*address.Address, error) {
	defer r.s.lock(ctx)()

	a, ok := r.s.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, address.ErrNotFound
	}
	return &a, nil
}

// ProductRepository reads the catalog from the store.
type ProductRepository struct{ s *Store }

// Products returns the catalog view of the store.
func (s *Store) Products() ProductRepository { return ProductRepository{s} }

// GetByIDs returns the products among ids that belong to merchantID.
func (r ProductRepository) GetByIDs(ctx context.Context, merchantID string, ids []string) (map[string]product.Product, error) {
	defer r.s.lock(ctx)()

	out := make(map[string]product.Product, len(ids))
	for _, id := range ids {
		p, ok := r.s.products[id]
		if !ok || p.MerchantID != merchantID {
			continue
		}
		out[id] = p
	}
	return out, nil
}

// UpsertMerchant inserts or replaces a merchant. Amounts are stored in
// cents, as the NUMERIC(12,2) columns do.
func (s *Store) UpsertMerchant(ctx context.Context, m merchant.Merchant) error {
	defer s.lock(ctx)()
	m.DeliveryFee = m.DeliveryFee.Round(2)
	m.MinOrderAmount = m.MinOrderAmount.Round(2)
	s.merchants[m.ID] = m
	return nil
}

// UpsertAddress inserts or replaces an address.
func (s *Store) UpsertAddress(ctx context.Context, a address.Address) error {
	defer s.lock(ctx)()
	s.addresses[a.ID] = a
	return nil
}

// UpsertProduct inserts or replaces a product, rounding the price to cents.
func (s *Store) UpsertProduct(ctx context.Context, p product.Product) error {
	defer s.lock(ctx)()
	p.Price = p.Price.Round(2)
	s.products[p.ID] = p
	return nil
}
