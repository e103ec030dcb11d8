// Package memory provides an in-process implementation of every repository
// the order engine needs. It is used by tests and by the memory storage
// driver for local development.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/xenking/dash-orders/internal/domain/address"
	"github.com/xenking/dash-orders/internal/domain/coupon"
	"github.com/xenking/dash-orders/internal/domain/merchant"
	"github.com/xenking/dash-orders/internal/domain/order"
	"github.com/xenking/dash-orders/internal/domain/product"
)

// Store holds all state behind a single mutex. A transaction holds the mutex
// for its whole duration, so transactions are fully serialized. Repository
// views over the store are obtained with Merchants, Addresses, Products,
// Coupons and Orders.
type Store struct {
	mu sync.Mutex

	merchants   map[string]merchant.Merchant
	addresses   map[string]address.Address
	products    map[string]product.Product
	coupons     map[string]coupon.Coupon
	couponCodes map[string]string
	redemptions []coupon.Redemption
	orders      map[string]order.Order
	numbers     map[string]string
}

var (
	_ merchant.Reader   = MerchantRepository{}
	_ address.Reader    = AddressRepository{}
	_ product.Reader    = ProductRepository{}
	_ coupon.Repository = CouponRepository{}
	_ order.Repository  = OrderRepository{}
	_ order.UnitOfWork  = (*Store)(nil)
)

// New creates an empty Store.
func New() *Store {
	return &Store{
		merchants:   make(map[string]merchant.Merchant),
		addresses:   make(map[string]address.Address),
		products:    make(map[string]product.Product),
		coupons:     make(map[string]coupon.Coupon),
		couponCodes: make(map[string]string),
		orders:      make(map[string]order.Order),
		numbers:     make(map[string]string),
	}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock acquires the store mutex unless ctx already runs inside one of this
// store's transactions.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	merchants   map[string]merchant.Merchant
	addresses   map[string]address.Address
	products    map[string]product.Product
	coupons     map[string]coupon.Coupon
	couponCodes map[string]string
	redemptions int
	orders      map[string]order.Order
	numbers     map[string]string
}

// Entries are replaced, never mutated in place, so shallow copies suffice.
func (s *Store) snapshot() snapshot {
	return snapshot{
		merchants:   maps.Clone(s.merchants),
		addresses:   maps.Clone(s.addresses),
		products:    maps.Clone(s.products),
		coupons:     maps.Clone(s.coupons),
		couponCodes: maps.Clone(s.couponCodes),
		redemptions: len(s.redemptions),
		orders:      maps.Clone(s.orders),
		numbers:     maps.Clone(s.numbers),
	}
}

func (s *Store) restore(snap snapshot) {
	s.merchants = snap.merchants
	s.addresses = snap.addresses
	s.products = snap.products
	s.coupons = snap.coupons
	s.couponCodes = snap.couponCodes
	s.redemptions = s.redemptions[:snap.redemptions]
	s.orders = snap.orders
	s.numbers = snap.numbers
}

// RunInTx runs fn with exclusive access to the store. Every change fn made is
// discarded when it returns an error or panics. Nested calls join the outer
// transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	committed := false
	defer func() {
		if !committed {
			s.restore(snap)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		return err
	}
	committed = true
	return nil
}
