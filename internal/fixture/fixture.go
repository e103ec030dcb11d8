// Package fixture loads reference data (merchants, products, addresses and
// coupons) from JSON files and writes it to a store.
package fixture

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/dash-orders/internal/domain/address"
	"github.com/xenking/dash-orders/internal/domain/coupon"
	"github.com/xenking/dash-orders/internal/domain/merchant"
	"github.com/xenking/dash-orders/internal/domain/product"
)

// Sink receives fixture records. Both storage drivers implement it.
type Sink interface {
	UpsertMerchant(ctx context.Context, m merchant.Merchant) error
	UpsertAddress(ctx context.Context, a address.Address) error
	UpsertProduct(ctx context.Context, p product.Product) error
	UpsertCoupon(ctx context.Context, c coupon.Coupon) error
}

// Fixture is the root of a fixture file.
type Fixture struct {
	Merchants []Merchant        `json:"merchants"`
	Products  []Product         `json:"products"`
	Addresses []address.Address `json:"addresses"`
	Coupons   []Coupon          `json:"coupons"`
}

type Merchant struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Status         string          `json:"status"`
	Open           *bool           `json:"open"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
}

type Product struct {
	ID         string          `json:"id"`
	MerchantID string          `json:"merchant_id"`
	Name       string          `json:"name"`
	Image      string          `json:"image"`
	Price      decimal.Decimal `json:"price"`
	Available  *bool           `json:"available"`
}

type Coupon struct {
	ID             string              `json:"id"`
	Code           string              `json:"code"`
	Kind           string              `json:"kind"`
	Value          decimal.Decimal     `json:"value"`
	MinOrderAmount decimal.Decimal     `json:"min_order_amount"`
	MaxDiscount    decimal.NullDecimal `json:"max_discount"`
	StartsAt       time.Time           `json:"starts_at"`
	EndsAt         time.Time           `json:"ends_at"`
	MerchantID     string              `json:"merchant_id"`
	TotalLimit     int                 `json:"total_limit"`
	PerUserLimit   int                 `json:"per_user_limit"`
	Status         string              `json:"status"`
	Description    string              `json:"description"`
}

// Load decodes a fixture from r.
func Load(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fx); err != nil {
		return nil, errors.Wrap(err, "decode fixture")
	}
	return &fx, nil
}

// LoadFile decodes the fixture file at path.
func LoadFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open fixture")
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Apply writes every record of fx to sink, merchants first so that products
// and coupons can reference them.
func Apply(ctx context.Context, sink Sink, fx *Fixture) error {
	for _, m := range fx.Merchants {
		if err := sink.UpsertMerchant(ctx, m.Domain()); err != nil {
			return errors.Wrapf(err, "merchant %s", m.ID)
		}
	}
	for _, p := range fx.Products {
		if err := sink.UpsertProduct(ctx, p.Domain()); err != nil {
			return errors.Wrapf(err, "product %s", p.ID)
		}
	}
	for _, a := range fx.Addresses {
		if err := sink.UpsertAddress(ctx, a); err != nil {
			return errors.Wrapf(err, "address %s", a.ID)
		}
	}
	for _, c := range fx.Coupons {
		dc, err := c.Domain()
		if err != nil {
			return errors.Wrapf(err, "coupon %s", c.Code)
		}
		if err := sink.UpsertCoupon(ctx, dc); err != nil {
			return errors.Wrapf(err, "coupon %s", c.Code)
		}
	}
	return nil
}

// Domain converts the record, defaulting to an active, open merchant.
func (m Merchant) Domain() merchant.Merchant {
	status := merchant.Status(m.Status)
	if status == "" {
		status = merchant.StatusActive
	}
	return merchant.Merchant{
		ID:             m.ID,
		Name:           m.Name,
		Status:         status,
		Open:           m.Open == nil || *m.Open,
		DeliveryFee:    m.DeliveryFee,
		MinOrderAmount: m.MinOrderAmount,
	}
}

// Domain converts the record; products are available unless stated.
func (p Product) Domain() product.Product {
	return product.Product{
		ID:         p.ID,
		MerchantID: p.MerchantID,
		Name:       p.Name,
		Image:      p.Image,
		Price:      p.Price,
		Available:  p.Available == nil || *p.Available,
	}
}

// Domain validates and converts the record. A missing id is derived from the
// code, so re-importing the same code is stable.
func (c Coupon) Domain() (coupon.Coupon, error) {
	code := strings.TrimSpace(c.Code)
	if code == "" {
		return coupon.Coupon{}, errors.New("code is required")
	}
	kind := coupon.Kind(c.Kind)
	if kind != coupon.KindPercentage && kind != coupon.KindFixed {
		return coupon.Coupon{}, errors.Errorf("unsupported kind %q", c.Kind)
	}
	if c.Value.IsNegative() {
		return coupon.Coupon{}, errors.New("value must not be negative")
	}
	if c.EndsAt.Before(c.StartsAt) {
		return coupon.Coupon{}, errors.New("ends_at is before starts_at")
	}
	status := coupon.Status(c.Status)
	if status == "" {
		status = coupon.StatusActive
	}
	perUser := c.PerUserLimit
	if perUser < 1 {
		perUser = 1
	}
	id := c.ID
	if id == "" {
		id = CouponID(code)
	}

	return coupon.Coupon{
		ID:             id,
		Code:           code,
		Kind:           kind,
		Value:          c.Value,
		MinOrderAmount: c.MinOrderAmount,
		MaxDiscount:    c.MaxDiscount,
		StartsAt:       c.StartsAt,
		EndsAt:         c.EndsAt,
		MerchantID:     c.MerchantID,
		TotalLimit:     c.TotalLimit,
		PerUserLimit:   perUser,
		Status:         status,
		Description:    c.Description,
	}, nil
}

// CouponID derives a stable coupon id from its code.
func CouponID(code string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("coupon:"+code)).String()
}
