package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/dash-orders/internal/domain/address"
	"github.com/xenking/dash-orders/internal/domain/merchant"
	"github.com/xenking/dash-orders/internal/domain/product"
)

const (
	getMerchantSQL = `SELECT id, name, status, is_open, delivery_fee, min_order_amount
		FROM merchants WHERE id = $1`

	upsertMerchantSQL = `INSERT INTO merchants (id, name, status, is_open, delivery_fee, min_order_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, status = EXCLUDED.status, is_open = EXCLUDED.is_open,
			delivery_fee = EXCLUDED.delivery_fee, min_order_amount = EXCLUDED.min_order_amount`

	getAddressSQL = `SELECT id, user_id, recipient, phone, line1, line2, city, postal_code, latitude, longitude
		FROM addresses WHERE id = $1 AND user_id = $2`

	upsertAddressSQL = `INSERT INTO addresses (id, user_id, recipient, phone, line1, line2, city, postal_code, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id, recipient = EXCLUDED.recipient, phone = EXCLUDED.phone,
			line1 = EXCLUDED.line1, line2 = EXCLUDED.line2, city = EXCLUDED.city,
			postal_code = EXCLUDED.postal_code, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude`

	getProductsByIDsSQL = `SELECT id, merchant_id, name, image, price, available
		FROM products WHERE merchant_id = $1 AND id = ANY($2)`

	upsertProductSQL = `INSERT INTO products (id, merchant_id, name, image, price, available)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			merchant_id = EXCLUDED.merchant_id, name = EXCLUDED.name, image = EXCLUDED.image,
			price = EXCLUDED.price, available = EXCLUDED.available`
)

var (
	_ merchant.Reader = (*MerchantRepository)(nil)
	_ address.Reader  = (*AddressRepository)(nil)
	_ product.Reader  = (*ProductRepository)(nil)
)

// MerchantRepository implements merchant.Reader backed by PostgreSQL.
type MerchantRepository struct {
	pool *pgxpool.Pool
}

// NewMerchantRepository returns a MerchantRepository that uses the given pool.
func NewMerchantRepository(pool *pgxpool.Pool) *MerchantRepository {
	return &MerchantRepository{pool: pool}
}

// Get returns a merchant by id.
func (r *MerchantRepository) Get(ctx context.Context, id string) (*merchant.Merchant, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getMerchantSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting merchant %q: %w", id, err)
	}

	m, err := pgx.CollectExactlyOneRow(rows, scanMerchant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, merchant.ErrNotFound
		}
		return nil, fmt.Errorf("getting merchant %q: %w", id, err)
	}
	return &m, nil
}

// Upsert inserts or replaces a merchant.
func (r *MerchantRepository) Upsert(ctx context.Context, m merchant.Merchant) error {
	_, err := conn(ctx, r.pool).Exec(ctx, upsertMerchantSQL,
		m.ID, m.Name, string(m.Status), m.Open, m.DeliveryFee, m.MinOrderAmount,
	)
	if err != nil {
		return fmt.Errorf("upserting merchant %q: %w", m.ID, err)
	}
	return nil
}

func scanMerchant(row pgx.CollectableRow) (merchant.Merchant, error) {
	var (
		m      merchant.Merchant
		status string
	)
	err := row.Scan(&m.ID, &m.Name, &status, &m.Open, &m.DeliveryFee, &m.MinOrderAmount)
	m.Status = merchant.Status(status)
	return m, err
}

// AddressRepository implements address.Reader backed by PostgreSQL.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// Get returns the address only when it belongs to userID.
func (r *AddressRepository) Get(ctx context.Context, userID, addressID string) (*address.Address, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getAddressSQL, addressID, userID)
	if err != nil {
		return nil, fmt.Errorf("getting address %q: %w", addressID, err)
	}

	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, fmt.Errorf("getting address %q: %w", addressID, err)
	}
	return &a, nil
}

// Upsert inserts or replaces an address.
func (r *AddressRepository) Upsert(ctx context.Context, a address.Address) error {
	_, err := conn(ctx, r.pool).Exec(ctx, upsertAddressSQL,
		a.ID, a.UserID, a.Recipient, a.Phone, a.Line1, a.Line2, a.City, a.PostalCode, a.Latitude, a.Longitude,
	)
	if err != nil {
		return fmt.Errorf("upserting address %q: %w", a.ID, err)
	}
	return nil
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var a address.Address
	err := row.Scan(
		&a.ID, &a.UserID, &a.Recipient, &a.Phone, &a.Line1, &a.Line2,
		&a.City, &a.PostalCode, &a.Latitude, &a.Longitude,
	)
	return a, err
}

// ProductRepository implements product.Reader backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByIDs returns the products among ids that belong to merchantID, in a
// single query.
func (r *ProductRepository) GetByIDs(ctx context.Context, merchantID string, ids []string) (map[string]product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getProductsByIDsSQL, merchantID, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}

	out := make(map[string]product.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// Upsert inserts or replaces a product.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	_, err := conn(ctx, r.pool).Exec(ctx, upsertProductSQL,
		p.ID, p.MerchantID, p.Name, p.Image, p.Price, p.Available,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.MerchantID, &p.Name, &p.Image, &p.Price, &p.Available)
	return p, err
}
