package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/dash-orders/internal/domain/order"
)

const orderNumberConstraint = "orders_order_number_key"

const orderColumns = `id, order_number, user_id, merchant_id, item_subtotal, delivery_fee,
		discount_amount, payable_amount, shipping_address, remark, coupon_id, coupon_code, status,
		cancel_reason, created_at, payment_expires_at, paid_at, confirmed_at, delivered_at,
		completed_at, cancelled_at`

const (
	insertOrderSQL = `INSERT INTO orders (id, order_number, user_id, merchant_id, item_subtotal, delivery_fee,
		discount_amount, payable_amount, shipping_address, remark, coupon_id, coupon_code, status,
		created_at, payment_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, position, product_id, name, image,
		unit_price, quantity, options, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	listOrderItemsSQL = `SELECT id, order_id, product_id, name, image, unit_price, quantity, options, line_total
		FROM order_items WHERE order_id = $1 ORDER BY position`
)

// Status updates only ever touch status columns; prices stay as inserted.
var updateStatusSQL = map[order.Status]string{
	order.StatusPendingConfirm: `UPDATE orders SET status = $3, paid_at = $4 WHERE id = $1 AND status = $2`,
	order.StatusPreparing:      `UPDATE orders SET status = $3, confirmed_at = $4 WHERE id = $1 AND status = $2`,
	order.StatusDelivering:     `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`,
	order.StatusDelivered:      `UPDATE orders SET status = $3, delivered_at = $4 WHERE id = $1 AND status = $2`,
	order.StatusCompleted:      `UPDATE orders SET status = $3, completed_at = $4 WHERE id = $1 AND status = $2`,
	order.StatusCancelled:      `UPDATE orders SET status = $3, cancelled_at = $4, cancel_reason = $5 WHERE id = $1 AND status = $2`,
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and its items. The shipping address snapshot
// is serialized to JSON for storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	addressJSON, err := json.Marshal(o.Address)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	return inTx(ctx, r.pool, func(q querier) error {
		_, err := q.Exec(ctx, insertOrderSQL,
			o.ID, o.Number, o.UserID, o.MerchantID, o.ItemSubtotal, o.DeliveryFee,
			o.DiscountAmount, o.PayableAmount, addressJSON, o.Remark, nullString(o.CouponID), o.CouponCode,
			string(o.Status), o.CreatedAt, o.PaymentExpiresAt,
		)
		if err != nil {
			if isUniqueViolation(err, orderNumberConstraint) {
				return order.ErrNumberTaken
			}
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}

		b := &pgx.Batch{}
		for i, it := range o.Items {
			options := it.Options
			if options == nil {
				options = []string{}
			}
			b.Queue(insertOrderItemSQL,
				it.ID, o.ID, i, it.ProductID, it.Name, it.Image,
				it.UnitPrice, it.Quantity, options, it.LineTotal,
			)
		}
		if err := execBatch(ctx, q, b); err != nil {
			return fmt.Errorf("creating items of order %q: %w", o.ID, err)
		}
		return nil
	})
}

// Get returns the order with its items when it belongs to userID.
func (r *OrderRepository) Get(ctx context.Context, userID, id string) (*order.Order, error) {
	return r.get(ctx, getOrderSQL, userID, id)
}

// GetForUpdate is Get with a row lock on the order.
func (r *OrderRepository) GetForUpdate(ctx context.Context, userID, id string) (*order.Order, error) {
	return r.get(ctx, getOrderForUpdateSQL, userID, id)
}

func (r *OrderRepository) get(ctx context.Context, sql, userID, id string) (*order.Order, error) {
	q := conn(ctx, r.pool)

	rows, err := q.Query(ctx, sql, id, userID)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	rows, err = q.Query(ctx, listOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", id, err)
	}
	return &o, nil
}

// UpdateStatus moves an order between statuses, guarded by the expected
// current status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status, at time.Time, reason string) error {
	sql, ok := updateStatusSQL[to]
	if !ok {
		return errors.Errorf("unsupported target status %q", to)
	}

	args := []any{id, string(from), string(to)}
	switch to {
	case order.StatusDelivering:
	case order.StatusCancelled:
		args = append(args, at, reason)
	default:
		args = append(args, at)
	}
	tag, err := conn(ctx, r.pool).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrInvalidOrderStatus
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o           order.Order
		addressJSON []byte
		couponID    *string
		status      string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &o.MerchantID, &o.ItemSubtotal, &o.DeliveryFee,
		&o.DiscountAmount, &o.PayableAmount, &addressJSON, &o.Remark, &couponID, &o.CouponCode, &status,
		&o.CancelReason, &o.CreatedAt, &o.PaymentExpiresAt, &o.PaidAt, &o.ConfirmedAt, &o.DeliveredAt,
		&o.CompletedAt, &o.CancelledAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(addressJSON, &o.Address); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if couponID != nil {
		o.CouponID = *couponID
	}
	o.Status = order.Status(status)
	if !o.Status.Valid() {
		return o, errors.Errorf("order %s has unknown status %q", o.ID, status)
	}
	return o, nil
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(
		&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Image,
		&it.UnitPrice, &it.Quantity, &it.Options, &it.LineTotal,
	)
	return it, err
}
