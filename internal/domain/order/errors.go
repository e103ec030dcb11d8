package order

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/dash-orders/internal/domain/address"
	"github.com/xenking/dash-orders/internal/domain/apperr"
	"github.com/xenking/dash-orders/internal/domain/merchant"
)

// Input validation failures, raised before any store reads.
var (
	ErrUserRequired      = apperr.ValidationFailed("user_id_required", "user id is required")
	ErrMerchantRequired  = apperr.ValidationFailed("merchant_id_required", "merchant id is required")
	ErrAddressRequired   = apperr.ValidationFailed("address_id_required", "address id is required")
	ErrOrderIDRequired   = apperr.ValidationFailed("order_id_required", "order id is required")
	ErrEmptyItems        = apperr.ValidationFailed("items_required", "at least one item is required")
	ErrTooManyItems      = apperr.ValidationFailed("too_many_items", "too many items")
	ErrProductIDRequired = apperr.ValidationFailed("product_id_required", "product id is required")
	ErrInvalidQuantity   = apperr.ValidationFailed("invalid_quantity", "quantity must be between 1 and 999")
	ErrRemarkTooLong     = apperr.ValidationFailed("remark_too_long", "remark is too long")
	ErrReasonTooLong     = apperr.ValidationFailed("reason_too_long", "cancel reason is too long")
)

// Business-rule failures.
var (
	ErrMerchantNotFound    = merchant.ErrNotFound
	ErrAddressNotFound     = address.ErrNotFound
	ErrOrderNotFound       = apperr.NotFound("order_not_found", "order not found")
	ErrMerchantUnavailable = apperr.PreconditionFailed("merchant_unavailable", "merchant is not accepting orders")
	ErrMerchantClosed      = apperr.PreconditionFailed("merchant_closed", "merchant is closed")
	ErrProductUnavailable  = apperr.PreconditionFailed("product_unavailable", "product is unavailable")
	ErrMinOrderNotMet      = apperr.PreconditionFailed("min_order_not_met", "minimum order amount not met")
	ErrOrderTooLarge       = apperr.ValidationFailed("order_amount_too_large", "order amount exceeds the allowed maximum")
	ErrInvalidOrderStatus  = apperr.PreconditionFailed("invalid_order_status", "order status does not allow this operation")
	ErrOrderNumberConflict = apperr.Conflict("order_number_conflict", "could not allocate a unique order number")
)

// ErrNumberTaken is returned by Repository.Create when the order number
// collides with an existing order. The service retries with a new number.
var ErrNumberTaken = apperr.Conflict("order_number_taken", "order number already exists")

const (
	// MaxItems bounds the number of lines in one order.
	MaxItems = 100
	// MaxQuantity bounds the quantity of a single line.
	MaxQuantity = 999
	// MaxRemarkLength bounds remarks and cancel reasons, in runes.
	MaxRemarkLength = 500
)

// MaxOrderAmount bounds item subtotal plus delivery fee, well inside the
// NUMERIC(12,2) order columns.
var MaxOrderAmount = decimal.NewFromInt(1_000_000)
