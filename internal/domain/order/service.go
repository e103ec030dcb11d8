package order

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/dash-orders/internal/domain/address"
	"github.com/xenking/dash-orders/internal/domain/coupon"
	"github.com/xenking/dash-orders/internal/domain/merchant"
	"github.com/xenking/dash-orders/internal/domain/product"
)

const (
	// PaymentWindow is how long a new order waits for payment.
	PaymentWindow = 15 * time.Minute
	// numberAttempts bounds order number regeneration on collision.
	numberAttempts = 3
)

// ItemRequest is one requested cart line.
type ItemRequest struct {
	ProductID string
	Quantity  int
	Options   []string
}

// CreateOrderRequest holds the input for placing an order.
type CreateOrderRequest struct {
	UserID     string
	MerchantID string
	AddressID  string
	Items      []ItemRequest
	Remark     string
	CouponCode string
}

// CreateOrderResult holds the output of a successfully placed order.
// CouponRejection is set when a coupon code was supplied but did not apply;
// the order is still placed, without discount.
type CreateOrderResult struct {
	OrderID          string
	OrderNumber      string
	ItemSubtotal     decimal.Decimal
	DeliveryFee      decimal.Decimal
	DiscountAmount   decimal.Decimal
	PayableAmount    decimal.Decimal
	PaymentExpiresAt time.Time
	CouponRejection  *coupon.Rejection
}

// ValidateCouponRequest is the input of a checkout coupon preview.
type ValidateCouponRequest struct {
	UserID      string
	CouponCode  string
	MerchantID  string
	OrderAmount decimal.Decimal
}

// ServiceDeps groups the collaborators of Service. Merchants, Addresses,
// Products, Coupons and Orders are required.
type ServiceDeps struct {
	Merchants       merchant.Reader
	Addresses       address.Reader
	Products        product.Reader
	Coupons         coupon.Repository
	Orders          Repository
	UnitOfWork      UnitOfWork
	Events          EventPublisher
	MeterProvider   metric.MeterProvider
	Clock           func() time.Time
	IDGenerator     func() string
	NumberGenerator func() string
}

// Service encapsulates order placement and cancellation.
type Service struct {
	merchants  merchant.Reader
	addresses  address.Reader
	products   product.Reader
	orders     Repository
	evaluator  *coupon.Evaluator
	ledger     *coupon.Ledger
	unitOfWork UnitOfWork
	events     EventPublisher
	clock      func() time.Time
	newID      func() string
	newNumber  func() string

	created        metric.Int64Counter
	cancelled      metric.Int64Counter
	couponsDropped metric.Int64Counter
	numberRetries  metric.Int64Counter
}

// NewService wires dependencies into a Service.
func NewService(deps ServiceDeps) (*Service, error) {
	switch {
	case deps.Merchants == nil:
		return nil, errors.New("merchant reader is required")
	case deps.Addresses == nil:
		return nil, errors.New("address reader is required")
	case deps.Products == nil:
		return nil, errors.New("product reader is required")
	case deps.Coupons == nil:
		return nil, errors.New("coupon repository is required")
	case deps.Orders == nil:
		return nil, errors.New("order repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	utc := func() time.Time { return clock().UTC() }
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}
	newNumber := deps.NumberGenerator
	if newNumber == nil {
		newNumber = NewNumberGenerator(utc)
	}
	mp := deps.MeterProvider
	if mp == nil {
		mp = noop.NewMeterProvider()
	}

	s := &Service{
		merchants:  deps.Merchants,
		addresses:  deps.Addresses,
		products:   deps.Products,
		orders:     deps.Orders,
		evaluator:  coupon.NewEvaluator(deps.Coupons, utc),
		ledger:     coupon.NewLedger(deps.Coupons, utc),
		unitOfWork: unit,
		events:     deps.Events,
		clock:      utc,
		newID:      newID,
		newNumber:  newNumber,
	}
	if err := s.initMetrics(mp.Meter("github.com/xenking/dash-orders/internal/domain/order")); err != nil {
		return nil, errors.Wrap(err, "init metrics")
	}
	return s, nil
}

func (s *Service) initMetrics(meter metric.Meter) error {
	var err error
	if s.created, err = meter.Int64Counter("orders.created",
		metric.WithDescription("Orders placed"),
	); err != nil {
		return err
	}
	if s.cancelled, err = meter.Int64Counter("orders.cancelled",
		metric.WithDescription("Orders cancelled by their owner"),
	); err != nil {
		return err
	}
	if s.couponsDropped, err = meter.Int64Counter("orders.coupon_dropped",
		metric.WithDescription("Checkout coupon codes that did not apply"),
	); err != nil {
		return err
	}
	if s.numberRetries, err = meter.Int64Counter("orders.number_retries",
		metric.WithDescription("Order number collisions"),
	); err != nil {
		return err
	}
	return nil
}

// CreateOrder validates the request against live merchant, address and
// catalog state, prices it, applies at most one coupon and persists the
// order, its items and the coupon redemption in one transaction.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	m, err := s.merchants.Get(ctx, req.MerchantID)
	if err != nil {
		if errors.Is(err, merchant.ErrNotFound) {
			return nil, ErrMerchantNotFound
		}
		return nil, errors.Wrap(err, "get merchant")
	}
	if !m.Active() {
		return nil, ErrMerchantUnavailable
	}
	if !m.Open {
		return nil, ErrMerchantClosed
	}

	addr, err := s.addresses.Get(ctx, req.UserID, req.AddressID)
	if err != nil {
		if errors.Is(err, address.ErrNotFound) {
			return nil, ErrAddressNotFound
		}
		return nil, errors.Wrap(err, "get address")
	}

	var (
		o         *Order
		rejection *coupon.Rejection
	)
	for attempt := 1; ; attempt++ {
		err = s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
			o, rejection, err = s.assemble(ctx, req, m, addr)
			return err
		})
		if !errors.Is(err, ErrNumberTaken) {
			break
		}
		s.numberRetries.Add(ctx, 1)
		zctx.From(ctx).Warn("Order number collision",
			zap.Int("attempt", attempt),
			zap.String("merchant_id", req.MerchantID),
		)
		if attempt >= numberAttempts {
			return nil, ErrOrderNumberConflict
		}
	}
	if err != nil {
		return nil, err
	}

	s.created.Add(ctx, 1, metric.WithAttributes(attribute.Bool("coupon", o.CouponID != "")))
	s.publish(ctx, newEvent(EventCreated, o, o.CreatedAt))

	return &CreateOrderResult{
		OrderID:          o.ID,
		OrderNumber:      o.Number,
		ItemSubtotal:     o.ItemSubtotal,
		DeliveryFee:      o.DeliveryFee,
		DiscountAmount:   o.DiscountAmount,
		PayableAmount:    o.PayableAmount,
		PaymentExpiresAt: o.PaymentExpiresAt,
		CouponRejection:  rejection,
	}, nil
}

// assemble runs the transactional part of CreateOrder.
func (s *Service) assemble(
	ctx context.Context,
	req CreateOrderRequest,
	m *merchant.Merchant,
	addr *address.Address,
) (*Order, *coupon.Rejection, error) {
	lines, err := s.loadLines(ctx, m.ID, req.Items)
	if err != nil {
		return nil, nil, err
	}

	subtotal := Subtotal(lines)
	if err := CheckMinimum(subtotal, m.MinOrderAmount); err != nil {
		return nil, nil, err
	}
	if subtotal.Add(m.DeliveryFee).GreaterThan(MaxOrderAmount) {
		return nil, nil, ErrOrderTooLarge.
			WithMessage("order amount must not exceed %s", MaxOrderAmount.StringFixed(2)).
			WithDetail("max_order_amount", MaxOrderAmount.StringFixed(2))
	}

	discount := decimal.Zero
	var (
		applied   *coupon.Coupon
		rejection *coupon.Rejection
	)
	if code := strings.TrimSpace(req.CouponCode); code != "" {
		v, err := s.evaluator.Evaluate(ctx, coupon.Request{
			Code:       code,
			UserID:     req.UserID,
			MerchantID: m.ID,
			Subtotal:   subtotal,
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "evaluate coupon")
		}
		if v.Valid {
			discount = v.Discount
			applied = v.Coupon
		} else {
			// Checkout proceeds without the discount.
			rejection = v.Rejection
			s.couponsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(v.Rejection.Code))))
			zctx.From(ctx).Info("Coupon not applied",
				zap.String("user_id", req.UserID),
				zap.String("coupon_code", code),
				zap.String("reason", string(v.Rejection.Code)),
			)
		}
	}

	totals, err := ComputeTotals(subtotal, m.DeliveryFee, discount)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock()
	o := &Order{
		ID:               s.newID(),
		Number:           s.newNumber(),
		UserID:           req.UserID,
		MerchantID:       m.ID,
		ItemSubtotal:     totals.ItemSubtotal,
		DeliveryFee:      totals.DeliveryFee,
		DiscountAmount:   totals.DiscountAmount,
		PayableAmount:    totals.PayableAmount,
		Address:          *addr,
		Remark:           strings.TrimSpace(req.Remark),
		Status:           StatusPendingPayment,
		CreatedAt:        now,
		PaymentExpiresAt: now.Add(PaymentWindow),
	}
	if applied != nil {
		o.CouponID = applied.ID
		o.CouponCode = applied.Code
	}
	o.Items = make([]Item, len(lines))
	for i, l := range lines {
		o.Items[i] = Item{
			ID:        s.newID(),
			OrderID:   o.ID,
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Image:     l.Product.Image,
			UnitPrice: l.Product.Price,
			Quantity:  l.Quantity,
			Options:   l.Options,
			LineTotal: l.Total(),
		}
	}

	if err := s.orders.Create(ctx, o); err != nil {
		if errors.Is(err, ErrNumberTaken) {
			return nil, nil, ErrNumberTaken
		}
		return nil, nil, errors.Wrap(err, "create order")
	}

	if applied != nil {
		if _, err := s.ledger.Redeem(ctx, req.UserID, applied.ID, o.ID); err != nil {
			return nil, nil, errors.Wrap(err, "redeem coupon")
		}
	}

	return o, rejection, nil
}

// loadLines fetches the requested products in one batch, scoped to the
// merchant, and fails on the first product that cannot be ordered.
func (s *Service) loadLines(ctx context.Context, merchantID string, items []ItemRequest) ([]Line, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}

	products, err := s.products.GetByIDs(ctx, merchantID, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	lines := make([]Line, len(items))
	for i, it := range items {
		p, ok := products[it.ProductID]
		if !ok || !p.Available || p.MerchantID != merchantID {
			return nil, ErrProductUnavailable.
				WithMessage("product %s is unavailable", it.ProductID).
				WithDetail("product_id", it.ProductID)
		}
		lines[i] = Line{Product: p, Quantity: it.Quantity, Options: it.Options}
	}
	return lines, nil
}

// ValidateCoupon previews a coupon against a candidate order amount. It
// never consumes the coupon.
func (s *Service) ValidateCoupon(ctx context.Context, req ValidateCouponRequest) (*coupon.Validation, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrUserRequired
	}
	if strings.TrimSpace(req.MerchantID) == "" {
		return nil, ErrMerchantRequired
	}
	return s.evaluator.Evaluate(ctx, coupon.Request{
		Code:       req.CouponCode,
		UserID:     req.UserID,
		MerchantID: req.MerchantID,
		Subtotal:   req.OrderAmount,
	})
}

// GetOrder returns an order owned by userID, with its items.
func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (*Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, ErrOrderIDRequired
	}
	o, err := s.orders.Get(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// CancelOrder cancels an order on behalf of its owner. Only orders still
// awaiting payment or merchant confirmation can be cancelled.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID, reason string) (*Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, ErrOrderIDRequired
	}
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > MaxRemarkLength {
		return nil, ErrReasonTooLong
	}

	var o *Order
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetForUpdate(ctx, userID, orderID)
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				return ErrOrderNotFound
			}
			return errors.Wrap(err, "get order")
		}
		if !CanTransition(o.Status, StatusCancelled) {
			return ErrInvalidOrderStatus.
				WithMessage("order in status %s cannot be cancelled", o.Status).
				WithDetail("status", string(o.Status))
		}

		now := s.clock()
		if err := s.orders.UpdateStatus(ctx, o.ID, o.Status, StatusCancelled, now, reason); err != nil {
			if errors.Is(err, ErrInvalidOrderStatus) {
				return ErrInvalidOrderStatus
			}
			return errors.Wrap(err, "update status")
		}
		o.Status = StatusCancelled
		o.CancelledAt = &now
		o.CancelReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cancelled.Add(ctx, 1)
	s.publish(ctx, newEvent(EventCancelled, o, *o.CancelledAt))
	return o, nil
}

// publish delivers an event after commit. Delivery failures are logged and
// never fail the operation that produced the event.
func (s *Service) publish(ctx context.Context, e Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		zctx.From(ctx).Warn("Publish order event",
			zap.String("type", string(e.Type)),
			zap.String("order_id", e.OrderID),
			zap.Error(err),
		)
	}
}

func validateCreate(req CreateOrderRequest) error {
	switch {
	case strings.TrimSpace(req.UserID) == "":
		return ErrUserRequired
	case strings.TrimSpace(req.MerchantID) == "":
		return ErrMerchantRequired
	case strings.TrimSpace(req.AddressID) == "":
		return ErrAddressRequired
	case len(req.Items) == 0:
		return ErrEmptyItems
	case len(req.Items) > MaxItems:
		return ErrTooManyItems.WithMessage("at most %d items are allowed", MaxItems)
	case utf8.RuneCountInString(strings.TrimSpace(req.Remark)) > MaxRemarkLength:
		return ErrRemarkTooLong.WithMessage("remark must be at most %d characters", MaxRemarkLength)
	}
	for _, it := range req.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return ErrProductIDRequired
		}
		if it.Quantity <= 0 || it.Quantity > MaxQuantity {
			return ErrInvalidQuantity.
				WithMessage("quantity for product %s must be between 1 and %d", it.ProductID, MaxQuantity).
				WithDetail("product_id", it.ProductID)
		}
	}
	return nil
}
