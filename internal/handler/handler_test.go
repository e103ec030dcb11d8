package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/dash-orders/internal/domain/address"
	"github.com/xenking/dash-orders/internal/domain/coupon"
	"github.com/xenking/dash-orders/internal/domain/merchant"
	"github.com/xenking/dash-orders/internal/domain/order"
	"github.com/xenking/dash-orders/internal/domain/product"
	"github.com/xenking/dash-orders/internal/storage/memory"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.UpsertMerchant(ctx, merchant.Merchant{
		ID: "m-1", Name: "Noodle Bar", Status: merchant.StatusActive, Open: true,
		DeliveryFee: d("5.00"), MinOrderAmount: d("20.00"),
	}))
	require.NoError(t, s.UpsertProduct(ctx, product.Product{
		ID: "p-noodle", MerchantID: "m-1", Name: "Beef Noodle", Price: d("15.00"), Available: true,
	}))
	require.NoError(t, s.UpsertProduct(ctx, product.Product{
		ID: "p-tea", MerchantID: "m-1", Name: "Iced Tea", Price: d("3.00"), Available: true,
	}))
	require.NoError(t, s.UpsertAddress(ctx, address.Address{
		ID: "a-1", UserID: "u-1", Recipient: "Ann", Line1: "1 Main St", City: "Springfield",
	}))
	require.NoError(t, s.UpsertCoupon(ctx, coupon.Coupon{
		ID: "c-1", Code: "SAVE8", Kind: coupon.KindFixed, Value: d("8.00"),
		StartsAt: fixedNow.Add(-time.Hour), EndsAt: fixedNow.Add(time.Hour),
		PerUserLimit: 1, Status: coupon.StatusActive,
	}))

	svc, err := order.NewService(order.ServiceDeps{
		Merchants:  s.Merchants(),
		Addresses:  s.Addresses(),
		Products:   s.Products(),
		Coupons:    s.Coupons(),
		Orders:     s.Orders(),
		UnitOfWork: s,
		Clock:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(svc).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, user, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

const createBody = `{
	"merchant_id": "m-1",
	"address_id": "a-1",
	"items": [{"product_id": "p-noodle", "quantity": 2, "options": ["no onion"]}],
	"remark": "<b>ring</b> the bell & wait",
	"coupon_code": "SAVE8"
}`

func TestCreateOrder(t *testing.T) {
	h := newTestRouter(t)

	w, body := do(t, h, http.MethodPost, "/api/orders", "u-1", createBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	orderID, _ := body["order_id"].(string)
	require.NotEmpty(t, orderID)
	assert.Equal(t, "/api/orders/"+orderID, w.Header().Get("Location"))
	assert.NotEmpty(t, body["order_number"])
	assert.Contains(t, w.Body.String(), `"item_subtotal":30.00`)
	assert.Contains(t, w.Body.String(), `"discount_amount":8.00`)
	assert.Contains(t, w.Body.String(), `"payable_amount":27.00`)
	assert.Equal(t, "2025-06-15T12:15:00Z", body["payment_expires_at"])
	assert.NotContains(t, body, "coupon_rejection")

	w, body = do(t, h, http.MethodGet, "/api/orders/"+orderID, "u-1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "pending_payment", body["status"])
	assert.Equal(t, "ring the bell & wait", body["remark"])
	assert.Equal(t, "SAVE8", body["coupon_code"])
	items, _ := body["items"].([]any)
	require.Len(t, items, 1)
	item, _ := items[0].(map[string]any)
	assert.Equal(t, []any{"no onion"}, item["options"])
	assert.InDelta(t, 30.0, item["line_total"], 0.001)
}

func TestCreateOrder_CouponRejectedStillCreates(t *testing.T) {
	h := newTestRouter(t)

	w, _ := do(t, h, http.MethodPost, "/api/orders", "u-1", createBody)
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := do(t, h, http.MethodPost, "/api/orders", "u-1", createBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"payable_amount":35.00`)
	rejection, _ := body["coupon_rejection"].(map[string]any)
	require.NotNil(t, rejection)
	assert.Equal(t, "already_used", rejection["code"])
}

func TestCreateOrder_Errors(t *testing.T) {
	tests := []struct {
		name       string
		user       string
		body       string
		wantStatus int
		wantCode   string
		wantDetail string
	}{
		{
			name:       "missing user",
			body:       createBody,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "unauthenticated",
		},
		{
			name:       "malformed json",
			user:       "u-1",
			body:       `{"merchant_id": `,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_json",
		},
		{
			name:       "wrong type",
			user:       "u-1",
			body:       `{"merchant_id": "m-1", "items": [{"product_id": "p-noodle", "quantity": "two"}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_json",
		},
		{
			name: "too many options",
			user: "u-1",
			body: `{"merchant_id": "m-1", "address_id": "a-1", "items": [{"product_id": "p-noodle", "quantity": 2, "options": [` +
				strings.TrimSuffix(strings.Repeat(`"x",`, 21), ",") + `]}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
			wantDetail: "items[0].options",
		},
		{
			name:       "empty items",
			user:       "u-1",
			body:       `{"merchant_id": "m-1", "address_id": "a-1", "items": []}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "items_required",
		},
		{
			name:       "zero quantity",
			user:       "u-1",
			body:       `{"merchant_id": "m-1", "address_id": "a-1", "items": [{"product_id": "p-noodle", "quantity": 0}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_quantity",
		},
		{
			name:       "unknown merchant",
			user:       "u-1",
			body:       `{"merchant_id": "m-404", "address_id": "a-1", "items": [{"product_id": "p-noodle", "quantity": 2}]}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "merchant_not_found",
		},
		{
			name:       "foreign address",
			user:       "u-2",
			body:       `{"merchant_id": "m-1", "address_id": "a-1", "items": [{"product_id": "p-noodle", "quantity": 2}]}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "address_not_found",
		},
		{
			name:       "below minimum",
			user:       "u-1",
			body:       `{"merchant_id": "m-1", "address_id": "a-1", "items": [{"product_id": "p-tea", "quantity": 1}]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "min_order_not_met",
			wantDetail: "min_order_amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := do(t, newTestRouter(t), http.MethodPost, "/api/orders", tt.user, tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, body["code"])
			assert.NotEmpty(t, body["message"])
			if tt.wantDetail != "" {
				details, _ := body["details"].(map[string]any)
				assert.Contains(t, details, tt.wantDetail)
			}
		})
	}
}

func TestGetOrder_OtherUser(t *testing.T) {
	h := newTestRouter(t)
	w, body := do(t, h, http.MethodPost, "/api/orders", "u-1", createBody)
	require.Equal(t, http.StatusCreated, w.Code)

	w, body = do(t, h, http.MethodGet, "/api/orders/"+body["order_id"].(string), "u-2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "order_not_found", body["code"])
}

func TestCancelOrder(t *testing.T) {
	h := newTestRouter(t)
	w, body := do(t, h, http.MethodPost, "/api/orders", "u-1", createBody)
	require.Equal(t, http.StatusCreated, w.Code)
	path := "/api/orders/" + body["order_id"].(string) + "/cancel"

	w, body = do(t, h, http.MethodPost, path, "u-1", `{"reason": "<i>wrong</i> address"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "cancelled", body["status"])
	assert.Equal(t, "wrong address", body["cancel_reason"])
	assert.Equal(t, "2025-06-15T12:00:00Z", body["cancelled_at"])
	assert.Contains(t, w.Body.String(), `"payable_amount":27.00`)

	w, body = do(t, h, http.MethodPost, path, "u-1", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_order_status", body["code"])
}

func TestValidateCoupon(t *testing.T) {
	h := newTestRouter(t)

	w, body := do(t, h, http.MethodPost, "/api/coupons/validate", "u-1",
		`{"coupon_code": "SAVE8", "merchant_id": "m-1", "order_amount": "30.00"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["valid"])
	assert.Contains(t, w.Body.String(), `"discount":8.00`)
	c, _ := body["coupon"].(map[string]any)
	assert.Equal(t, "fixed", c["kind"])

	w, body = do(t, h, http.MethodPost, "/api/coupons/validate", "u-1",
		`{"coupon_code": "NOPE", "merchant_id": "m-1", "order_amount": 30}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, body["valid"])
	rejection, _ := body["rejection"].(map[string]any)
	assert.Equal(t, "invalid_code", rejection["code"])

	w, body = do(t, h, http.MethodPost, "/api/coupons/validate", "u-1",
		`{"merchant_id": "m-1", "order_amount": 30}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	details, _ := body["details"].(map[string]any)
	assert.Equal(t, "required", details["coupon_code"])

	w, body = do(t, h, http.MethodPost, "/api/coupons/validate", "u-1",
		`{"coupon_code": "SAVE8", "merchant_id": "m-1", "order_amount": true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_json", body["code"])

	for _, amount := range []string{`10.005`, `"10.005"`} {
		w, body = do(t, h, http.MethodPost, "/api/coupons/validate", "u-1",
			`{"coupon_code": "SAVE8", "merchant_id": "m-1", "order_amount": `+amount+`}`)
		assert.Equal(t, http.StatusBadRequest, w.Code, amount)
		assert.Equal(t, "invalid_json", body["code"], amount)
	}

	// Surrounding whitespace is stripped before the exact lookup.
	w, body = do(t, h, http.MethodPost, "/api/coupons/validate", "u-1",
		`{"coupon_code": "  SAVE8 ", "merchant_id": "m-1", "order_amount": 30}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["valid"])
}

type failingService struct {
	OrderService
	err error
}

func (s failingService) GetOrder(context.Context, string, string) (*order.Order, error) {
	return nil, s.err
}

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "conflict", err: coupon.ErrUsageLimitRaceLost, wantStatus: http.StatusConflict, wantCode: "coupon_usage_limit_race"},
		{name: "wrapped not found", err: errors.Wrap(order.ErrOrderNotFound, "load"), wantStatus: http.StatusNotFound, wantCode: "order_not_found"},
		{name: "unexpected", err: errors.New("connection reset by peer"), wantStatus: http.StatusInternalServerError, wantCode: "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(failingService{err: tt.err}).Routes(r)

			w, body := do(t, r, http.MethodGet, "/api/orders/o-1", "u-1", "")
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, body["code"])
			assert.NotContains(t, w.Body.String(), "connection reset")
		})
	}
}
