package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/dash-orders/internal/domain/order"
	"github.com/xenking/dash-orders/internal/handler"
	"github.com/xenking/dash-orders/pkg/health"
)

type noopTelemetry struct{}

func (noopTelemetry) MeterProvider() metric.MeterProvider { return metricnoop.NewMeterProvider() }
func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }

func newTestServer(t *testing.T, rateMax int) (http.Handler, *health.Health) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &Config{
		Storage:   StorageMemory,
		SeedFile:  "../../db/seed/fixtures.json",
		RateLimit: RateLimitConfig{Max: rateMax, Window: time.Minute},
	}
	healthSvc := health.New()
	deps, closeStorage, err := openStorage(ctx, cfg, healthSvc)
	require.NoError(t, err)
	t.Cleanup(closeStorage)

	events, closeEvents, err := openEvents(cfg, healthSvc)
	require.NoError(t, err)
	t.Cleanup(func() { closeEvents(zap.NewNop()) })

	deps.Events = events
	svc, err := order.NewService(deps)
	require.NoError(t, err)

	return NewRouter(ctx, cfg, zap.NewNop(), noopTelemetry{}, healthSvc, svc), healthSvc
}

func call(t *testing.T, h http.Handler, method, path, user, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set(handler.UserIDHeader, user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func TestRouter_PlaceAndFetchOrder(t *testing.T) {
	h, _ := newTestServer(t, 100)

	w, body := call(t, h, http.MethodPost, "/api/orders", "u-alice", `{
		"merchant_id": "m-noodle-bar",
		"address_id": "a-home",
		"items": [{"product_id": "p-beef-noodle", "quantity": 2}],
		"coupon_code": "WELCOME8"
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 30.0, body["item_subtotal"])
	assert.Equal(t, 5.0, body["delivery_fee"])
	assert.Equal(t, 8.0, body["discount_amount"])
	assert.Equal(t, 27.0, body["payable_amount"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	id, _ := body["order_id"].(string)
	require.NotEmpty(t, id)

	w, got := call(t, h, http.MethodGet, "/api/orders/"+id, "u-alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending_payment", got["status"])
	assert.Equal(t, "WELCOME8", got["coupon_code"])

	w, _ = call(t, h, http.MethodGet, "/api/orders/"+id, "u-bob", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_ClosedMerchant(t *testing.T) {
	h, _ := newTestServer(t, 100)

	w, body := call(t, h, http.MethodPost, "/api/orders", "u-alice", `{
		"merchant_id": "m-night-deli",
		"address_id": "a-home",
		"items": [{"product_id": "p-beef-noodle", "quantity": 1}]
	}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "merchant_closed", body["code"])
}

func TestRouter_UnknownRoute(t *testing.T) {
	h, _ := newTestServer(t, 100)

	w, body := call(t, h, http.MethodGet, "/nope", "u-alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route_not_found", body["code"])

	w, body = call(t, h, http.MethodDelete, "/livez", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "method_not_allowed", body["code"])
}

func TestRouter_Probes(t *testing.T) {
	h, healthSvc := newTestServer(t, 100)

	w, _ := call(t, h, http.MethodGet, "/livez", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, h, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	healthSvc.SetReady(true)
	w, _ = call(t, h, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RateLimitPerUser(t *testing.T) {
	h, _ := newTestServer(t, 2)

	for range 2 {
		w, _ := call(t, h, http.MethodPost, "/api/coupons/validate", "u-alice",
			`{"coupon_code": "WELCOME8", "merchant_id": "m-noodle-bar", "order_amount": 30}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w, body := call(t, h, http.MethodPost, "/api/coupons/validate", "u-alice",
		`{"coupon_code": "WELCOME8", "merchant_id": "m-noodle-bar", "order_amount": 30}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", body["code"])

	// Another user has its own window; probes are not limited.
	w, _ = call(t, h, http.MethodPost, "/api/coupons/validate", "u-bob",
		`{"coupon_code": "WELCOME8", "merchant_id": "m-noodle-bar", "order_amount": 30}`)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = call(t, h, http.MethodGet, "/livez", "u-alice", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpenStorage_BadSeedFile(t *testing.T) {
	cfg := &Config{Storage: StorageMemory, SeedFile: "testdata/missing.json"}
	_, _, err := openStorage(context.Background(), cfg, health.New())
	require.Error(t, err)
}
