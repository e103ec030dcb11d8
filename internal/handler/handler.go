// Package handler exposes the order service over HTTP.
package handler

import (
	"context"
	"html"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/xenking/dash-orders/internal/domain/coupon"
	"github.com/xenking/dash-orders/internal/domain/order"
)

// UserIDHeader carries the authenticated user id. The API gateway sets it
// after authenticating the caller.
const UserIDHeader = "X-User-ID"

const maxBodySize = 64 << 10

// OrderService is the subset of order.Service used by the handlers.
type OrderService interface {
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*order.CreateOrderResult, error)
	GetOrder(ctx context.Context, userID, orderID string) (*order.Order, error)
	CancelOrder(ctx context.Context, userID, orderID, reason string) (*order.Order, error)
	ValidateCoupon(ctx context.Context, req order.ValidateCouponRequest) (*coupon.Validation, error)
}

// Handler serves the /api routes.
type Handler struct {
	orders    OrderService
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
}

// NewHandler constructs a Handler backed by the given order service.
func NewHandler(orders OrderService) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		orders:    orders,
		validate:  v,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Routes registers the API endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", h.createOrder)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Post("/orders/{orderID}/cancel", h.cancelOrder)
		r.Post("/coupons/validate", h.validateCoupon)
	})
}

// userID returns the caller id, writing 401 when it is missing.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if id == "" {
		writeErrorBody(w, http.StatusUnauthorized, "unauthenticated", "missing "+UserIDHeader+" header", nil)
		return "", false
	}
	return id, true
}

// plainText strips markup from free-form user text.
func (h *Handler) plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(h.sanitizer.Sanitize(s)))
}

// NotFound writes a JSON 404 for unknown routes.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeErrorBody(w, http.StatusNotFound, "route_not_found", "route not found", nil)
}

// MethodNotAllowed writes a JSON 405.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeErrorBody(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
}
