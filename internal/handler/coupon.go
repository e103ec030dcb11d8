package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/dash-orders/internal/domain/order"
)

// validateCoupon previews a coupon against an order amount. An ineligible
// coupon is a 200 with valid=false and the rejection reason.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req validateCouponRequest
	if !h.readBody(w, r, &req) {
		return
	}

	v, err := h.orders.ValidateCoupon(r.Context(), order.ValidateCouponRequest{
		UserID:      uid,
		CouponCode:  strings.TrimSpace(req.CouponCode),
		MerchantID:  strings.TrimSpace(req.MerchantID),
		OrderAmount: req.OrderAmount,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeValidation(e, v) })
}
