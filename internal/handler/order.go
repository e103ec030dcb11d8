package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/dash-orders/internal/domain/order"
)

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if !h.readBody(w, r, &req) {
		return
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemRequest{
			ProductID: strings.TrimSpace(it.ProductID),
			Quantity:  it.Quantity,
			Options:   it.Options,
		}
	}

	res, err := h.orders.CreateOrder(r.Context(), order.CreateOrderRequest{
		UserID:     uid,
		MerchantID: strings.TrimSpace(req.MerchantID),
		AddressID:  strings.TrimSpace(req.AddressID),
		Items:      items,
		Remark:     h.plainText(req.Remark),
		CouponCode: strings.TrimSpace(req.CouponCode),
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	w.Header().Set("Location", "/api/orders/"+res.OrderID)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCreateResult(e, res) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	o, err := h.orders.GetOrder(r.Context(), uid, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req cancelOrderRequest
	if r.ContentLength != 0 && !h.readBody(w, r, &req) {
		return
	}

	o, err := h.orders.CancelOrder(r.Context(), uid, chi.URLParam(r, "orderID"), h.plainText(req.Reason))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}
