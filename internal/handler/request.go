package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type itemRequest struct {
	ProductID string   `json:"product_id" validate:"max=64"`
	Quantity  int      `json:"quantity"`
	Options   []string `json:"options" validate:"max=20,dive,max=100"`
}

type createOrderRequest struct {
	MerchantID string        `json:"merchant_id" validate:"max=64"`
	AddressID  string        `json:"address_id" validate:"max=64"`
	Items      []itemRequest `json:"items" validate:"dive"`
	Remark     string        `json:"remark"`
	CouponCode string        `json:"coupon_code" validate:"max=64"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type validateCouponRequest struct {
	CouponCode  string          `json:"coupon_code" validate:"required,max=64"`
	MerchantID  string          `json:"merchant_id" validate:"max=64"`
	OrderAmount decimal.Decimal `json:"order_amount"`
}

func (req *itemRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			req.ProductID, err = d.Str()
		case "quantity":
			req.Quantity, err = d.Int()
		case "options":
			err = d.Arr(func(d *jx.Decoder) error {
				opt, err := d.Str()
				if err != nil {
					return err
				}
				req.Options = append(req.Options, opt)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

func (req *createOrderRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "merchant_id":
			req.MerchantID, err = d.Str()
		case "address_id":
			req.AddressID, err = d.Str()
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				var it itemRequest
				if err := it.decode(d); err != nil {
					return err
				}
				req.Items = append(req.Items, it)
				return nil
			})
		case "remark":
			req.Remark, err = optStr(d)
		case "coupon_code":
			req.CouponCode, err = optStr(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

func (req *cancelOrderRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "reason":
			req.Reason, err = optStr(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

func (req *validateCouponRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "coupon_code":
			req.CouponCode, err = d.Str()
		case "merchant_id":
			req.MerchantID, err = optStr(d)
		case "order_amount":
			req.OrderAmount, err = decodeMoney(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

func optStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// decodeMoney accepts an amount as a JSON number or a numeric string, in
// whole cents.
func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	default:
		return decimal.Zero, errors.New("amount must be a number")
	}
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse amount")
	}
	if !v.Equal(v.Round(2)) {
		return decimal.Zero, errors.New("amount must have at most 2 decimal places")
	}
	return v, nil
}

type decoder interface {
	decode(d *jx.Decoder) error
}

// readBody decodes the request body into dst and validates it, writing a 400
// response on failure.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request, dst decoder) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorBody(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body is too large", nil)
			return false
		}
		writeErrorBody(w, http.StatusBadRequest, "invalid_json", "cannot read request body", nil)
		return false
	}
	if err := dst.decode(jx.DecodeBytes(body)); err != nil {
		writeErrorBody(w, http.StatusBadRequest, "invalid_json", "malformed request body: "+err.Error(), nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			writeErrorBody(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
			return false
		}
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fieldPath(fe)] = fe.Tag()
		}
		writeErrorBody(w, http.StatusBadRequest, "invalid_request", "request failed validation", details)
		return false
	}
	return true
}

// fieldPath drops the struct name from a validator namespace, leaving the
// wire path, e.g. "items[0].options".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
