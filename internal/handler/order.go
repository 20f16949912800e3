package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-admin/internal/domain/auth"
	"github.com/xenking/storefront-admin/internal/domain/order"
	"github.com/xenking/storefront-admin/internal/validate"
)

type billingField struct {
	name  string
	value *string
}

// billingFields lists the JSON names of b's fields.
func billingFields(b *order.Billing) []billingField {
	return []billingField{
		{"first_name", &b.FirstName},
		{"last_name", &b.LastName},
		{"email", &b.Email},
		{"address1", &b.Address1},
		{"address2", &b.Address2},
		{"phone", &b.Phone},
		{"company", &b.Company},
		{"country", &b.Country},
		{"city", &b.City},
		{"zip", &b.Zip},
	}
}

func decodeBilling(d *jx.Decoder, b *order.Billing) error {
	fields := billingFields(b)
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		for _, f := range fields {
			if f.name == string(key) {
				s, err := d.Str()
				if err != nil {
					return errors.Wrap(err, f.name)
				}
				*f.value = s
				return nil
			}
		}
		return d.Skip()
	})
}

func decodeItems(d *jx.Decoder) ([]order.ItemRequest, error) {
	items := []order.ItemRequest{}
	err := d.Arr(func(d *jx.Decoder) error {
		var it order.ItemRequest
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "product_id":
				it.ProductID, err = d.Int64()
			case "quantity":
				it.Quantity, err = d.Int()
			default:
				return d.Skip()
			}
			if err != nil {
				return errors.Wrap(err, string(key))
			}
			return nil
		}); err != nil {
			return err
		}
		items = append(items, it)
		return nil
	})
	return items, err
}

func readDecoder(w http.ResponseWriter, r *http.Request) (*jx.Decoder, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return jx.DecodeBytes(data), nil
}

// malformed reports a request body that is not the expected JSON.
func malformed(err error) error {
	var verr validate.Errors
	verr.Add("body", "The request body is not valid JSON.")
	return errors.Wrap(verr.Err(), err.Error())
}

func (h *Handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	req := order.SubmitRequest{UserID: p.UserID}

	d, err := readDecoder(w, r)
	if err == nil {
		err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "billing":
				err = decodeBilling(d, &req.Billing)
			case "items":
				req.Items, err = decodeItems(d)
			case "coupon_code":
				req.CouponCode, err = d.Str()
			default:
				err = d.Skip()
			}
			return err
		})
	}
	if err != nil {
		h.fail(w, r, malformed(err), msgOrderFailed)
		return
	}

	o, err := h.orders.Submit(r.Context(), req)
	if err != nil {
		h.fail(w, r, err, msgOrderFailed)
		return
	}
	writeJSON(w, http.StatusCreated, orderBody{o: o, shipping: h.shipping})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.fail(w, r, order.ErrNotFound, msgUnexpected)
		return
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, msgUnexpected)
		return
	}
	// Customers only see their own orders.
	if p, _ := auth.FromContext(r.Context()); !p.Role.Staff() && o.UserID != p.UserID {
		h.fail(w, r, order.ErrNotFound, msgUnexpected)
		return
	}
	writeJSON(w, http.StatusOK, orderBody{o: o, shipping: h.shipping})
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.fail(w, r, order.ErrNotFound, msgOrderFailed)
		return
	}

	var req order.UpdateRequest
	d, err := readDecoder(w, r)
	if err == nil {
		err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "items":
				items, err := decodeItems(d)
				req.Items = items
				return err
			case "coupon_code":
				if d.Next() == jx.Null {
					empty := ""
					req.CouponCode = &empty
					return d.Null()
				}
				code, err := d.Str()
				req.CouponCode = &code
				return err
			default:
				return d.Skip()
			}
		})
	}
	if err != nil {
		h.fail(w, r, malformed(err), msgOrderFailed)
		return
	}

	o, err := h.orders.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err, msgOrderFailed)
		return
	}
	writeJSON(w, http.StatusOK, orderBody{o: o, shipping: h.shipping})
}
