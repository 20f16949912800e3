// Package events carries domain events between the order service and
// asynchronous consumers such as the notification dispatcher.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// OrderSubmitted is emitted after an order has been committed.
type OrderSubmitted struct {
	OrderID     int64
	UserID      int64
	SubmittedAt time.Time
}

// Handler consumes an OrderSubmitted event.
type Handler func(ctx context.Context, ev OrderSubmitted) error

// Encode writes ev as a JSON object.
func (ev OrderSubmitted) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("order_id")
	e.Int64(ev.OrderID)
	e.FieldStart("user_id")
	e.Int64(ev.UserID)
	e.FieldStart("submitted_at")
	e.Str(ev.SubmittedAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
}

// Decode reads ev from a JSON object. Unknown fields are skipped.
func (ev *OrderSubmitted) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "order_id":
			v, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "order_id")
			}
			ev.OrderID = v
		case "user_id":
			v, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "user_id")
			}
			ev.UserID = v
		case "submitted_at":
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "submitted_at")
			}
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return errors.Wrap(err, "submitted_at")
			}
			ev.SubmittedAt = t
		default:
			return d.Skip()
		}
		return nil
	})
}

// Marshal returns the JSON encoding of ev.
func (ev OrderSubmitted) Marshal() []byte {
	var e jx.Encoder
	ev.Encode(&e)
	return e.Bytes()
}

// UnmarshalOrderSubmitted decodes an OrderSubmitted from JSON.
func UnmarshalOrderSubmitted(data []byte) (OrderSubmitted, error) {
	var ev OrderSubmitted
	if err := ev.Decode(jx.DecodeBytes(data)); err != nil {
		return OrderSubmitted{}, errors.Wrap(err, "decode order submitted")
	}
	if ev.OrderID == 0 {
		return OrderSubmitted{}, errors.New("decode order submitted: missing order_id")
	}
	return ev, nil
}
