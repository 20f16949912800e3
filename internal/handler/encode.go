package handler

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-admin/internal/domain/order"
	"github.com/xenking/storefront-admin/internal/domain/product"
	"github.com/xenking/storefront-admin/internal/domain/user"
)

// money writes d as a JSON number with two decimals.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.StringFixed(2)))
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeRef(e *jx.Encoder, r product.Ref) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(r.ID)
	e.FieldStart("name")
	e.Str(r.Name)
	if r.Label != "" {
		e.FieldStart("label")
		e.Str(r.Label)
	}
	e.ObjEnd()
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("category")
	encodeRef(e, p.Category)
	e.FieldStart("type")
	encodeRef(e, p.Type)
	e.FieldStart("vendor")
	encodeRef(e, p.Vendor)
	e.FieldStart("custom_unit")
	e.Bool(p.CustomUnit)
	e.FieldStart("unit")
	e.ObjStart()
	if p.Unit.ID != 0 {
		e.FieldStart("id")
		e.Int64(p.Unit.ID)
	}
	e.FieldStart("label")
	e.Str(p.Unit.Label)
	e.FieldStart("name")
	e.Str(p.Unit.Name)
	e.ObjEnd()
	e.FieldStart("price")
	money(e, p.Price)
	e.FieldStart("quantity")
	e.Int(p.Quantity)
	e.FieldStart("images")
	e.ArrStart()
	for _, img := range p.Images {
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(img.ID)
		e.FieldStart("url")
		e.Str(img.URL)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("created_at")
	timestamp(e, p.CreatedAt)
	e.FieldStart("updated_at")
	timestamp(e, p.UpdatedAt)
	e.ObjEnd()
}

type productBody struct{ p *product.Product }

func (b productBody) Encode(e *jx.Encoder) { encodeProduct(e, b.p) }

type productsBody []product.Product

func (b productsBody) Encode(e *jx.Encoder) {
	e.ArrStart()
	for i := range b {
		encodeProduct(e, &b[i])
	}
	e.ArrEnd()
}

type formOptionsBody struct{ o *product.FormOptions }

func (b formOptionsBody) Encode(e *jx.Encoder) {
	refs := func(name string, list []product.Ref) {
		e.FieldStart(name)
		e.ArrStart()
		for _, r := range list {
			encodeRef(e, r)
		}
		e.ArrEnd()
	}
	e.ObjStart()
	refs("categories", b.o.Categories)
	refs("types", b.o.Types)
	refs("vendors", b.o.Vendors)
	refs("units", b.o.Units)
	e.ObjEnd()
}

type orderBody struct {
	o        *order.Order
	shipping decimal.Decimal
}

func (b orderBody) Encode(e *jx.Encoder) {
	o, t := b.o, b.o.Totals().Rounded()
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("user_id")
	e.Int64(o.UserID)
	e.FieldStart("billing")
	encodeBilling(e, o.Billing)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(it.ProductID)
		e.FieldStart("product_name")
		e.Str(it.ProductName)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("unit_price")
		money(e, it.UnitPrice)
		e.ObjEnd()
	}
	e.ArrEnd()
	if o.CouponCode != "" {
		e.FieldStart("coupon_code")
		e.Str(o.CouponCode)
	}
	e.FieldStart("cost")
	money(e, t.Cost)
	e.FieldStart("shipping")
	money(e, b.shipping)
	e.FieldStart("discount")
	money(e, t.Discount)
	e.FieldStart("total")
	money(e, t.Total)
	e.FieldStart("created_at")
	timestamp(e, o.CreatedAt)
	e.FieldStart("updated_at")
	timestamp(e, o.UpdatedAt)
	e.ObjEnd()
}

func encodeBilling(e *jx.Encoder, b order.Billing) {
	e.ObjStart()
	for _, f := range billingFields(&b) {
		e.FieldStart(f.name)
		e.Str(*f.value)
	}
	e.ObjEnd()
}

type loginBody struct {
	token string
	u     *user.User
}

func (b loginBody) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("token")
	e.Str(b.token)
	e.FieldStart("user")
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(b.u.ID)
	e.FieldStart("name")
	e.Str(b.u.Name)
	e.FieldStart("email")
	e.Str(b.u.Email)
	e.FieldStart("role")
	e.Str(string(b.u.Role))
	e.ObjEnd()
	e.ObjEnd()
}
