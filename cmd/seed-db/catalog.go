package main

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-admin/internal/domain/coupon"
)

// seedUnit is a predefined unit or a custom product unit.
type seedUnit struct {
	Label string
	Name  string
}

type seedProduct struct {
	Name        string
	Description string
	Category    string
	Type        string
	Vendor      string
	// Unit is the label of a predefined unit. Empty when Custom is set.
	Unit     string
	Custom   *seedUnit
	Price    decimal.Decimal
	Quantity int
}

// catalog is the content of a seed file.
type catalog struct {
	Categories []string
	Types      []string
	Vendors    []string
	Units      []seedUnit
	Products   []seedProduct
	Coupons    []coupon.Rule
}

func decodeStrings(d *jx.Decoder, dst *[]string) error {
	return d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		*dst = append(*dst, s)
		return nil
	})
}

func decodeUnit(d *jx.Decoder, u *seedUnit) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "label":
			u.Label, err = d.Str()
		case "name":
			u.Name, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := d.Str()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}

func decodeProduct(d *jx.Decoder, p *seedProduct) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "type":
			p.Type, err = d.Str()
		case "vendor":
			p.Vendor, err = d.Str()
		case "unit":
			p.Unit, err = d.Str()
		case "custom_unit":
			p.Custom = &seedUnit{}
			err = decodeUnit(d, p.Custom)
		case "price":
			p.Price, err = decodeDecimal(d)
		case "quantity":
			p.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %s", key)
		}
		return nil
	})
}

func decodeCoupon(d *jx.Decoder, r *coupon.Rule) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "code":
			r.Code, err = d.Str()
		case "type":
			var t string
			t, err = d.Str()
			r.Type = coupon.Type(t)
		case "amount":
			r.Amount, err = decodeDecimal(d)
		case "expires_at":
			var s string
			if s, err = d.Str(); err != nil {
				break
			}
			var at time.Time
			if at, err = time.Parse(time.RFC3339, s); err == nil {
				r.ExpiresAt = &at
			}
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %s", key)
		}
		return nil
	})
}

// parseCatalog decodes a seed file and checks that every product refers to
// declared references.
func parseCatalog(data []byte) (*catalog, error) {
	var c catalog
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "categories":
			return decodeStrings(d, &c.Categories)
		case "types":
			return decodeStrings(d, &c.Types)
		case "vendors":
			return decodeStrings(d, &c.Vendors)
		case "units":
			return d.Arr(func(d *jx.Decoder) error {
				var u seedUnit
				if err := decodeUnit(d, &u); err != nil {
					return err
				}
				c.Units = append(c.Units, u)
				return nil
			})
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				var p seedProduct
				if err := decodeProduct(d, &p); err != nil {
					return errors.Wrapf(err, "product %d", len(c.Products))
				}
				c.Products = append(c.Products, p)
				return nil
			})
		case "coupons":
			return d.Arr(func(d *jx.Decoder) error {
				var r coupon.Rule
				if err := decodeCoupon(d, &r); err != nil {
					return errors.Wrapf(err, "coupon %d", len(c.Coupons))
				}
				if !r.Type.Valid() {
					return errors.Errorf("coupon %q: unknown type %q", r.Code, r.Type)
				}
				r.Code = coupon.NormalizeCode(r.Code)
				c.Coupons = append(c.Coupons, r)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *catalog) check() error {
	has := func(list []string, v string) bool {
		for _, s := range list {
			if s == v {
				return true
			}
		}
		return false
	}
	units := make([]string, 0, len(c.Units))
	for _, u := range c.Units {
		units = append(units, u.Label)
	}

	for _, p := range c.Products {
		switch {
		case !has(c.Categories, p.Category):
			return errors.Errorf("product %q: unknown category %q", p.Name, p.Category)
		case !has(c.Types, p.Type):
			return errors.Errorf("product %q: unknown type %q", p.Name, p.Type)
		case !has(c.Vendors, p.Vendor):
			return errors.Errorf("product %q: unknown vendor %q", p.Name, p.Vendor)
		case p.Custom == nil && !has(units, p.Unit):
			return errors.Errorf("product %q: unknown unit %q", p.Name, p.Unit)
		}
	}
	return nil
}
