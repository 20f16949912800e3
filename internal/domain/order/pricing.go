package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-admin/internal/domain/coupon"
)

// DefaultShipping is the flat domestic shipping charge added to every order.
var DefaultShipping = decimal.RequireFromString("18.00")

// Pricing holds the configurable inputs of ComputeTotals.
type Pricing struct {
	Shipping decimal.Decimal
	// ClampTotal floors negative totals at zero. A flat coupon larger than
	// subtotal plus shipping otherwise yields a negative total.
	ClampTotal bool
}

// DefaultPricing returns domestic shipping with clamped totals.
func DefaultPricing() Pricing {
	return Pricing{Shipping: DefaultShipping, ClampTotal: true}
}

// Totals are the computed monetary fields of an order. Values keep full
// precision; use Rounded for display.
type Totals struct {
	// Cost is the subtotal before shipping and discount.
	Cost     decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Rounded returns t rounded half away from zero to two decimal places.
func (t Totals) Rounded() Totals {
	return Totals{
		Cost:     t.Cost.Round(2),
		Discount: t.Discount.Round(2),
		Total:    t.Total.Round(2),
	}
}

// Equal reports whether both totals hold the same amounts.
func (t Totals) Equal(o Totals) bool {
	return t.Cost.Equal(o.Cost) && t.Discount.Equal(o.Discount) && t.Total.Equal(o.Total)
}

// ComputeTotals prices line items with an optional coupon at time now.
//
//	cost     = sum(quantity * unit price)
//	discount = 0 when rule is nil or expired at now,
//	           amount% of cost for percent rules, amount for flat rules
//	total    = cost + shipping - discount
//
// ComputeTotals is pure: the same inputs always produce the same Totals.
func ComputeTotals(items []LineItem, rule *coupon.Rule, now time.Time, p Pricing) Totals {
	cost := decimal.Zero
	for _, it := range items {
		cost = cost.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	discount := rule.Discount(cost, now)

	total := cost.Add(p.Shipping).Sub(discount)
	if p.ClampTotal && total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{Cost: cost, Discount: discount, Total: total}
}
