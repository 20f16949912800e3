package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-admin/internal/domain/coupon"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Billing is the customer's billing contact and address.
type Billing struct {
	FirstName string `form:"first_name" validate:"required,max=255"`
	LastName  string `form:"last_name" validate:"required,max=255"`
	Email     string `form:"email" validate:"required,email,max=255"`
	Address1  string `form:"address1" validate:"required,max=255"`
	Address2  string `form:"address2" validate:"max=255"`
	Phone     string `form:"phone" validate:"required,max=64"`
	Company   string `form:"company" validate:"max=255"`
	Country   string `form:"country" validate:"required,max=255"`
	City      string `form:"city" validate:"required,max=255"`
	Zip       string `form:"zip" validate:"required,max=32"`
}

// FullName joins the first and last billing names.
func (b Billing) FullName() string {
	switch {
	case b.FirstName == "":
		return b.LastName
	case b.LastName == "":
		return b.FirstName
	default:
		return b.FirstName + " " + b.LastName
	}
}

// LineItem is a product and quantity on an order. UnitPrice is the product
// price captured when the order was last priced.
type LineItem struct {
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Order is a customer order. Its totals are produced only by Reprice and
// are recomputed before every write.
type Order struct {
	ID         int64
	UserID     int64
	Billing    Billing
	Items      []LineItem
	CouponCode string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	totals Totals
}

// Totals returns the totals computed by the last Reprice.
func (o *Order) Totals() Totals {
	return o.totals
}

// Reprice recomputes the order totals from its line items and rule.
func (o *Order) Reprice(rule *coupon.Rule, now time.Time, p Pricing) {
	o.totals = ComputeTotals(o.Items, rule, now, p)
}

// Restore sets totals read back from storage. Only repositories loading a
// persisted order should call it.
func (o *Order) Restore(t Totals) {
	o.totals = t
}

// Repository defines persistence operations for orders. Create and Update
// write the header and replace all line items.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error
	// GetByID returns ErrNotFound when no order has the given id.
	GetByID(ctx context.Context, id int64) (*Order, error)
}
