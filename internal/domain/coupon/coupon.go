package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported coupon discount strategies.
type Type string

const (
	// TypePercent takes Amount percent off the order subtotal.
	TypePercent Type = "percent"
	// TypeFlat takes a fixed Amount off the order. The amount is not capped
	// at the subtotal.
	TypeFlat Type = "flat"
)

// Valid reports whether t is a known discount type.
func (t Type) Valid() bool {
	return t == TypePercent || t == TypeFlat
}

// ErrInvalidCoupon is returned when a coupon code does not exist.
var ErrInvalidCoupon = errors.New("invalid coupon code")

// Rule is a coupon code together with its discount and expiry.
type Rule struct {
	Code   string
	Type   Type
	Amount decimal.Decimal
	// ExpiresAt is nil for coupons that never expire.
	ExpiresAt *time.Time
}

// Expired reports whether the rule has expired at now. A rule whose expiry
// equals now is expired.
func (r *Rule) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// Discount returns the amount the rule takes off an order with the given
// subtotal at time now. Expired rules and unknown types contribute zero.
// The result is not rounded.
func (r *Rule) Discount(subtotal decimal.Decimal, now time.Time) decimal.Decimal {
	if r == nil || r.Expired(now) {
		return decimal.Zero
	}
	switch r.Type {
	case TypePercent:
		return r.Amount.Mul(decimal.RequireFromString("0.01")).Mul(subtotal)
	case TypeFlat:
		return r.Amount
	default:
		return decimal.Zero
	}
}

// NormalizeCode canonicalizes a user-entered code. Codes are matched
// case-insensitively and stored upper-case.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository provides lookup and bulk maintenance of coupon rules.
type Repository interface {
	// FindByCode returns ErrInvalidCoupon when the code does not exist.
	FindByCode(ctx context.Context, code string) (*Rule, error)
	Upsert(ctx context.Context, rule Rule) error
}
