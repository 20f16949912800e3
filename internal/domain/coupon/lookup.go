package coupon

import (
	"context"

	"github.com/go-faster/errors"
)

// Finder resolves coupon codes to rules.
type Finder interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
}

// Lookup resolves user-entered coupon codes against a Finder.
type Lookup struct {
	finder Finder
}

// NewLookup creates a Lookup backed by the given Finder.
func NewLookup(finder Finder) *Lookup {
	return &Lookup{finder: finder}
}

// Resolve normalizes code and returns its rule. An empty code yields a nil
// rule and no error. Unknown codes return ErrInvalidCoupon. Expired rules
// are returned as-is: they are accepted on orders and contribute no
// discount.
func (l *Lookup) Resolve(ctx context.Context, code string) (*Rule, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, nil
	}

	rule, err := l.finder.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	return rule, nil
}
