package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-admin/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, type, amount, expires_at
		FROM coupons WHERE code = UPPER($1)`

	upsertCouponSQL = `INSERT INTO coupons (code, type, amount, expires_at)
		VALUES (UPPER($1), $2, $3, $4)
		ON CONFLICT (code) DO UPDATE
		SET type = EXCLUDED.type, amount = EXCLUDED.amount, expires_at = EXCLUDED.expires_at`

	listCouponCodesSQL = `SELECT code FROM coupons`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// Codes are stored upper-cased.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no matching coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// Upsert inserts rule or replaces the coupon with the same code.
func (r *CouponRepository) Upsert(ctx context.Context, rule coupon.Rule) error {
	_, err := conn(ctx, r.pool).Exec(ctx, upsertCouponSQL,
		rule.Code, string(rule.Type), rule.Amount, rule.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", rule.Code, err)
	}
	return nil
}

// EachCode calls fn with every stored coupon code.
func (r *CouponRepository) EachCode(ctx context.Context, fn func(code string)) error {
	rows, err := conn(ctx, r.pool).Query(ctx, listCouponCodesSQL)
	if err != nil {
		return fmt.Errorf("listing coupon codes: %w", err)
	}
	defer rows.Close()

	var code string
	_, err = pgx.ForEachRow(rows, []any{&code}, func() error {
		fn(code)
		return nil
	})
	if err != nil {
		return fmt.Errorf("listing coupon codes: %w", err)
	}
	return nil
}

// CopyFrom bulk-inserts rules that are known not to exist yet. Codes must
// already be normalized.
func (r *CouponRepository) CopyFrom(ctx context.Context, rules []coupon.Rule) (int64, error) {
	n, err := conn(ctx, r.pool).CopyFrom(ctx,
		pgx.Identifier{"coupons"},
		[]string{"code", "type", "amount", "expires_at"},
		pgx.CopyFromSlice(len(rules), func(i int) ([]any, error) {
			c := rules[i]
			return []any{c.Code, string(c.Type), c.Amount, c.ExpiresAt}, nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copying %d coupons: %w", len(rules), err)
	}
	return n, nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule      coupon.Rule
		typ       string
		expiresAt *time.Time
	)
	if err := row.Scan(&rule.Code, &typ, &rule.Amount, &expiresAt); err != nil {
		return coupon.Rule{}, err
	}
	rule.Type = coupon.Type(typ)
	rule.ExpiresAt = expiresAt
	return rule, nil
}
