package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-admin/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (user_id, first_name, last_name, email, address1, address2,
		phone, company, country, city, zip, coupon_code, cost, discount, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`

	updateOrderSQL = `UPDATE orders SET coupon_code = $2, cost = $3, discount = $4, total = $5,
		updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	getOrderByIDSQL = `SELECT id, user_id, first_name, last_name, email, address1, address2,
		phone, company, country, city, zip, coupon_code, cost, discount, total,
		created_at, updated_at
		FROM orders WHERE id = $1`

	listOrderItemsSQL = `SELECT product_id, product_name, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY position`

	deleteOrderItemsSQL = `DELETE FROM order_items WHERE order_id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. The
// header and its line items are written in one transaction.
type OrderRepository struct {
	pool *pgxpool.Pool
	tx   *Transactor
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool, tx: NewTransactor(pool)}
}

// Create persists a new order with its items and sets its ID and timestamps.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, t := o.Billing, o.Totals()
		err := conn(ctx, r.pool).QueryRow(ctx, createOrderSQL,
			o.UserID, b.FirstName, b.LastName, b.Email, b.Address1, b.Address2,
			b.Phone, b.Company, b.Country, b.City, b.Zip,
			o.CouponCode, t.Cost, t.Discount, t.Total,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("creating order: %w", err)
		}
		return r.writeItems(ctx, o)
	})
}

// Update rewrites the coupon, totals and items of an existing order.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		t := o.Totals()
		err := conn(ctx, r.pool).QueryRow(ctx, updateOrderSQL,
			o.ID, o.CouponCode, t.Cost, t.Discount, t.Total,
		).Scan(&o.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("updating order %d: %w", o.ID, err)
		}
		if _, err := conn(ctx, r.pool).Exec(ctx, deleteOrderItemsSQL, o.ID); err != nil {
			return fmt.Errorf("clearing items of order %d: %w", o.ID, err)
		}
		return r.writeItems(ctx, o)
	})
}

// GetByID returns order.ErrNotFound when no order has the given id. The
// stored totals are restored without repricing.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	q := conn(ctx, r.pool)

	var (
		o order.Order
		t order.Totals
		b = &o.Billing
	)
	err := q.QueryRow(ctx, getOrderByIDSQL, id).Scan(
		&o.ID, &o.UserID, &b.FirstName, &b.LastName, &b.Email, &b.Address1, &b.Address2,
		&b.Phone, &b.Company, &b.Country, &b.City, &b.Zip,
		&o.CouponCode, &t.Cost, &t.Discount, &t.Total,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	o.Restore(t)

	rows, err := q.Query(ctx, listOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %d: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.LineItem, error) {
		var it order.LineItem
		err := row.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing items of order %d: %w", id, err)
	}

	return &o, nil
}

func (r *OrderRepository) writeItems(ctx context.Context, o *order.Order) error {
	_, err := conn(ctx, r.pool).CopyFrom(ctx,
		pgx.Identifier{"order_items"},
		[]string{"order_id", "position", "product_id", "product_name", "quantity", "unit_price"},
		pgx.CopyFromSlice(len(o.Items), func(i int) ([]any, error) {
			it := o.Items[i]
			return []any{o.ID, i, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("writing items of order %d: %w", o.ID, err)
	}
	return nil
}
