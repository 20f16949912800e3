package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-admin/internal/domain/product"
)

const (
	selectProductSQL = `SELECT p.id, p.name, p.description,
		c.id, c.name, t.id, t.name, v.id, v.name,
		p.custom_unit, COALESCE(p.unit_id, 0),
		COALESCE(u.label, p.unit_label), COALESCE(u.name, p.unit_name),
		p.price, p.quantity, p.created_at, p.updated_at
		FROM products p
		JOIN product_categories c ON c.id = p.category_id
		JOIN product_types t ON t.id = p.type_id
		JOIN vendors v ON v.id = p.vendor_id
		LEFT JOIN units u ON u.id = p.unit_id`

	listProductsSQL      = selectProductSQL + ` ORDER BY p.name, p.id`
	getProductByIDSQL    = selectProductSQL + ` WHERE p.id = $1`
	getProductsByIDsSQL  = selectProductSQL + ` WHERE p.id = ANY($1)`
	deleteProductByIDSQL = `DELETE FROM products WHERE id = $1`

	createProductSQL = `INSERT INTO products (name, description, category_id, type_id, vendor_id,
		custom_unit, unit_id, unit_label, unit_name, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	updateProductSQL = `UPDATE products SET name = $2, description = $3, category_id = $4,
		type_id = $5, vendor_id = $6, custom_unit = $7, unit_id = $8, unit_label = $9,
		unit_name = $10, price = $11, quantity = $12, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, nil
}

// GetByID returns product.ErrNotFound when no product has the given id.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns the products that exist among ids.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := conn(ctx, r.pool).Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return products, nil
}

// Create persists p and sets its ID and timestamps.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	unitID, label, name := unitColumns(p.Unit)
	err := conn(ctx, r.pool).QueryRow(ctx, createProductSQL,
		p.Name, p.Description, p.Category.ID, p.Type.ID, p.Vendor.ID,
		p.CustomUnit, unitID, label, name, p.Price, p.Quantity,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.Name, err)
	}
	return nil
}

// Update returns product.ErrNotFound when no product has p.ID.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	unitID, label, name := unitColumns(p.Unit)
	err := conn(ctx, r.pool).QueryRow(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Category.ID, p.Type.ID, p.Vendor.ID,
		p.CustomUnit, unitID, label, name, p.Price, p.Quantity,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.ErrNotFound
		}
		return fmt.Errorf("updating product %d: %w", p.ID, err)
	}
	return nil
}

// Delete returns product.ErrNotFound when no product has the given id.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, deleteProductByIDSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// unitColumns stores either a unit reference or a custom label and name.
func unitColumns(u product.Unit) (*int64, string, string) {
	if u.ID != 0 {
		id := u.ID
		return &id, "", ""
	}
	return nil, u.Label, u.Name
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description,
		&p.Category.ID, &p.Category.Name,
		&p.Type.ID, &p.Type.Name,
		&p.Vendor.ID, &p.Vendor.Name,
		&p.CustomUnit, &p.Unit.ID, &p.Unit.Label, &p.Unit.Name,
		&p.Price, &p.Quantity, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
