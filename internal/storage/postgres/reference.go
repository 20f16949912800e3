package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-admin/internal/domain/product"
)

var _ product.ReferenceRepository = (*ReferenceRepository)(nil)

// refTables maps reference kinds to their tables. Only units carry a label.
var refTables = map[product.RefKind]string{
	product.RefCategory: "product_categories",
	product.RefType:     "product_types",
	product.RefVendor:   "vendors",
	product.RefUnit:     "units",
}

// ReferenceRepository reads and seeds the product reference tables.
type ReferenceRepository struct {
	pool *pgxpool.Pool
}

// NewReferenceRepository returns a ReferenceRepository that uses the given pool.
func NewReferenceRepository(pool *pgxpool.Pool) *ReferenceRepository {
	return &ReferenceRepository{pool: pool}
}

func refTable(kind product.RefKind) (string, error) {
	table, ok := refTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown reference kind %q", kind)
	}
	return table, nil
}

func labelColumn(kind product.RefKind) string {
	if kind == product.RefUnit {
		return "label"
	}
	return "''"
}

// List returns all rows of kind ordered by name.
func (r *ReferenceRepository) List(ctx context.Context, kind product.RefKind) ([]product.Ref, error) {
	table, err := refTable(kind)
	if err != nil {
		return nil, err
	}

	sql := `SELECT id, name, ` + labelColumn(kind) + ` FROM ` + table + ` ORDER BY name`
	rows, err := conn(ctx, r.pool).Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", table, err)
	}

	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Ref, error) {
		var ref product.Ref
		err := row.Scan(&ref.ID, &ref.Name, &ref.Label)
		return ref, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", table, err)
	}
	return refs, nil
}

// Exists reports whether a row of kind has the given id.
func (r *ReferenceRepository) Exists(ctx context.Context, kind product.RefKind, id int64) (bool, error) {
	table, err := refTable(kind)
	if err != nil {
		return false, err
	}

	var ok bool
	sql := `SELECT EXISTS (SELECT 1 FROM ` + table + ` WHERE id = $1)`
	if err := conn(ctx, r.pool).QueryRow(ctx, sql, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking %s %d: %w", table, id, err)
	}
	return ok, nil
}

// Upsert inserts ref by name, or updates the unit label of an existing
// row, and sets ref.ID.
func (r *ReferenceRepository) Upsert(ctx context.Context, kind product.RefKind, ref *product.Ref) error {
	table, err := refTable(kind)
	if err != nil {
		return err
	}

	var sql string
	args := []any{ref.Name}
	if kind == product.RefUnit {
		sql = `INSERT INTO units (name, label) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET label = EXCLUDED.label RETURNING id`
		args = append(args, ref.Label)
	} else {
		sql = `INSERT INTO ` + table + ` (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`
	}

	if err := conn(ctx, r.pool).QueryRow(ctx, sql, args...).Scan(&ref.ID); err != nil {
		return fmt.Errorf("upserting %s %q: %w", table, ref.Name, err)
	}
	return nil
}
