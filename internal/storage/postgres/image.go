package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-admin/internal/domain/product"
)

const (
	createImageSQL = `INSERT INTO images (path, owner_kind, owner_id)
		VALUES ($1, $2, $3) RETURNING id, created_at`

	listImagesByOwnersSQL = `SELECT id, path, owner_kind, owner_id, created_at
		FROM images WHERE owner_kind = $1 AND owner_id = ANY($2)
		ORDER BY created_at, id`

	deleteImagesByOwnerSQL = `DELETE FROM images WHERE owner_kind = $1 AND owner_id = $2
		RETURNING id, path, owner_kind, owner_id, created_at`
)

var _ product.ImageRepository = (*ImageRepository)(nil)

// ImageRepository implements product.ImageRepository backed by PostgreSQL.
type ImageRepository struct {
	pool *pgxpool.Pool
}

// NewImageRepository returns an ImageRepository that uses the given pool.
func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

// Create persists img and sets its ID and CreatedAt.
func (r *ImageRepository) Create(ctx context.Context, img *product.Image) error {
	err := conn(ctx, r.pool).QueryRow(ctx, createImageSQL,
		img.Path, string(img.Owner.Kind), img.Owner.ID,
	).Scan(&img.ID, &img.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating image for %s %d: %w", img.Owner.Kind, img.Owner.ID, err)
	}
	return nil
}

// ListByOwners returns images of all given owners, oldest first.
func (r *ImageRepository) ListByOwners(ctx context.Context, kind product.OwnerKind, ids []int64) ([]product.Image, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := conn(ctx, r.pool).Query(ctx, listImagesByOwnersSQL, string(kind), ids)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	images, err := pgx.CollectRows(rows, scanImage)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	return images, nil
}

// DeleteByOwner removes and returns all images of owner.
func (r *ImageRepository) DeleteByOwner(ctx context.Context, owner product.Owner) ([]product.Image, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, deleteImagesByOwnerSQL, string(owner.Kind), owner.ID)
	if err != nil {
		return nil, fmt.Errorf("deleting images of %s %d: %w", owner.Kind, owner.ID, err)
	}
	images, err := pgx.CollectRows(rows, scanImage)
	if err != nil {
		return nil, fmt.Errorf("deleting images of %s %d: %w", owner.Kind, owner.ID, err)
	}
	return images, nil
}

func scanImage(row pgx.CollectableRow) (product.Image, error) {
	var (
		img  product.Image
		kind string
	)
	if err := row.Scan(&img.ID, &img.Path, &kind, &img.Owner.ID, &img.CreatedAt); err != nil {
		return product.Image{}, err
	}
	img.Owner.Kind = product.OwnerKind(kind)
	return img, nil
}
