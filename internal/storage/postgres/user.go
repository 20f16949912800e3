package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-admin/internal/domain/user"
)

const (
	userColumns = `id, name, email, role, password_hash, created_at`

	getUserByIDSQL    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	firstUserByRole   = `SELECT ` + userColumns + ` FROM users WHERE role = $1
		ORDER BY created_at, id LIMIT 1`

	upsertUserSQL = `INSERT INTO users (name, email, role, password_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ((lower(email))) DO UPDATE
		SET name = EXCLUDED.name, role = EXCLUDED.role, password_hash = EXCLUDED.password_hash
		RETURNING id, created_at`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID returns user.ErrNotFound when no user has the given id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.one(ctx, getUserByIDSQL, id)
}

// FindByEmail matches email case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.one(ctx, getUserByEmailSQL, email)
}

// FirstByRole returns the earliest-created user with role.
func (r *UserRepository) FirstByRole(ctx context.Context, role user.Role) (*user.User, error) {
	return r.one(ctx, firstUserByRole, string(role))
}

// Upsert inserts u or updates the user with the same email.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	err := conn(ctx, r.pool).QueryRow(ctx, upsertUserSQL,
		u.Name, u.Email, string(u.Role), u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting user %q: %w", u.Email, err)
	}
	return nil
}

func (r *UserRepository) one(ctx context.Context, sql string, arg any) (*user.User, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u    user.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.PasswordHash, &u.CreatedAt); err != nil {
		return user.User{}, err
	}
	u.Role = user.Role(role)
	return u, nil
}
