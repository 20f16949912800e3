package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no user matches a lookup.
var ErrNotFound = errors.New("user not found")

// Role is a user's privilege level.
type Role string

const (
	// RoleSuper is the distinguished super-user role. The first super user
	// is the last-resort recipient of staff notifications.
	RoleSuper    Role = "super"
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Staff reports whether r may manage the catalog and orders.
func (r Role) Staff() bool {
	return r == RoleSuper || r == RoleAdmin
}

// User is an account that can sign in, own orders, or receive staff mail.
type User struct {
	ID           int64
	Name         string
	Email        string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}

// Repository looks up and maintains users.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	// FindByEmail matches email case-insensitively.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FirstByRole returns the earliest-created user with role.
	FirstByRole(ctx context.Context, role Role) (*User, error)
	// Upsert inserts u or updates the user with the same email, setting u.ID.
	Upsert(ctx context.Context, u *User) error
}
