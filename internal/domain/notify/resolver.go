package notify

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/storefront-admin/internal/domain/user"
)

// errMiss marks a resolver that found no user.
var errMiss = errors.New("no match")

// Resolver is one step of the staff recipient fallback chain.
type Resolver struct {
	Name    string
	Resolve func(ctx context.Context) (*user.User, error)
}

type emailFinder interface {
	FindByEmail(ctx context.Context, email string) (*user.User, error)
}

type roleFinder interface {
	FirstByRole(ctx context.Context, role user.Role) (*user.User, error)
}

// ByEmail resolves the user with the given configured email. An empty
// email always misses.
func ByEmail(name, email string, users emailFinder) Resolver {
	return Resolver{
		Name: name,
		Resolve: func(ctx context.Context) (*user.User, error) {
			if email == "" {
				return nil, errors.Wrap(errMiss, "email not configured")
			}
			u, err := users.FindByEmail(ctx, email)
			if errors.Is(err, user.ErrNotFound) {
				return nil, errors.Wrapf(errMiss, "%s is set as %s staff email, but user was not found", email, name)
			}
			return u, err
		},
	}
}

// FirstSuperUser resolves the earliest super user.
func FirstSuperUser(users roleFinder) Resolver {
	return Resolver{
		Name: "super",
		Resolve: func(ctx context.Context) (*user.User, error) {
			u, err := users.FirstByRole(ctx, user.RoleSuper)
			if errors.Is(err, user.ErrNotFound) {
				return nil, errors.Wrap(errMiss, "no user with super privileges")
			}
			return u, err
		},
	}
}

// Resolve tries resolvers in order and returns the first user found. Every
// failed step, whether a miss or a lookup error, is logged as a warning
// before falling through. ErrNoRecipient is returned when all steps fail.
func Resolve(ctx context.Context, lg *zap.Logger, resolvers []Resolver) (*user.User, error) {
	for i, r := range resolvers {
		u, err := r.Resolve(ctx)
		if err == nil && u != nil {
			if i > 0 {
				lg.Warn("Staff notification sent to fallback recipient",
					zap.String("resolver", r.Name),
					zap.String("email", u.Email),
				)
			}
			return u, nil
		}
		if err == nil {
			err = errMiss
		}
		lg.Warn("Staff recipient lookup failed",
			zap.String("resolver", r.Name),
			zap.Error(err),
		)
	}
	return nil, ErrNoRecipient
}
