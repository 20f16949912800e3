// Package auth signs users in with a password and authenticates requests
// with HS256 bearer tokens.
package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront-admin/internal/domain/user"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned for a missing, malformed, or expired token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the principal lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID int64
	Role   user.Role
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// UserFinder looks up users by email.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*user.User, error)
}

// Service checks passwords and issues tokens.
type Service struct {
	users  UserFinder
	tokens *Tokens
}

// NewService creates a Service.
func NewService(users UserFinder, tokens *Tokens) *Service {
	return &Service{users: users, tokens: tokens}
}

// Login verifies email and password and returns a signed token for the user.
func (s *Service) Login(ctx context.Context, email, password string) (string, *user.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Burn comparable time so unknown emails are not distinguishable.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, errors.Wrap(err, "find user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(Principal{UserID: u.ID, Role: u.Role})
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// Authenticate parses a bearer token into a principal.
func (s *Service) Authenticate(token string) (Principal, error) {
	return s.tokens.Parse(token)
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), bcrypt.DefaultCost)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(h), nil
}

// TokenTTL is the default lifetime of issued tokens.
const TokenTTL = 12 * time.Hour
