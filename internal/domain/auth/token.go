package auth

import (
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/xenking/storefront-admin/internal/domain/user"
)

const issuer = "storefront-admin"

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates Tokens signing with secret. A zero ttl uses TokenTTL.
func NewTokens(secret []byte, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = TokenTTL
	}
	return &Tokens{secret: secret, ttl: ttl, now: time.Now}
}

// Issue signs a token for p.
func (t *Tokens) Issue(p Principal) (string, error) {
	now := t.now()
	c := claims{
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Parse verifies token and returns its principal. Any verification failure
// is reported as ErrUnauthorized.
func (t *Tokens) Parse(token string) (Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Principal{}, errors.Wrap(ErrUnauthorized, err.Error())
	}

	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return Principal{}, errors.Wrap(ErrUnauthorized, "invalid subject")
	}
	return Principal{UserID: id, Role: user.Role(c.Role)}, nil
}
