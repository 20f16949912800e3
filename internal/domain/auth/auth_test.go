package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront-admin/internal/domain/user"
)

type mockUsers struct {
	byEmail map[string]*user.User
	err     error
}

func (m *mockUsers) FindByEmail(_ context.Context, email string) (*user.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func newUsers(t *testing.T) *mockUsers {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	return &mockUsers{byEmail: map[string]*user.User{
		"admin@example.com": {ID: 3, Email: "admin@example.com", Role: user.RoleAdmin, PasswordHash: string(hash)},
	}}
}

func TestService_Login(t *testing.T) {
	svc := NewService(newUsers(t), NewTokens([]byte("k"), time.Hour))

	token, u, err := svc.Login(context.Background(), "admin@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(3), u.ID)

	p, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: 3, Role: user.RoleAdmin}, p)
}

func TestService_LoginRejected(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "admin@example.com", password: "guess"},
		{name: "unknown email", email: "nobody@example.com", password: "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newUsers(t), NewTokens([]byte("k"), time.Hour))
			_, _, err := svc.Login(context.Background(), tt.email, tt.password)
			require.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestService_LoginLookupError(t *testing.T) {
	svc := NewService(&mockUsers{err: errors.New("db down")}, NewTokens([]byte("k"), time.Hour))
	_, _, err := svc.Login(context.Background(), "admin@example.com", "secret")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokens_Parse(t *testing.T) {
	start := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	tokens := NewTokens([]byte("signing-key"), time.Hour)
	tokens.now = func() time.Time { return start }

	token, err := tokens.Issue(Principal{UserID: 42, Role: user.RoleSuper})
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		p, err := tokens.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, int64(42), p.UserID)
		assert.Equal(t, user.RoleSuper, p.Role)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokens([]byte("signing-key"), time.Hour)
		later.now = func() time.Time { return start.Add(2 * time.Hour) }
		_, err := later.Parse(token)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := NewTokens([]byte("other-key"), time.Hour)
		other.now = tokens.now
		_, err := other.Parse(token)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Parse("not.a.token")
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: 1, Role: user.RoleCustomer})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(1), p.UserID)
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("hunter2")))
}
