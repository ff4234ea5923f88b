package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type usersMock map[string]string

func (m usersMock) UserIDByEmail(_ context.Context, email string) (string, error) {
	id, ok := m[email]
	if !ok {
		return "", errors.New("user not found")
	}
	return id, nil
}

func newToken(t *testing.T, k *Keys, email string, exp time.Time) string {
	t.Helper()
	tkn, err := k.GenerateToken(Claims{
		Email: email,
		Role:  RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	require.NoError(t, err)
	return tkn
}

func TestResolve(t *testing.T) {
	keys, err := NewKeys("access-secret")
	require.NoError(t, err)
	otherKeys, err := NewKeys("some-other-secret")
	require.NoError(t, err)

	r := NewResolver(keys, usersMock{"ann@shop.test": "user-1"}, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
		want  Identity
	}{
		{"no token", "", Guest()},
		{"malformed", "not-a-jwt", Guest()},
		{"valid", newToken(t, keys, "ann@shop.test", time.Now().Add(time.Hour)),
			Identity{UserID: "user-1", Email: "ann@shop.test", Role: RoleUser}},
		{"expired", newToken(t, keys, "ann@shop.test", time.Now().Add(-time.Hour)), Guest()},
		{"wrong secret", newToken(t, otherKeys, "ann@shop.test", time.Now().Add(time.Hour)), Guest()},
		{"unknown subject", newToken(t, keys, "ghost@shop.test", time.Now().Add(time.Hour)), Guest()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(ctx, tt.token)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateToken_RequiresExpiry(t *testing.T) {
	keys, err := NewKeys("access-secret")
	require.NoError(t, err)

	tkn, err := keys.GenerateToken(Claims{Email: "ann@shop.test", Role: RoleAdmin})
	require.NoError(t, err)

	_, err = keys.ValidateToken(tkn)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/orders/create", nil)
	assert.Empty(t, TokenFromRequest(req))

	req.AddCookie(&http.Cookie{Name: "accessToken", Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(req))

	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, TokenFromRequest(req))
}
