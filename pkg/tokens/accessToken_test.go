package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-jwt-secret")

func TestNewAccessToken_SetsExpectedClaims(t *testing.T) {
	t.Parallel()

	userID := uuid.NewString()
	now := time.Now()

	token, exp, err := NewAccessToken(secret, userID, "farmer", time.Hour, now)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := AccessClaimsFromToken(token, secret)
	require.NoError(t, err)

	assert.Equal(t, "farmer", claims.Role)
	assert.Equal(t, userID, claims.Subject)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, exp, claims.ExpiresAt.Time, time.Second)
}

func TestAccessClaimsFromToken_Rejects(t *testing.T) {
	t.Parallel()

	expired, _, err := NewAccessToken(secret, uuid.NewString(), "customer", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	otherKey, _, err := NewAccessToken([]byte("other"), uuid.NewString(), "customer", time.Hour, time.Now())
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessClaims{Role: "farmer"}).SignedString(secret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "expired", token: expired},
		{name: "wrong key", token: otherKey},
		{name: "wrong algorithm", token: hs512},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			claims, err := AccessClaimsFromToken(tt.token, secret)
			require.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestNewAccessToken_EmptySecret(t *testing.T) {
	t.Parallel()

	_, _, err := NewAccessToken(nil, "id", "farmer", time.Hour, time.Now())
	require.Error(t, err)
}
