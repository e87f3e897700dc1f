package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	validator := NewValidator(testSecret)

	signed := signToken(t, testSecret, Claims{
		UserID:    42,
		Username:  "alice",
		AvatarURL: "https://cdn/a.png",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := validator.ValidateToken(signed)
	require.NoError(t, err)
	require.Equal(t, 42, claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "https://cdn/a.png", claims.AvatarURL)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	validator := NewValidator(testSecret)

	signed := signToken(t, testSecret, Claims{
		UserID:   42,
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := validator.ValidateToken(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	validator := NewValidator(testSecret)

	signed := signToken(t, "another-secret", Claims{UserID: 42, Username: "alice"})

	_, err := validator.ValidateToken(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsMissingIdentity(t *testing.T) {
	validator := NewValidator(testSecret)

	for name, claims := range map[string]Claims{
		"no user id":  {Username: "alice"},
		"no username": {UserID: 42},
	} {
		signed := signToken(t, testSecret, claims)
		_, err := validator.ValidateToken(signed)
		require.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	validator := NewValidator(testSecret)

	_, err := validator.ValidateToken("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
