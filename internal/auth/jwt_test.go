package auth_test

import (
	"testing"
	"time"

	"taskflow/internal/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func signedWith(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	assert.NoError(t, err)
	return token
}

func TestSignAndAuthenticate(t *testing.T) {
	// The issuer and verifier share the configured secret, so a login-issued
	// token passes verification
	issuer := auth.NewIssuer("test-secret-key", 24)
	verifier := auth.NewVerifier("test-secret-key")
	userID := uuid.New()

	token, err := issuer.Sign(userID.String())
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	got, err := verifier.Authenticate(token)
	assert.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	verifier := auth.NewVerifier("test-secret-key")

	_, err := verifier.Authenticate("invalid-token")

	assert.Error(t, err)
	assert.Equal(t, "invalid token", err.Error())
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	verifier := auth.NewVerifier("test-secret-key")
	expiredToken := signedWith(t, "test-secret-key", jwt.MapClaims{
		"user_id": uuid.New().String(),
		"exp":     time.Now().Add(-1 * time.Hour).Unix(),
	})

	_, err := verifier.Authenticate(expiredToken)

	assert.Error(t, err)
	assert.Equal(t, "invalid token", err.Error())
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	verifier := auth.NewVerifier("test-secret-key")
	token := signedWith(t, "other-secret", jwt.MapClaims{
		"user_id": uuid.New().String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	_, err := verifier.Authenticate(token)

	assert.Error(t, err)
	assert.Equal(t, "invalid token", err.Error())
}

func TestAuthenticate_MissingClaims(t *testing.T) {
	verifier := auth.NewVerifier("test-secret-key")
	tokenWithoutUserID := signedWith(t, "test-secret-key", jwt.MapClaims{
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	})

	_, err := verifier.Authenticate(tokenWithoutUserID)

	assert.Error(t, err)
	assert.Equal(t, "invalid claims", err.Error())
}

func TestAuthenticate_NonUUIDUserID(t *testing.T) {
	verifier := auth.NewVerifier("test-secret-key")
	token := signedWith(t, "test-secret-key", jwt.MapClaims{
		"user_id": "not-a-uuid",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	_, err := verifier.Authenticate(token)

	assert.Error(t, err)
	assert.Equal(t, "invalid user ID in token", err.Error())
}

func TestIssuerDefaultExpiry(t *testing.T) {
	// A non-positive configured expiry falls back to 24 hours
	issuer := auth.NewIssuer("test-secret-key", 0)
	verifier := auth.NewVerifier("test-secret-key")
	userID := uuid.New()

	token, err := issuer.Sign(userID.String())
	assert.NoError(t, err)

	got, err := verifier.Authenticate(token)
	assert.NoError(t, err)
	assert.Equal(t, userID, got)
}
