package utils_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"staff-portal/utils"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := []byte("supersecret")
	claims := utils.Claims{
		UserID: "user-1",
		Email:  "ana@x.com",
		Role:   "admin",
	}

	token, err := utils.GenerateToken(claims, time.Minute, "test-issuer", secret)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	parsed, err := utils.ParseToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", parsed.UserID)
	assert.Equal(t, "ana@x.com", parsed.Email)
	assert.Equal(t, "admin", parsed.Role)
	assert.Equal(t, "user-1", parsed.Subject)
	assert.Equal(t, "test-issuer", parsed.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Minute), parsed.ExpiresAt.Time, 2*time.Second)
}

func TestGenerateTokenEmptySecret(t *testing.T) {
	_, err := utils.GenerateToken(utils.Claims{UserID: "u"}, time.Minute, "issuer", nil)
	assert.Error(t, err)
}

func TestParseTokenInvalid(t *testing.T) {
	_, err := utils.ParseToken("not.a.valid.token", []byte("supersecret"))
	assert.ErrorIs(t, err, utils.ErrInvalidToken)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := utils.GenerateToken(utils.Claims{UserID: "u"}, time.Minute, "issuer", []byte("one"))
	require.NoError(t, err)

	_, err = utils.ParseToken(token, []byte("two"))
	assert.ErrorIs(t, err, utils.ErrInvalidToken)
}

func TestParseTokenExpired(t *testing.T) {
	secret := []byte("supersecret")
	token, err := utils.GenerateToken(utils.Claims{UserID: "u"}, -time.Minute, "issuer", secret)
	require.NoError(t, err)

	_, err = utils.ParseToken(token, secret)
	assert.ErrorIs(t, err, utils.ErrInvalidToken)
}

func TestParseTokenTampered(t *testing.T) {
	secret := []byte("supersecret")
	token, err := utils.GenerateToken(utils.Claims{UserID: "u", Role: "user"}, time.Minute, "issuer", secret)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(`{"userId":"u","role":"admin","exp":9999999999}`))
	tampered := strings.Join(parts, ".")

	_, err = utils.ParseToken(tampered, secret)
	assert.ErrorIs(t, err, utils.ErrInvalidToken)
}

func TestParseTokenInvalidMethod(t *testing.T) {
	now := time.Now()
	claims := utils.Claims{
		UserID: "u",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = utils.ParseToken(signed, []byte("secret"))
	assert.ErrorIs(t, err, utils.ErrInvalidToken)
}
