package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "shared-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestJWTVerifierAcceptsUserIDClaim(t *testing.T) {
	verifier, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)

	raw := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"userId": "user-42",
		"role":   "admin",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	claims, err := verifier.VerifyToken(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, "admin", claims.Values["role"])
}

func TestJWTVerifierFallsBackToSub(t *testing.T) {
	verifier, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)

	raw := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "user-7"})

	claims, err := verifier.VerifyToken(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.Subject)
}

func TestJWTVerifierRejections(t *testing.T) {
	verifier, err := NewJWTVerifier(testSecret, WithIssuer("commerce"))
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{
			name: "wrong secret",
			raw:  signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "u", "iss": "commerce"}),
			want: ErrTokenInvalid,
		},
		{
			name: "expired",
			raw: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
				"sub": "u", "iss": "commerce", "exp": time.Now().Add(-time.Minute).Unix(),
			}),
			want: ErrTokenExpired,
		},
		{
			name: "wrong issuer",
			raw:  signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "u", "iss": "elsewhere"}),
			want: ErrTokenInvalid,
		},
		{
			name: "unexpected algorithm",
			raw:  signToken(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.MapClaims{"sub": "u", "iss": "commerce"}),
			want: ErrTokenInvalid,
		},
		{
			name: "no subject",
			raw:  signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"iss": "commerce"}),
			want: ErrTokenInvalid,
		},
		{name: "garbage", raw: "not-a-token", want: ErrTokenInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := verifier.VerifyToken(context.Background(), tc.raw)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier("  ")
	assert.Error(t, err)
}

func TestHMACSignatureHelpers(t *testing.T) {
	secret := []byte("key")
	message := []byte("order_1|pay_1")

	sig := ComputeHMACSHA256(secret, message)
	assert.Len(t, sig, 64)
	assert.True(t, VerifyHMACSHA256(secret, message, sig))
	assert.False(t, VerifyHMACSHA256(secret, []byte("order_1|pay_2"), sig))
	assert.False(t, VerifyHMACSHA256([]byte("other"), message, sig))
	assert.False(t, VerifyHMACSHA256(secret, message, "zz-not-hex"))
	assert.False(t, VerifyHMACSHA256(nil, message, sig))
}
