package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(sub string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func TestNewVerifier_EmptySecret(t *testing.T) {
	_, err := NewVerifier(nil)
	require.Error(t, err)
}

func TestAuthenticate_Valid(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	uid, err := v.Authenticate(context.Background(), sign(t, jwt.SigningMethodHS256, testSecret, validClaims("42")))
	require.NoError(t, err)
	require.Equal(t, "42", uid)
}

func TestAuthenticate_Rejects(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	expired := validClaims("42")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExp := validClaims("42")
	noExp.ExpiresAt = nil

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"wrong secret": sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims("42")),
		"wrong alg":    sign(t, jwt.SigningMethodHS512, testSecret, validClaims("42")),
		"expired":      sign(t, jwt.SigningMethodHS256, testSecret, expired),
		"no expiry":    sign(t, jwt.SigningMethodHS256, testSecret, noExp),
		"no subject":   sign(t, jwt.SigningMethodHS256, testSecret, validClaims("")),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Authenticate(context.Background(), token)
			require.Error(t, err)
		})
	}
}

func TestBearerToken(t *testing.T) {
	require.Equal(t, "abc", BearerToken("Bearer abc"))
	require.Equal(t, "abc", BearerToken("  bearer   abc "))
	require.Equal(t, "", BearerToken("Basic abc"))
	require.Equal(t, "", BearerToken("Bearer"))
	require.Equal(t, "", BearerToken(""))
}
