package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func runAuth(t *testing.T, authHeader string) (*httptest.ResponseRecorder, int64, bool) {
	t.Helper()
	m := NewAuthMiddleware(testSecret)

	var gotID int64
	var gotOK bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotOK = AdminIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/approve", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	m.Authenticate(next).ServeHTTP(rec, req)
	return rec, gotID, gotOK
}

func TestAuthenticateValidToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"admin_id": 900,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	rec, adminID, ok := runAuth(t, "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ok)
	assert.Equal(t, int64(900), adminID)
}

func TestAuthenticateMissingHeader(t *testing.T) {
	rec, _, _ := runAuth(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	rec, _, _ := runAuth(t, "Token abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateWrongSecret(t *testing.T) {
	token := signToken(t, "other-secret", jwt.MapClaims{
		"admin_id": 900,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	rec, _, _ := runAuth(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateExpiredToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"admin_id": 900,
		"exp":      time.Now().Add(-time.Hour).Unix(),
	})

	rec, _, _ := runAuth(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateMissingAdminID(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	rec, _, _ := runAuth(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
