package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("remote-secret"))
	require.NoError(t, err)
	return tok
}

func TestParseTokenClaims(t *testing.T) {
	exp := time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
	s, err := ParseToken(signed(t, jwt.MapClaims{"sub": "ana", "exp": exp.Unix()}))
	require.NoError(t, err)
	assert.Equal(t, "ana", s.Subject)
	require.NotNil(t, s.ExpiresAt)
	assert.True(t, s.ExpiresAt.Equal(exp))
	assert.False(t, s.Expired(exp.Add(-time.Minute)))
	assert.True(t, s.Expired(exp))
}

func TestParseTokenOpaqueAndEmpty(t *testing.T) {
	s, err := ParseToken("opaque-token")
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", s.Token)
	assert.Empty(t, s.Subject)
	assert.False(t, s.Expired(time.Now()))

	_, err = ParseToken("  ")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := TokenFromRequest(r)
	assert.ErrorIs(t, err, ErrNoToken)

	r.Header.Set("Authorization", "Basic abc")
	_, err = TokenFromRequest(r)
	assert.ErrorIs(t, err, ErrNoToken)

	r.Header.Set("Authorization", "bearer abc")
	tok, err := TokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}

func TestRequireAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	active := false
	src := func() (Session, bool) { return Session{Subject: "ana"}, active }
	h := Middleware(src)(RequireAuth(ok))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "unauthorized")

	active = true
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
