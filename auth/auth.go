// Package auth handles the bearer token issued by the remote service and
// the session attached to local API requests.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/diewo77/go-pedidos/httpx"
)

type ctxKey string

const sessionCtxKey = ctxKey("session")

// ErrNoToken is returned when no bearer token is present.
var ErrNoToken = errors.New("auth: no bearer token")

// Session is the authenticated state derived from a bearer token.
// The remote service verifies the signature; locally the claims only
// provide the user name and expiry.
type Session struct {
	Token     string     `json:"-"`
	Subject   string     `json:"subject"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ParseToken reads the claims of a JWT without verifying it. Opaque
// (non-JWT) tokens are accepted with empty claims.
func ParseToken(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrNoToken
	}
	s := Session{Token: token}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return s, nil
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		s.Subject = sub
	} else if name, ok := claims["username"].(string); ok {
		s.Subject = name
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		s.ExpiresAt = &t
	}
	return s, nil
}

// Expired reports whether the token carries an expiry before now.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// TokenFromRequest returns the bearer token of r.
func TokenFromRequest(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrNoToken
	}
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tok) == "" {
		return "", ErrNoToken
	}
	return strings.TrimSpace(tok), nil
}

// WithSession stores s in context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, s)
}

// FromContext extracts the session.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionCtxKey).(Session)
	return s, ok
}

// SessionSource returns the active session, if any.
type SessionSource func() (Session, bool)

// Middleware attaches the active session to the request context.
func Middleware(src SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s, ok := src(); ok {
				r = r.WithContext(WithSession(r.Context(), s))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth returns 401 JSON when no session is attached.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
