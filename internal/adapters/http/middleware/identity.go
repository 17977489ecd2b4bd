package middleware

import (
	"context"
	"net/http"
	"strconv"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the session identity supplied by the hosting environment
// before the dashboard initializes. Immutable for the session.
type Identity struct {
	UserID int
	Name   string
	Email  string
}

// Header names the hosting proxy uses to inject the identity.
const (
	HeaderUserID    = "X-Dashboard-User-Id"
	HeaderUserName  = "X-Dashboard-User-Name"
	HeaderUserEmail = "X-Dashboard-User-Email"
)

// Injection reads the host-injected identity headers and sets the identity
// in the request context. Fallback is used when the headers are absent
// (local development); a zero fallback means unidentified requests are
// rejected with 401.
func Injection(fallback Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := fallback
			if raw := r.Header.Get(HeaderUserID); raw != "" {
				if n, err := strconv.Atoi(raw); err == nil && n > 0 {
					id = Identity{
						UserID: n,
						Name:   r.Header.Get(HeaderUserName),
						Email:  r.Header.Get(HeaderUserEmail),
					}
				}
			}
			if id.UserID == 0 {
				http.Error(w, "identity not provided by host", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

// GetIdentityFromContext extracts the session identity from the request
// context.
func GetIdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

// ContextWithIdentity returns a context with the given identity set.
// Intended for use in tests.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}
