// Package auth reads the caller's identity from the X-User-ID header set by
// the upstream identity gateway and carries it through the request context.
package auth

import (
	"context"
	"net/http"
	"strings"
	"unicode"
)

const (
	HeaderUserID = "X-User-ID"
	maxUserIDLen = 128
)

type contextKey struct{}

// WithUserID returns a copy of ctx carrying userID
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID returns the caller's identity stored by RequireUser
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// ParseUserID validates a raw header value
func ParseUserID(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxUserIDLen {
		return "", false
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", false
		}
	}
	return id, true
}

// RequireUser middleware for API endpoints (returns 401 without a usable identity)
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := ParseUserID(r.Header.Get(HeaderUserID))
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":"UNAUTHORIZED","error":"Missing or invalid X-User-ID header"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}

// OptionalUser stores the identity when present and valid but never refuses
func OptionalUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := ParseUserID(r.Header.Get(HeaderUserID)); ok {
			r = r.WithContext(WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
