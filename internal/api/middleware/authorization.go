package middleware

import (
	"context"
	"net/http"
	"strings"

	"storefront-chat/internal/jwt"
)

type userKey struct{}

func WithUser(ctx context.Context, u jwt.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the user Authenticate stored on the request context.
func UserFrom(ctx context.Context) (jwt.User, bool) {
	u, ok := ctx.Value(userKey{}).(jwt.User)
	return u, ok
}

// bearerToken reads the Authorization header, falling back to ?token= for
// browser websocket clients that cannot set headers.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "Bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeUnauthorized(w)
			return
		}
		user, err := jwt.ParseToken(token)
		if err != nil {
			writeUnauthorized(w)
			return
		}
		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"code":"unauthorized","message":"Unauthorized"}` + "\n"))
}
