package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-chat/internal/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issue(t *testing.T, user jwt.User, ttl time.Duration) string {
	t.Helper()
	token, err := jwt.CreateToken(user, time.Now().Add(ttl).Unix())
	require.NoError(t, err)
	return token
}

func TestAuthenticate(t *testing.T) {
	jwt.SetSecret("middleware-test-secret")

	var got jwt.User
	handler := Authenticate(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFrom(r.Context())
		require.True(t, ok)
		got = u
		w.WriteHeader(http.StatusOK)
	})

	valid := issue(t, jwt.User{ID: "C", Role: "customer"}, time.Minute)
	expired := issue(t, jwt.User{ID: "C"}, -time.Minute)

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer " + valid, "", http.StatusOK},
		{"lowercase scheme", "bearer " + valid, "", http.StatusOK},
		{"query token", "", "?token=" + valid, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", "", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got = jwt.User{}
			req := httptest.NewRequest(http.MethodGet, "/ws"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, jwt.User{ID: "C", Role: "customer"}, got)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(DefaultCORSConfig([]string{"https://shop.example"}))(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight reached the handler")
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat/v1/messages", nil)
	req.Header.Set("Origin", "https://shop.example")
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.HandlerFunc) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next(w, r)
			}
		}
	}
	h := Chain(func(w http.ResponseWriter, r *http.Request) { order = append(order, "handler") }, mark("a"), mark("b"))
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}
