package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Rrens/filechat/internal/repository/redis"
	"github.com/Rrens/filechat/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoSession(w http.ResponseWriter, r *http.Request) {
	id, _ := GetSessionID(r.Context())
	w.Write([]byte(id))
}

func TestSessionMiddleware(t *testing.T) {
	signer := security.NewSessionSigner("test-secret")
	h := NewSessionMiddleware(signer, "session", false).Handle(http.HandlerFunc(echoSession))

	// first request issues a cookie
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get_history", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	first := rec.Body.String()
	require.NotEmpty(t, first)

	// the cookie resolves to the same session
	req := httptest.NewRequest(http.MethodGet, "/get_history", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, first, rec.Body.String())
	assert.Empty(t, rec.Result().Cookies())

	// a forged cookie starts over
	req = httptest.NewRequest(http.MethodGet, "/get_history", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "forged"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, first, rec.Body.String())
	assert.Len(t, rec.Result().Cookies(), 1)
}

type fakeLimiter struct {
	lim redis.Limit
	err error
	key string
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (redis.Limit, error) {
	f.key = key
	return f.lim, f.err
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	reset := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)

	t.Run("allowed", func(t *testing.T) {
		lim := &fakeLimiter{lim: redis.Limit{Allowed: true, Limit: 35, Remaining: 34, ResetAt: reset}}
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req = req.WithContext(WithSessionID(req.Context(), "s1"))
		rec := httptest.NewRecorder()

		NewRateLimitMiddleware(lim).Limit(ok).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "s1", lim.key)
		assert.Equal(t, "34", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "2026-01-02T03:04:00Z", rec.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("exceeded", func(t *testing.T) {
		lim := &fakeLimiter{lim: redis.Limit{Allowed: false, Limit: 35, ResetAt: reset}}
		rec := httptest.NewRecorder()

		NewRateLimitMiddleware(lim).Limit(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", nil))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("limiter down fails open", func(t *testing.T) {
		lim := &fakeLimiter{err: errors.New("connection refused")}
		rec := httptest.NewRecorder()

		NewRateLimitMiddleware(lim).Limit(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAdminAuth(t *testing.T) {
	hash, err := security.HashPassword("hunter2")
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := AdminAuth("admin", hash)(ok)

	tests := []struct {
		name       string
		user, pass string
		basic      bool
		want       int
	}{
		{"no credentials", "", "", false, http.StatusUnauthorized},
		{"wrong password", "admin", "nope", true, http.StatusUnauthorized},
		{"wrong user", "root", "hunter2", true, http.StatusUnauthorized},
		{"valid", "admin", "hunter2", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/sessions", nil)
			if tt.basic {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	t.Run("disabled without hash", func(t *testing.T) {
		rec := httptest.NewRecorder()
		AdminAuth("admin", "")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/sessions", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
