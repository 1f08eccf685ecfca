package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Rrens/filechat/internal/api/response"
	"github.com/Rrens/filechat/internal/repository/redis"
	"github.com/rs/zerolog/log"
)

// Limiter counts requests per key
type Limiter interface {
	Allow(ctx context.Context, key string) (redis.Limit, error)
}

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	limiter Limiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit applies rate limiting per session. Limiter failures let the
// request through.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := GetSessionID(r.Context())
		if !ok {
			key = r.RemoteAddr
		}

		lim, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(lim.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(lim.Remaining))
		w.Header().Set("X-RateLimit-Reset", lim.ResetAt.UTC().Format(time.RFC3339))

		if !lim.Allowed {
			response.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
