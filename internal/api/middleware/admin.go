package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/Rrens/filechat/internal/api/response"
	"github.com/Rrens/filechat/internal/security"
)

// AdminAuth guards admin routes with HTTP Basic auth checked against a
// bcrypt hash. An empty hash disables the check.
func AdminAuth(username, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if passwordHash == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
				!security.CheckPassword(passwordHash, pass) {
				w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
				response.Unauthorized(w, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
