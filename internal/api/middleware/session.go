package middleware

import (
	"context"
	"net/http"

	"github.com/Rrens/filechat/internal/api/response"
	"github.com/Rrens/filechat/internal/security"
	"github.com/rs/zerolog/log"
)

type contextKey string

const SessionIDKey contextKey = "sessionID"

// SessionMiddleware binds every request to a session ID carried in a
// signed cookie. A missing or tampered cookie starts a new session.
type SessionMiddleware struct {
	signer *security.SessionSigner
	cookie string
	secure bool
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(signer *security.SessionSigner, cookieName string, secure bool) *SessionMiddleware {
	if cookieName == "" {
		cookieName = "session"
	}
	return &SessionMiddleware{signer: signer, cookie: cookieName, secure: secure}
}

// Handle resolves or issues the session ID and stores it in the context
func (m *SessionMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(m.cookie); err == nil {
			if id, err := m.signer.Verify(c.Value); err == nil {
				next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
				return
			}
			log.Debug().Msg("Rejected session cookie, issuing a new one")
		}

		id := security.NewSessionID()
		token, err := m.signer.Sign(id)
		if err != nil {
			response.InternalError(w, "failed to start session")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     m.cookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteLaxMode,
		})

		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
	})
}

// WithSessionID stores a session ID in ctx
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

// GetSessionID gets the session ID from context
func GetSessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(SessionIDKey).(string)
	return id, ok && id != ""
}
