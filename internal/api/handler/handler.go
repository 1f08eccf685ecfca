package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/filechat/internal/api/middleware"
	"github.com/Rrens/filechat/internal/api/response"
	"github.com/Rrens/filechat/internal/domain"
	"github.com/Rrens/filechat/internal/service"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ChatService is the conversation API the handlers drive
type ChatService interface {
	Send(ctx context.Context, sessionID string, in service.SendInput) (*service.SendResult, error)
	History(ctx context.Context, sessionID string) ([]domain.Turn, error)
	Clear(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context) ([]domain.SessionSummary, error)
	Ping(ctx context.Context) (string, error)
}

// Pinger reports store reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// sessionID returns the request's session or answers 500
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.GetSessionID(r.Context())
	if !ok {
		response.InternalError(w, "missing session")
	}
	return id, ok
}
