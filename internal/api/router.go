package api

import (
	"net/http"

	"github.com/Rrens/filechat/internal/api/handler"
	customMiddleware "github.com/Rrens/filechat/internal/api/middleware"
	"github.com/Rrens/filechat/internal/config"
	"github.com/Rrens/filechat/internal/llm"
	"github.com/Rrens/filechat/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// Dependencies are the collaborators the HTTP layer serves. Gate, Cache,
// Limiter and GitHub are optional and must be left nil when disabled.
type Dependencies struct {
	Config  *config.Config
	Chat    handler.ChatService
	Store   handler.Pinger
	LLM     *llm.Router
	Gate    handler.BackupGate
	Cache   handler.CacheFlusher
	Limiter customMiddleware.Limiter
	GitHub  handler.GitHubClient
}

// NewRouter creates and configures the HTTP router
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	sessions := customMiddleware.NewSessionMiddleware(
		security.NewSessionSigner(cfg.Server.SecretKey),
		cfg.Server.SessionCookie,
		cfg.Server.Production(),
	)

	chatHandler := handler.NewChatHandler(deps.Chat, cfg.Upload.Dir, cfg.Upload.AllowedExtensions, cfg.Upload.MaxBytes)
	healthHandler := handler.NewHealthHandler(deps.Store, deps.Chat, cfg.Upload.Dir, cfg.Database.DataDir)
	adminHandler := handler.NewAdminHandler(deps.Chat, deps.Gate, deps.Cache)

	if cfg.Admin.PasswordHash == "" {
		log.Warn().Msg("Admin password hash is empty, admin routes are unauthenticated")
	}
	adminAuth := customMiddleware.AdminAuth(cfg.Admin.Username, cfg.Admin.PasswordHash)

	// Probes carry no session
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/test", healthHandler.Test)
	r.Get("/llm-providers", handler.ListLLMProviders(deps.LLM))

	r.Group(func(r chi.Router) {
		r.Use(sessions.Handle)

		r.Group(func(r chi.Router) {
			if deps.Limiter != nil {
				r.Use(customMiddleware.NewRateLimitMiddleware(deps.Limiter).Limit)
			}
			r.Post("/chat", chatHandler.Chat)
			r.Post("/upload", chatHandler.Upload)
		})

		r.Post("/clear_history", chatHandler.Clear)
		r.Get("/get_history", chatHandler.History)

		if deps.GitHub != nil {
			githubHandler := handler.NewGitHubHandler(deps.GitHub)
			r.Get("/github/repos", githubHandler.Repos)
			r.Post("/github/file", githubHandler.File)
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminAuth)

			r.Post("/clear_history", chatHandler.Clear)
			r.Get("/get_history", chatHandler.History)
			r.Get("/sessions", adminHandler.Sessions)
			r.Post("/backup_db", adminHandler.Backup)
			r.Post("/restore_db", adminHandler.Restore)
			r.Get("/db_status", adminHandler.Status)
			r.Post("/cache/flush", adminHandler.FlushCache)
		})
	})

	return r
}
