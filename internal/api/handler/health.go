package handler

import (
	"net/http"
	"os"

	"github.com/Rrens/filechat/internal/api/response"
	"github.com/Rrens/filechat/internal/llm"
)

// HealthHandler serves liveness and provider probes
type HealthHandler struct {
	store      Pinger
	chat       ChatService
	uploadsDir string
	dataDir    string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store Pinger, chat ChatService, uploadsDir, dataDir string) *HealthHandler {
	return &HealthHandler{store: store, chat: chat, uploadsDir: uploadsDir, dataDir: dataDir}
}

func dirExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Health checks the store and the working directories
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		response.JSON(w, http.StatusInternalServerError, response.Body{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	response.OK(w, response.Body{
		"status":      "healthy",
		"database":    "connected",
		"uploads_dir": dirExists(h.uploadsDir),
		"data_dir":    dirExists(h.dataDir),
	})
}

// Ready returns readiness status including database connectivity
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		response.Error(w, http.StatusServiceUnavailable, "database not ready")
		return
	}

	response.OK(w, response.Body{"status": "ready"})
}

// Test sends a one-line prompt to the default provider
func (h *HealthHandler) Test(w http.ResponseWriter, r *http.Request) {
	text, err := h.chat.Ping(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, response.Body{
		"success":  true,
		"response": text,
	})
}

// ListLLMProviders returns the registered providers
func ListLLMProviders(router *llm.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, response.Body{
			"providers":        router.GetProvidersInfo(),
			"default_provider": router.DefaultProvider(),
		})
	}
}
