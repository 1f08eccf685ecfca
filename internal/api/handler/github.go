package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Rrens/filechat/internal/api/response"
	"github.com/Rrens/filechat/internal/github"
)

// GitHubClient is the proxied subset of the GitHub API
type GitHubClient interface {
	ListRepos(ctx context.Context) (json.RawMessage, error)
	GetFile(ctx context.Context, owner, repo, path string) (*github.File, error)
}

// GitHubHandler proxies repository reads
type GitHubHandler struct {
	client GitHubClient
}

// NewGitHubHandler creates a new GitHub handler
func NewGitHubHandler(client GitHubClient) *GitHubHandler {
	return &GitHubHandler{client: client}
}

// Repos passes through the user's repository list
func (h *GitHubHandler) Repos(w http.ResponseWriter, r *http.Request) {
	raw, err := h.client.ListRepos(r.Context())
	if err != nil {
		response.Error(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

type fileRequest struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo" validate:"required"`
	Path  string `json:"path" validate:"required"`
}

// File fetches one file; the owner defaults to the configured one
func (h *GitHubHandler) File(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	file, err := h.client.GetFile(r.Context(), req.Owner, req.Repo, req.Path)
	if err != nil {
		status := http.StatusNotFound
		var se *github.StatusError
		switch {
		case errors.Is(err, github.ErrNotFound):
		case errors.As(err, &se):
			status = se.Status
		default:
			response.Error(w, http.StatusBadGateway, err.Error())
			return
		}
		response.JSON(w, http.StatusNotFound, response.Body{
			"error":  "File not found",
			"status": status,
		})
		return
	}

	response.OK(w, file)
}
