// Package github is a thin client for the few GitHub REST calls the chat
// backend proxies.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Rrens/filechat/internal/config"
)

// ErrNotFound is returned when GitHub answers 404 for a file
var ErrNotFound = errors.New("file not found")

// StatusError carries a non-2xx GitHub status
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github returned status %d", e.Status)
}

// File is a decoded repository file
type File struct {
	Content string `json:"content"`
	Path    string `json:"path"`
	Repo    string `json:"repo"`
	Size    int    `json:"size"`
	URL     string `json:"url"`
}

// Repo is the subset of repository fields used in chat summaries
type Repo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Client calls the GitHub REST API with a personal access token
type Client struct {
	token        string
	defaultOwner string
	baseURL      string
	http         *http.Client
}

// NewClient creates a new GitHub client
func NewClient(cfg config.GitHubConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &Client{
		token:        cfg.Token,
		defaultOwner: cfg.DefaultOwner,
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured reports whether a token is set
func (c *Client) IsConfigured() bool {
	return c.token != ""
}

// DefaultOwner is used when a request names no owner
func (c *Client) DefaultOwner() string {
	return c.defaultOwner
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// ListRepos returns the raw JSON of the authenticated user's repositories
func (c *Client) ListRepos(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.get(ctx, "/user/repos")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: resp.StatusCode}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("invalid JSON from github")
	}
	return body, nil
}

// GetFile fetches and decodes one file. An empty owner means DefaultOwner.
func (c *Client) GetFile(ctx context.Context, owner, repo, path string) (*File, error) {
	if owner == "" {
		owner = c.defaultOwner
	}
	if owner == "" || repo == "" || path == "" {
		return nil, fmt.Errorf("owner, repo and path are required")
	}

	escaped := make([]string, 0)
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		escaped = append(escaped, url.PathEscape(seg))
	}
	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", url.PathEscape(owner), url.PathEscape(repo), strings.Join(escaped, "/"))

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: resp.StatusCode}
	}

	var payload struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
		Size     int    `json:"size"`
		HTMLURL  string `json:"html_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// GitHub wraps base64 content at 60 columns
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(payload.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode file content: %w", err)
	}

	return &File{
		Content: string(raw),
		Path:    path,
		Repo:    repo,
		Size:    payload.Size,
		URL:     payload.HTMLURL,
	}, nil
}

// recentRepos decodes the repository list for chat summaries
func (c *Client) recentRepos(ctx context.Context, limit int) ([]Repo, error) {
	raw, err := c.ListRepos(ctx)
	if err != nil {
		return nil, err
	}
	var repos []Repo
	if err := json.Unmarshal(raw, &repos); err != nil {
		return nil, fmt.Errorf("failed to decode repos: %w", err)
	}
	if len(repos) > limit {
		repos = repos[:limit]
	}
	return repos, nil
}
