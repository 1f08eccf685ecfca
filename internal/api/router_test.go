package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Rrens/filechat/internal/api"
	"github.com/Rrens/filechat/internal/config"
	"github.com/Rrens/filechat/internal/domain"
	"github.com/Rrens/filechat/internal/llm"
	"github.com/Rrens/filechat/internal/repository/sqldb"
	"github.com/Rrens/filechat/internal/security"
	"github.com/Rrens/filechat/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoProvider answers with the last user message in upper case
type echoProvider struct {
	calls int
}

func (p *echoProvider) Name() string              { return "echo" }
func (p *echoProvider) AvailableModels() []string { return []string{"echo-1"} }
func (p *echoProvider) DefaultModel() string      { return "echo-1" }
func (p *echoProvider) IsConfigured() bool        { return true }

func (p *echoProvider) Chat(_ context.Context, req llm.ChatRequest, _ string) (*llm.ChatResponse, error) {
	p.calls++
	last := req.Messages[len(req.Messages)-1]
	return &llm.ChatResponse{Text: "echo: " + last.Content.Flatten(), Model: "echo-1"}, nil
}

func newTestServer(t *testing.T, adminHash string) (*httptest.Server, *echoProvider) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		Server: config.ServerConfig{
			SecretKey:         "test-secret",
			SessionCookie:     "session",
			MiddlewareTimeout: 10 * time.Second,
		},
		Database: config.DatabaseConfig{
			Driver:       config.DriverSQLite,
			DataDir:      dir,
			HistoryLimit: 50,
		},
		Upload: config.UploadConfig{
			Dir:               filepath.Join(dir, "uploads"),
			MaxBytes:          1 << 20,
			AllowedExtensions: []string{"txt"},
		},
		Admin: config.AdminConfig{Username: "admin", PasswordHash: adminHash},
	}

	db, err := sqldb.Open(context.Background(), cfg.Database)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	provider := &echoProvider{}
	router := llm.NewRouter("echo")
	router.RegisterProvider(provider)

	turns := sqldb.NewTurnRepository(db)
	chat := service.NewChatService(turns, router, cfg.Database.HistoryLimit, 256)

	srv := httptest.NewServer(api.NewRouter(api.Dependencies{
		Config: cfg,
		Chat:   chat,
		Store:  turns,
		LLM:    router,
	}))
	t.Cleanup(srv.Close)
	return srv, provider
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func postJSON(t *testing.T, c *http.Client, url string, body any) map[string]any {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := c.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func getJSON(t *testing.T, c *http.Client, url string) (int, map[string]any) {
	t.Helper()
	resp, err := c.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestRouter_ConversationFlow(t *testing.T) {
	srv, provider := newTestServer(t, "")
	alice := newClient(t)
	bob := newClient(t)

	out := postJSON(t, alice, srv.URL+"/chat", map[string]string{"message": "hello"})
	assert.Equal(t, "echo: hello", out["response"])
	assert.Equal(t, float64(2), out["conversation_length"])

	out = postJSON(t, alice, srv.URL+"/chat", map[string]string{"message": "again"})
	assert.Equal(t, float64(4), out["conversation_length"])

	status, hist := getJSON(t, alice, srv.URL+"/get_history")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(4), hist["count"])
	first := hist["history"].([]any)[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "hello", first["content"])

	// a second browser gets its own session
	_, hist = getJSON(t, bob, srv.URL+"/get_history")
	assert.Equal(t, float64(0), hist["count"])

	postJSON(t, alice, srv.URL+"/clear_history", nil)
	_, hist = getJSON(t, alice, srv.URL+"/get_history")
	assert.Equal(t, float64(0), hist["count"])

	_, sessions := getJSON(t, bob, srv.URL+"/admin/sessions")
	assert.Empty(t, sessions["sessions"])
	assert.Equal(t, 2, provider.calls)
}

func TestRouter_Probes(t *testing.T) {
	srv, _ := newTestServer(t, "")
	c := http.DefaultClient

	status, body := getJSON(t, c, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, body = getJSON(t, c, srv.URL+"/test")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "echo: Say hello!", body["response"])

	status, body = getJSON(t, c, srv.URL+"/admin/db_status")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "backup requires the sqlite driver", body["error"])
}

func TestRouter_AdminAuth(t *testing.T) {
	hash, err := security.HashPassword("s3cret")
	require.NoError(t, err)
	srv, _ := newTestServer(t, hash)

	resp, err := http.Get(srv.URL + "/admin/sessions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/admin/sessions", nil)
	req.SetBasicAuth("admin", "s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

var _ domain.TurnRepository = (*sqldb.TurnRepository)(nil)
