package redis

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Rrens/filechat/internal/config"
	"github.com/Rrens/filechat/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryTurns counts History calls so tests can observe cache hits
type memoryTurns struct {
	turns        map[string][]domain.Turn
	historyCalls int
}

func (m *memoryTurns) Append(_ context.Context, t domain.NewTurn) error {
	m.turns[t.SessionID] = append(m.turns[t.SessionID], domain.Turn{
		SessionID: t.SessionID, Role: t.Role, Content: t.Content, MessageType: t.MessageType,
	})
	return nil
}

func (m *memoryTurns) History(_ context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	m.historyCalls++
	turns := m.turns[sessionID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]domain.Turn(nil), turns...), nil
}

func (m *memoryTurns) Count(_ context.Context, sessionID string) (int, error) {
	return len(m.turns[sessionID]), nil
}

func (m *memoryTurns) Clear(_ context.Context, sessionID string) error {
	delete(m.turns, sessionID)
	return nil
}

func (m *memoryTurns) ListSessions(context.Context) ([]domain.SessionSummary, error) {
	return nil, nil
}

func (m *memoryTurns) Ping(context.Context) error { return nil }

func newTestClient(t *testing.T) *Client {
	t.Helper()

	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST not set, skipping redis integration test")
	}
	port := 6379
	if p := os.Getenv("REDIS_PORT"); p != "" {
		port, _ = strconv.Atoi(p)
	}

	client, err := NewClient(context.Background(), config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestHistoryCache_ReadThroughAndInvalidate(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	inner := &memoryTurns{turns: map[string][]domain.Turn{}}
	cache := NewHistoryCache(inner, client, time.Minute)
	session := uuid.NewString()

	require.NoError(t, cache.Append(ctx, domain.NewTurn{SessionID: session, Role: domain.RoleUser, Content: domain.Plain(`[not blocks]`)}))
	require.NoError(t, cache.Append(ctx, domain.NewTurn{SessionID: session, Role: domain.RoleAssistant,
		Content: domain.Blocks(domain.TextBlock("a"), domain.ImageBlock("image/png", "AAAA"))}))

	first, err := cache.History(ctx, session, 50)
	require.NoError(t, err)
	second, err := cache.History(ctx, session, 50)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.historyCalls)
	require.Len(t, second, 2)
	assert.Equal(t, first, second)
	assert.False(t, second[0].Content.IsStructured())
	assert.Equal(t, `[not blocks]`, second[0].Content.Text())
	assert.True(t, second[1].Content.IsStructured())

	require.NoError(t, cache.Clear(ctx, session))
	turns, err := cache.History(ctx, session, 50)
	require.NoError(t, err)
	assert.Empty(t, turns)
	assert.Equal(t, 2, inner.historyCalls)
}

func TestRateLimiter_Allow(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	limiter := NewRateLimiter(client, 2, 1)
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { limiter.Reset(ctx, key) })

	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}
