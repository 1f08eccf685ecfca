package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Rrens/filechat/internal/config"
	"github.com/Rrens/filechat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*TurnRepository, *DB) {
	t.Helper()

	ctx := context.Background()
	db, err := Open(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "chat_history.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	repo := NewTurnRepository(db)
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return repo, db
}

func appendText(t *testing.T, repo *TurnRepository, session string, role domain.MessageRole, text string) {
	t.Helper()
	require.NoError(t, repo.Append(context.Background(), domain.NewTurn{
		SessionID: session,
		Role:      role,
		Content:   domain.Plain(text),
	}))
}

func TestTurnRepository_HistoryReturnsLatestInOrder(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		appendText(t, repo, "s1", domain.RoleUser, fmt.Sprintf("msg-%02d", i))
	}

	turns, err := repo.History(ctx, "s1", 50)
	require.NoError(t, err)
	require.Len(t, turns, 50)
	assert.Equal(t, "msg-10", turns[0].Content.Text())
	assert.Equal(t, "msg-59", turns[49].Content.Text())
	assert.True(t, turns[0].CreatedAt.Before(turns[49].CreatedAt))

	n, err := repo.Count(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 60, n)
}

func TestTurnRepository_BlocksRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	blocks := domain.Blocks(
		domain.TextBlock("describe this"),
		domain.ImageBlock("image/png", "iVBORw0KGgo="),
	)
	require.NoError(t, repo.Append(ctx, domain.NewTurn{SessionID: "s1", Role: domain.RoleUser, Content: blocks}))
	appendText(t, repo, "s1", domain.RoleAssistant, "a cat")

	turns, err := repo.History(ctx, "s1", 50)
	require.NoError(t, err)
	require.Len(t, turns, 2)

	assert.True(t, turns[0].Content.IsStructured())
	assert.Equal(t, blocks.BlockList(), turns[0].Content.BlockList())
	assert.Equal(t, domain.DefaultMessageType, turns[0].MessageType)
	assert.False(t, turns[1].Content.IsStructured())
	assert.Equal(t, domain.RoleAssistant, turns[1].Role)
}

func TestTurnRepository_MalformedContentReturnedRaw(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	raw := `[{"type":"text","text":"unterminated`
	err := db.with(func(conn *sql.DB) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO conversations (session_id, role, content, message_type, created_at) VALUES (?, ?, ?, ?, ?)`,
			"s1", "user", raw, "text", time.Now().UTC())
		return err
	})
	require.NoError(t, err)

	turns, err := repo.History(ctx, "s1", 50)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.False(t, turns[0].Content.IsStructured())
	assert.Equal(t, raw, turns[0].Content.Text())
}

func TestTurnRepository_ClearAndListSessions(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	appendText(t, repo, "alpha", domain.RoleUser, "hi")
	appendText(t, repo, "alpha", domain.RoleAssistant, "hello")
	appendText(t, repo, "beta", domain.RoleUser, "yo")

	sessions, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "beta", sessions[0].SessionID)
	assert.Equal(t, 1, sessions[0].MessageCount)
	assert.Equal(t, "alpha", sessions[1].SessionID)
	assert.Equal(t, 2, sessions[1].MessageCount)
	assert.True(t, sessions[1].FirstMessage.Before(sessions[1].LastMessage))

	require.NoError(t, repo.Clear(ctx, "alpha"))
	require.NoError(t, repo.Clear(ctx, "alpha"))
	require.NoError(t, repo.Clear(ctx, "never-existed"))

	turns, err := repo.History(ctx, "alpha", 50)
	require.NoError(t, err)
	assert.Empty(t, turns)

	sessions, err = repo.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "beta", sessions[0].SessionID)
}

func TestTurnRepository_ListSessionsEmpty(t *testing.T) {
	repo, _ := newTestRepo(t)

	sessions, err := repo.ListSessions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

func TestTurnRepository_StorageErrorWhenClosed(t *testing.T) {
	repo, db := newTestRepo(t)
	require.NoError(t, db.Close())

	err := repo.Append(context.Background(), domain.NewTurn{SessionID: "s1", Role: domain.RoleUser, Content: domain.Plain("x")})
	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "append", storageErr.Op)
}

func TestDB_ReplaceReopensAndMigrates(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	appendText(t, repo, "s1", domain.RoleUser, "before")

	swapped := false
	err := db.Replace(ctx, func(path string) error {
		swapped = true
		assert.Equal(t, db.Path(), path)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, swapped)

	turns, err := repo.History(ctx, "s1", 50)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "before", turns[0].Content.Text())
}

func TestDB_ReplaceKeepsServingOnSwapFailure(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	err := db.Replace(ctx, func(string) error { return fmt.Errorf("download failed") })
	require.EqualError(t, err, "download failed")

	require.NoError(t, repo.Ping(ctx))
}
