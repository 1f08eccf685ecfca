package postgres

import (
	"context"
	"fmt"

	"github.com/Rrens/filechat/internal/domain"
	"github.com/rs/zerolog/log"
)

// TurnRepository implements domain.TurnRepository
type TurnRepository struct {
	db *DB
}

// NewTurnRepository creates a new turn repository
func NewTurnRepository(db *DB) *TurnRepository {
	return &TurnRepository{db: db}
}

// Append inserts a new turn
func (r *TurnRepository) Append(ctx context.Context, turn domain.NewTurn) error {
	raw, err := domain.EncodeContent(turn.Content)
	if err != nil {
		return domain.WrapStorage("append", err)
	}

	messageType := turn.MessageType
	if messageType == "" {
		messageType = domain.DefaultMessageType
	}

	query := `
		INSERT INTO conversations (session_id, role, content, message_type)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.db.Pool.Exec(ctx, query, turn.SessionID, string(turn.Role), raw, messageType); err != nil {
		return domain.WrapStorage("append", fmt.Errorf("failed to insert turn: %w", err))
	}

	return nil
}

// History retrieves the latest turns for a session in chronological order
func (r *TurnRepository) History(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	query := `
		SELECT id, session_id, role, content, message_type, created_at
		FROM conversations
		WHERE session_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, domain.WrapStorage("history", fmt.Errorf("failed to list turns: %w", err))
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var (
			t         domain.Turn
			role, raw string
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &role, &raw, &t.MessageType, &t.CreatedAt); err != nil {
			return nil, domain.WrapStorage("history", fmt.Errorf("failed to scan turn: %w", err))
		}
		t.Role = domain.MessageRole(role)

		res := domain.DecodeContent(raw)
		if res.Err != nil {
			log.Warn().Err(res.Err).Int64("turn_id", t.ID).Msg("Stored content is not a valid block list, using raw text")
		}
		t.Content = res.Content

		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStorage("history", err)
	}

	// Reverse to return chronological order (oldest first)
	domain.ReverseTurns(turns)

	return turns, nil
}

// Count returns the number of stored turns for a session
func (r *TurnRepository) Count(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM conversations WHERE session_id = $1`, sessionID).Scan(&n)
	if err != nil {
		return 0, domain.WrapStorage("count", fmt.Errorf("failed to count turns: %w", err))
	}
	return n, nil
}

// Clear deletes every turn of a session
func (r *TurnRepository) Clear(ctx context.Context, sessionID string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM conversations WHERE session_id = $1`, sessionID); err != nil {
		return domain.WrapStorage("clear", fmt.Errorf("failed to clear turns: %w", err))
	}
	return nil
}

// ListSessions summarizes every session with at least one turn
func (r *TurnRepository) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	query := `
		SELECT session_id, COUNT(*), MIN(created_at), MAX(created_at)
		FROM conversations
		GROUP BY session_id
		ORDER BY MAX(created_at) DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, domain.WrapStorage("list sessions", fmt.Errorf("failed to list sessions: %w", err))
	}
	defer rows.Close()

	sessions := []domain.SessionSummary{}
	for rows.Next() {
		var s domain.SessionSummary
		if err := rows.Scan(&s.SessionID, &s.MessageCount, &s.FirstMessage, &s.LastMessage); err != nil {
			return nil, domain.WrapStorage("list sessions", fmt.Errorf("failed to scan session: %w", err))
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStorage("list sessions", err)
	}

	return sessions, nil
}

// Ping verifies the store is reachable
func (r *TurnRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
