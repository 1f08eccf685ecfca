package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Rrens/filechat/internal/domain"
	"github.com/rs/zerolog/log"
)

// TurnRepository implements domain.TurnRepository over database/sql
type TurnRepository struct {
	db  *DB
	now func() time.Time
}

// NewTurnRepository creates a new turn repository
func NewTurnRepository(db *DB) *TurnRepository {
	return &TurnRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
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
		INSERT INTO conversations (session_id, role, content, message_type, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	err = r.db.with(func(conn *sql.DB) error {
		_, err := conn.ExecContext(ctx, query, turn.SessionID, string(turn.Role), raw, messageType, r.now())
		return err
	})
	if err != nil {
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
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	var turns []domain.Turn
	err := r.db.with(func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, query, sessionID, limit)
		if err != nil {
			return fmt.Errorf("failed to list turns: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				t         domain.Turn
				role, raw string
				createdAt timestamp
			)
			if err := rows.Scan(&t.ID, &t.SessionID, &role, &raw, &t.MessageType, &createdAt); err != nil {
				return fmt.Errorf("failed to scan turn: %w", err)
			}
			t.Role = domain.MessageRole(role)
			t.CreatedAt = createdAt.Time
			t.Content = decode(t.ID, raw)
			turns = append(turns, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, domain.WrapStorage("history", err)
	}

	// Reverse to return chronological order (oldest first)
	domain.ReverseTurns(turns)

	return turns, nil
}

// Count returns the number of stored turns for a session
func (r *TurnRepository) Count(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.with(func(conn *sql.DB) error {
		return conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM conversations WHERE session_id = ?`, sessionID,
		).Scan(&n)
	})
	if err != nil {
		return 0, domain.WrapStorage("count", fmt.Errorf("failed to count turns: %w", err))
	}
	return n, nil
}

// Clear deletes every turn of a session
func (r *TurnRepository) Clear(ctx context.Context, sessionID string) error {
	err := r.db.with(func(conn *sql.DB) error {
		_, err := conn.ExecContext(ctx, `DELETE FROM conversations WHERE session_id = ?`, sessionID)
		return err
	})
	if err != nil {
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

	sessions := []domain.SessionSummary{}
	err := r.db.with(func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				s           domain.SessionSummary
				first, last timestamp
			)
			if err := rows.Scan(&s.SessionID, &s.MessageCount, &first, &last); err != nil {
				return fmt.Errorf("failed to scan session: %w", err)
			}
			s.FirstMessage = first.Time
			s.LastMessage = last.Time
			sessions = append(sessions, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, domain.WrapStorage("list sessions", err)
	}

	return sessions, nil
}

// Ping verifies the store is reachable
func (r *TurnRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func decode(id int64, raw string) domain.Content {
	res := domain.DecodeContent(raw)
	if res.Err != nil {
		log.Warn().Err(res.Err).Int64("turn_id", id).Msg("Stored content is not a valid block list, using raw text")
	}
	return res.Content
}

// timestamp scans the time representations the drivers hand back. SQLite
// returns aggregates over DATETIME columns as text.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}
