package domain

import (
	"context"
	"time"
)

// MessageRole represents the sender of a turn
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Valid reports whether the role is one the store accepts
func (r MessageRole) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// DefaultMessageType is stored when the caller does not tag a turn
const DefaultMessageType = "text"

// DefaultHistoryLimit is the number of turns sent back to the model
const DefaultHistoryLimit = 50

// Turn is one persisted unit of conversation
type Turn struct {
	ID          int64       `json:"id,omitempty"`
	SessionID   string      `json:"session_id"`
	Role        MessageRole `json:"role"`
	Content     Content     `json:"content"`
	MessageType string      `json:"message_type"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Message is the role/content pair the chat API consumes
type Message struct {
	Role    MessageRole `json:"role"`
	Content Content     `json:"content"`
}

// Messages strips storage metadata from turns, keeping order
func Messages(turns []Turn) []Message {
	out := make([]Message, len(turns))
	for i, t := range turns {
		out[i] = Message{Role: t.Role, Content: t.Content}
	}
	return out
}

// NewTurn is the input to TurnRepository.Append
type NewTurn struct {
	SessionID   string
	Role        MessageRole
	Content     Content
	MessageType string
}

// TurnRepository is the append-only, session-keyed message store
type TurnRepository interface {
	// Append stores one turn with a server-assigned timestamp
	Append(ctx context.Context, turn NewTurn) error

	// History returns the latest limit turns, oldest first
	History(ctx context.Context, sessionID string, limit int) ([]Turn, error)

	// Count returns the number of stored turns for the session
	Count(ctx context.Context, sessionID string) (int, error)

	// Clear deletes every turn of the session. Clearing an unknown session succeeds.
	Clear(ctx context.Context, sessionID string) error

	// ListSessions aggregates all sessions, most recently active first
	ListSessions(ctx context.Context) ([]SessionSummary, error)

	// Ping verifies the store is reachable
	Ping(ctx context.Context) error
}

// ReverseTurns reverses a newest-first page in place
func ReverseTurns(turns []Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}
