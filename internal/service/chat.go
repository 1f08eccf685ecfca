package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Rrens/filechat/internal/domain"
	"github.com/Rrens/filechat/internal/llm"
	"github.com/rs/zerolog/log"
)

// NoFileNote is appended when an upload asks about a file that never arrived
const NoFileNote = "Note: No file was uploaded for analysis."

// MessageTypeFile tags user turns that carried an attachment
const MessageTypeFile = "file"

// Enricher rewrites a chat message before it reaches the model
type Enricher interface {
	Enrich(ctx context.Context, message string) string
}

// SendInput is one user submission
type SendInput struct {
	Message  string
	File     *domain.ContentBlock
	FileName string
	// Upload marks submissions from the multipart endpoint
	Upload bool
}

// SendResult is the model reply plus the session length after persisting
type SendResult struct {
	Response           string `json:"response"`
	ConversationLength int    `json:"conversation_length"`
}

// ChatService relays a session's conversation to the chat model
type ChatService struct {
	turns        domain.TurnRepository
	llmRouter    *llm.Router
	enricher     Enricher
	systemPrompt string
	historyLimit int
	maxTokens    int
}

// NewChatService creates a new chat service
func NewChatService(turns domain.TurnRepository, llmRouter *llm.Router, historyLimit, maxTokens int) *ChatService {
	if historyLimit <= 0 {
		historyLimit = domain.DefaultHistoryLimit
	}
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	return &ChatService{
		turns:        turns,
		llmRouter:    llmRouter,
		systemPrompt: llm.SystemPrompt,
		historyLimit: historyLimit,
		maxTokens:    maxTokens,
	}
}

// WithEnricher installs a message enricher for plain chat
func (s *ChatService) WithEnricher(e Enricher) *ChatService {
	s.enricher = e
	return s
}

// WithSystemPrompt overrides the default system prompt
func (s *ChatService) WithSystemPrompt(prompt string) *ChatService {
	if prompt != "" {
		s.systemPrompt = prompt
	}
	return s
}

// Send validates and assembles the user turn, calls the model with the
// session history, then persists both turns.
func (s *ChatService) Send(ctx context.Context, sessionID string, in SendInput) (*SendResult, error) {
	if in.File == nil && in.Message == "" {
		if in.Upload {
			return nil, domain.NewValidationError("Please provide either a message or a file")
		}
		return nil, domain.NewValidationError("No message provided")
	}

	message := in.Message
	if !in.Upload && s.enricher != nil {
		message = s.enricher.Enrich(ctx, message)
	}
	content := assemble(message, in.File, in.Upload)

	history, err := s.turns.History(ctx, sessionID, s.historyLimit)
	if err != nil {
		return nil, asStorage("history", err)
	}

	provider, err := s.llmRouter.Default()
	if err != nil {
		return nil, &domain.UpstreamError{Provider: s.llmRouter.DefaultProvider(), Err: err}
	}

	messages := append(domain.Messages(history), domain.Message{Role: domain.RoleUser, Content: content})
	resp, err := provider.Chat(ctx, llm.ChatRequest{
		System:    s.systemPrompt,
		Messages:  messages,
		MaxTokens: s.maxTokens,
	}, "")
	if err != nil {
		return nil, &domain.UpstreamError{Provider: provider.Name(), Err: err}
	}

	log.Debug().
		Str("session_id", sessionID).
		Str("model", resp.Model).
		Int("history", len(history)).
		Int64("latency_ms", resp.LatencyMs).
		Msg("Model reply received")

	msgType := domain.DefaultMessageType
	if in.File != nil {
		msgType = MessageTypeFile
	}
	if err := s.turns.Append(ctx, domain.NewTurn{
		SessionID:   sessionID,
		Role:        domain.RoleUser,
		Content:     content,
		MessageType: msgType,
	}); err != nil {
		return nil, asStorage("append", err)
	}

	// The user turn is already stored; a dangling user turn is tolerated
	if err := s.turns.Append(ctx, domain.NewTurn{
		SessionID:   sessionID,
		Role:        domain.RoleAssistant,
		Content:     domain.Plain(resp.Text),
		MessageType: domain.DefaultMessageType,
	}); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to save assistant turn")
	}

	after, err := s.turns.History(ctx, sessionID, s.historyLimit)
	if err != nil {
		return nil, asStorage("history", err)
	}

	return &SendResult{
		Response:           resp.Text,
		ConversationLength: len(after),
	}, nil
}

// assemble builds the user turn content. A single text block collapses to
// a plain string.
func assemble(message string, file *domain.ContentBlock, upload bool) domain.Content {
	blocks := make([]domain.ContentBlock, 0, 2)
	if message != "" {
		blocks = append(blocks, domain.TextBlock(message))
	}

	if file != nil {
		blocks = append(blocks, *file)
	} else if upload {
		lower := strings.ToLower(message)
		if strings.Contains(lower, "file") || strings.Contains(lower, "analyze") {
			blocks = append(blocks, domain.TextBlock(NoFileNote))
		}
	}

	if len(blocks) == 1 && blocks[0].Type == domain.BlockText {
		return domain.Plain(blocks[0].Text)
	}
	return domain.Blocks(blocks...)
}

func asStorage(op string, err error) error {
	var se *domain.StorageError
	if errors.As(err, &se) {
		return err
	}
	return domain.WrapStorage(op, err)
}

// History returns the session's latest turns, oldest first
func (s *ChatService) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	turns, err := s.turns.History(ctx, sessionID, s.historyLimit)
	if err != nil {
		return nil, asStorage("history", err)
	}
	return turns, nil
}

// Clear drops the session's conversation
func (s *ChatService) Clear(ctx context.Context, sessionID string) error {
	if err := s.turns.Clear(ctx, sessionID); err != nil {
		return asStorage("clear", err)
	}
	return nil
}

// ListSessions returns every session, most recently active first
func (s *ChatService) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	sessions, err := s.turns.ListSessions(ctx)
	if err != nil {
		return nil, asStorage("list sessions", err)
	}
	return sessions, nil
}

// Ping sends a one-turn probe to the default provider without history
func (s *ChatService) Ping(ctx context.Context) (string, error) {
	provider, err := s.llmRouter.Default()
	if err != nil {
		return "", &domain.UpstreamError{Provider: s.llmRouter.DefaultProvider(), Err: err}
	}

	resp, err := provider.Chat(ctx, llm.ChatRequest{
		Messages:  []domain.Message{{Role: domain.RoleUser, Content: domain.Plain(llm.PingPrompt)}},
		MaxTokens: 50,
	}, "")
	if err != nil {
		return "", &domain.UpstreamError{Provider: provider.Name(), Err: err}
	}
	return resp.Text, nil
}
