package llm

import (
	"context"

	"github.com/Rrens/filechat/internal/domain"
)

// ChatRequest is one stateless call to a chat model
type ChatRequest struct {
	System    string
	Messages  []domain.Message
	MaxTokens int
}

// ChatResponse contains the model reply
type ChatResponse struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Chat sends the conversation and returns the first text reply
	Chat(ctx context.Context, req ChatRequest, model string) (*ChatResponse, error)
}
