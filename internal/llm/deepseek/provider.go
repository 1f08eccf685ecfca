// Package deepseek wires DeepSeek through the OpenAI-compatible client.
package deepseek

import (
	"time"

	"github.com/Rrens/filechat/internal/llm/openai"
)

const baseURL = "https://api.deepseek.com/v1"

// NewProvider creates a new DeepSeek provider
func NewProvider(apiKey, defaultModel string, timeout time.Duration) *openai.Provider {
	if defaultModel == "" {
		defaultModel = "deepseek-chat"
	}
	return openai.NewCompatible("deepseek", apiKey, defaultModel, baseURL, timeout, []string{
		"deepseek-chat",
		"deepseek-reasoner",
	})
}
