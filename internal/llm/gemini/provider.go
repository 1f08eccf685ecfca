package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/filechat/internal/config"
	"github.com/Rrens/filechat/internal/domain"
	"github.com/Rrens/filechat/internal/llm"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type Provider struct {
	apiKey string
	model  string
}

func NewProvider(cfg config.GeminiConfig) *Provider {
	return &Provider{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
	}
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) AvailableModels() []string {
	return []string{
		"gemini-2.5-flash",
		"gemini-2.5-pro",
		"gemini-1.5-flash",
		"gemini-1.5-pro",
	}
}

func (p *Provider) DefaultModel() string {
	if p.model != "" {
		return p.model
	}
	return "gemini-2.5-flash"
}

func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

// toParts maps block content to genai parts; images become inline blobs
func toParts(c domain.Content) ([]genai.Part, error) {
	if !c.IsStructured() {
		return []genai.Part{genai.Text(c.Text())}, nil
	}

	parts := make([]genai.Part, 0, len(c.BlockList()))
	for _, b := range c.BlockList() {
		switch b.Type {
		case domain.BlockText:
			parts = append(parts, genai.Text(b.Text))
		case domain.BlockImage:
			data, err := base64.StdEncoding.DecodeString(b.Source.Data)
			if err != nil {
				return nil, fmt.Errorf("invalid image data: %w", err)
			}
			format := strings.TrimPrefix(b.Source.MediaType, "image/")
			parts = append(parts, genai.ImageData(format, data))
		}
	}
	return parts, nil
}

func role(r domain.MessageRole) string {
	if r == domain.RoleAssistant {
		return "model"
	}
	return "user"
}

func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest, model string) (*llm.ChatResponse, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("gemini provider is not configured (missing API key)")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	if model == "" {
		model = p.DefaultModel()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	generativeModel := client.GenerativeModel(model)
	if req.System != "" {
		generativeModel.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if req.MaxTokens > 0 {
		generativeModel.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	// All but the last message form the chat history
	cs := generativeModel.StartChat()
	for _, m := range req.Messages[:len(req.Messages)-1] {
		parts, err := toParts(m.Content)
		if err != nil {
			return nil, err
		}
		cs.History = append(cs.History, &genai.Content{Role: role(m.Role), Parts: parts})
	}

	last, err := toParts(req.Messages[len(req.Messages)-1].Content)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := cs.SendMessage(ctx, last...)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return nil, fmt.Errorf("gemini generation error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from gemini")
	}

	var output string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			output += string(text)
		}
	}
	if output == "" {
		return nil, fmt.Errorf("empty response from gemini")
	}

	out := &llm.ChatResponse{
		Text:      output,
		Model:     model,
		LatencyMs: latency,
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return out, nil
}
