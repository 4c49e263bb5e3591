package llm

import (
	"context"
	"fmt"

	"github.com/timvw/reel-judge/internal/model"
	"google.golang.org/genai"
)

// GoogleChatter chats through the Gemini API.
type GoogleChatter struct {
	client      *genai.Client
	model       string
	maxTokens   int64
	temperature float64
}

// GoogleConfig holds configuration for the Gemini chatter.
type GoogleConfig struct {
	// BaseURL overrides the Gemini API endpoint.
	BaseURL string
	// APIKey is the Gemini API key.
	APIKey string
	// Model is the model name (e.g., "gemini-2.5-flash").
	Model string
	// MaxTokens is the maximum number of output tokens.
	MaxTokens int64
	// Temperature is the sampling temperature.
	Temperature float64
}

// NewGoogleChatter creates a Gemini chatter.
func NewGoogleChatter(ctx context.Context, cfg GoogleConfig) (*GoogleChatter, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &GoogleChatter{
		client:      client,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Provider returns "google".
func (c *GoogleChatter) Provider() string {
	return "google"
}

// Model returns the model name.
func (c *GoogleChatter) Model() string {
	return c.model
}

// Chat sends the conversation to the Gemini API.
func (c *GoogleChatter) Chat(ctx context.Context, system string, turns []model.Turn) (*Reply, error) {
	if err := checkTurns(turns); err != nil {
		return nil, err
	}

	ctx, span := startChatSpan(ctx, c.Provider(), c.model, c.maxTokens, system, turns)
	defer span.End()

	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.Role(genai.RoleUser)
		if t.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}

	temperature := float32(c.temperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(c.maxTokens),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		span.SetAttributes(errorType("api_error"))
		// The genai client does not expose a stable status type, so every
		// failure is treated as transient (StatusCode 0).
		return nil, &CallError{Provider: c.Provider(), Err: err}
	}

	text := resp.Text()
	if text == "" {
		span.SetAttributes(errorType("empty_response"))
		return nil, fmt.Errorf("google: %w", ErrEmptyResponse)
	}

	reply := &Reply{Text: text}
	if resp.UsageMetadata != nil {
		reply.Usage = model.TokenUsage{
			InputTokens:          int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens:         int64(resp.UsageMetadata.CandidatesTokenCount),
			CacheReadInputTokens: int64(resp.UsageMetadata.CachedContentTokenCount),
		}
	}
	finishReason := ""
	if len(resp.Candidates) > 0 {
		finishReason = string(resp.Candidates[0].FinishReason)
	}
	finishChatSpan(span, c.model, finishReason, reply)
	return reply, nil
}
