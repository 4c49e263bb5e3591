package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/timvw/reel-judge/internal/model"
)

// AnthropicChatter chats through the Anthropic Messages API.
// Works with both direct Anthropic API and Azure AI Foundry.
type AnthropicChatter struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// AnthropicConfig holds configuration for the Anthropic chatter.
type AnthropicConfig struct {
	// BaseURL is the API endpoint (e.g., "https://resource.services.ai.azure.com/anthropic/v1").
	BaseURL string
	// APIKey is the API key.
	APIKey string
	// Model is the model name (e.g., "claude-haiku-4-5").
	Model string
	// MaxTokens is the maximum number of output tokens.
	MaxTokens int64
	// Temperature is the sampling temperature.
	Temperature float64
	// ExtraHeaders are additional HTTP headers (e.g., "api-key" for Azure).
	ExtraHeaders map[string]string
}

// NewAnthropicChatter creates a new Anthropic chatter.
func NewAnthropicChatter(cfg AnthropicConfig) *AnthropicChatter {
	var opts []option.RequestOption

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	for k, v := range cfg.ExtraHeaders {
		opts = append(opts, option.WithHeader(k, v))
	}
	opts = append(opts, option.WithMaxRetries(0))

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicChatter{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}
}

// Provider returns "anthropic".
func (c *AnthropicChatter) Provider() string {
	return "anthropic"
}

// Model returns the model name.
func (c *AnthropicChatter) Model() string {
	return c.model
}

// Chat sends the conversation to the Anthropic API.
func (c *AnthropicChatter) Chat(ctx context.Context, system string, turns []model.Turn) (*Reply, error) {
	if err := checkTurns(turns); err != nil {
		return nil, err
	}

	ctx, span := startChatSpan(ctx, c.Provider(), c.model, c.maxTokens, system, turns)
	defer span.End()

	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(t.Content)
		if t.Role == model.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Messages:    messages,
		Temperature: anthropic.Float(c.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		span.SetAttributes(errorType("api_error"))
		return nil, c.wrapError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		span.SetAttributes(errorType("empty_response"))
		return nil, fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}

	reply := &Reply{
		Text: text.String(),
		Usage: model.TokenUsage{
			InputTokens:              resp.Usage.InputTokens,
			OutputTokens:             resp.Usage.OutputTokens,
			CacheReadInputTokens:     resp.Usage.CacheReadInputTokens,
			CacheCreationInputTokens: resp.Usage.CacheCreationInputTokens,
		},
	}
	finishChatSpan(span, c.model, string(resp.StopReason), reply)
	return reply, nil
}

func (c *AnthropicChatter) wrapError(err error) error {
	callErr := &CallError{Provider: c.Provider(), Err: err}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		callErr.StatusCode = apiErr.StatusCode
	}
	return callErr
}
