package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/timvw/reel-judge/internal/model"
)

// OpenAIChatter chats through an OpenAI-compatible Chat Completions API.
// Works with OpenAI, Azure OpenAI, and any OpenAI-compatible endpoint
// (LM Studio, Ollama, vLLM).
type OpenAIChatter struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

// OpenAIConfig holds configuration for the OpenAI chatter.
type OpenAIConfig struct {
	// BaseURL is the API endpoint.
	BaseURL string
	// APIKey is the API key.
	APIKey string
	// Model is the model name (e.g., "gpt-4o-mini").
	Model string
	// MaxTokens is the maximum number of completion tokens.
	MaxTokens int64
	// Temperature is the sampling temperature. 0 keeps verdicts stable.
	Temperature float64
	// ExtraHeaders are additional HTTP headers.
	ExtraHeaders map[string]string
}

// NewOpenAIChatter creates a new OpenAI-compatible chatter.
func NewOpenAIChatter(cfg OpenAIConfig) *OpenAIChatter {
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
	// Retries are handled by WithRetry so attempts are visible in one place.
	opts = append(opts, option.WithMaxRetries(0))

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &OpenAIChatter{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}
}

// Provider returns "openai".
func (c *OpenAIChatter) Provider() string {
	return "openai"
}

// Model returns the model name.
func (c *OpenAIChatter) Model() string {
	return c.model
}

// Chat sends the conversation to an OpenAI-compatible API.
func (c *OpenAIChatter) Chat(ctx context.Context, system string, turns []model.Turn) (*Reply, error) {
	if err := checkTurns(turns); err != nil {
		return nil, err
	}

	ctx, span := startChatSpan(ctx, c.Provider(), c.model, c.maxTokens, system, turns)
	defer span.End()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	for _, t := range turns {
		switch t.Role {
		case model.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(t.Content))
		case model.RoleSystem:
			messages = append(messages, openai.SystemMessage(t.Content))
		default:
			messages = append(messages, openai.UserMessage(t.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(c.maxTokens),
		Temperature:         openai.Float(c.temperature),
	})
	if err != nil {
		span.SetAttributes(errorType("api_error"))
		return nil, c.wrapError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		span.SetAttributes(errorType("empty_response"))
		return nil, fmt.Errorf("openai: %w", ErrEmptyResponse)
	}

	reply := &Reply{
		Text: resp.Choices[0].Message.Content,
		Usage: model.TokenUsage{
			InputTokens:          resp.Usage.PromptTokens,
			OutputTokens:         resp.Usage.CompletionTokens,
			CacheReadInputTokens: resp.Usage.PromptTokensDetails.CachedTokens,
		},
	}
	finishChatSpan(span, resp.Model, string(resp.Choices[0].FinishReason), reply)
	return reply, nil
}

func (c *OpenAIChatter) wrapError(err error) error {
	callErr := &CallError{Provider: c.Provider(), Err: err}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		callErr.StatusCode = apiErr.StatusCode
	}
	return callErr
}
