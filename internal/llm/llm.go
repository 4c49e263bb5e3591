// Package llm talks to chat-completion providers.
//
// Go code builds the turns and returns the raw text; every judgment about
// what the text means is made by the caller's extractors. Providers are
// stateless: a logical conversation carries its own history (see
// Conversation) and resends it on every call.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/timvw/reel-judge/internal/model"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty response from model")

// Chatter sends an ordered list of turns to a model and returns its reply.
type Chatter interface {
	// Chat sends the system prompt plus turns and returns the assistant reply.
	// turns must be non-empty and alternate user/assistant, ending with user.
	Chat(ctx context.Context, system string, turns []model.Turn) (*Reply, error)

	// Provider returns the provider name (e.g., "anthropic", "openai").
	Provider() string

	// Model returns the model name used for chat.
	Model() string
}

// Reply is the assistant answer to one Chat call.
type Reply struct {
	Text  string
	Usage model.TokenUsage
}

// CallError describes a failed provider call.
type CallError struct {
	Provider string
	// StatusCode is the HTTP status returned by the provider, 0 when the call
	// never got a response (network failure, timeout).
	StatusCode int
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API call failed (HTTP %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s API call failed: %v", e.Provider, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient.
func (e *CallError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == http.StatusConflict,
		e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is worth another attempt.
// Empty responses are retried, they are usually provider hiccups.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Retryable()
	}
	return false
}

func checkTurns(turns []model.Turn) error {
	if len(turns) == 0 {
		return fmt.Errorf("no turns to send")
	}
	if last := turns[len(turns)-1]; last.Role != model.RoleUser {
		return fmt.Errorf("last turn must be from the user, got %q", last.Role)
	}
	return nil
}
