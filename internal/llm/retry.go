package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/timvw/reel-judge/internal/model"
	"go.uber.org/zap"
)

// RetryConfig bounds how hard a call is retried.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts uint
	// Timeout bounds each individual attempt. Zero disables it.
	Timeout time.Duration
	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration
	// MaxInterval caps the backoff delay.
	MaxInterval time.Duration
}

// DefaultRetryConfig returns the retry policy used when nothing is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		Timeout:         2 * time.Minute,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// RetryingChatter retries transient failures of another Chatter with
// exponential backoff and bounds every attempt with a timeout.
type RetryingChatter struct {
	next   Chatter
	cfg    RetryConfig
	logger *zap.Logger
}

// WithRetry wraps next with the retry policy in cfg.
func WithRetry(next Chatter, cfg RetryConfig, logger *zap.Logger) *RetryingChatter {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = time.Second
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingChatter{next: next, cfg: cfg, logger: logger}
}

// Provider returns the wrapped provider name.
func (r *RetryingChatter) Provider() string { return r.next.Provider() }

// Model returns the wrapped model name.
func (r *RetryingChatter) Model() string { return r.next.Model() }

// Chat calls the wrapped chatter until it succeeds, fails permanently, or
// runs out of attempts. Cancelling ctx stops immediately.
func (r *RetryingChatter) Chat(ctx context.Context, system string, turns []model.Turn) (*Reply, error) {
	operation := func() (*Reply, error) {
		if err := ctx.Err(); err != nil {
			return nil, backoff.Permanent(err)
		}
		reply, err := r.attempt(ctx, system, turns)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		if !IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.cfg.InitialInterval
	expo.MaxInterval = r.cfg.MaxInterval

	reply, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(r.cfg.MaxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.logger.Warn("model call failed, retrying",
				zap.String("provider", r.next.Provider()),
				zap.String("model", r.next.Model()),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Unwrap()
		}
		return nil, err
	}
	return reply, nil
}

func (r *RetryingChatter) attempt(ctx context.Context, system string, turns []model.Turn) (*Reply, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	return r.next.Chat(ctx, system, turns)
}
