package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// RetryingGateway retries the operations of another Gateway when the
// database reports a transient failure (lost connection, lock contention,
// serialization conflict). Other errors are returned at once.
type RetryingGateway struct {
	next        Gateway
	maxAttempts uint
	logger      *zap.Logger

	// initialInterval is the first backoff delay.
	initialInterval time.Duration
}

// WithRetry wraps next so each call is tried up to maxAttempts times.
func WithRetry(next Gateway, maxAttempts uint, logger *zap.Logger) *RetryingGateway {
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingGateway{
		next:            next,
		maxAttempts:     maxAttempts,
		logger:          logger,
		initialInterval: 200 * time.Millisecond,
	}
}

// Read implements Gateway.
func (g *RetryingGateway) Read(ctx context.Context, dest any, table string, filter Filter, orderBy ...string) error {
	_, err := retry(ctx, g, "read", table, func() (struct{}, error) {
		return struct{}{}, g.next.Read(ctx, dest, table, filter, orderBy...)
	})
	return err
}

// Upsert implements Gateway.
func (g *RetryingGateway) Upsert(ctx context.Context, table string, record Record) (int64, error) {
	return retry(ctx, g, "upsert", table, func() (int64, error) {
		return g.next.Upsert(ctx, table, record)
	})
}

// Update implements Gateway.
func (g *RetryingGateway) Update(ctx context.Context, table string, filter Filter, patch Record) (int64, error) {
	return retry(ctx, g, "update", table, func() (int64, error) {
		return g.next.Update(ctx, table, filter, patch)
	})
}

// Delete implements Gateway.
func (g *RetryingGateway) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	return retry(ctx, g, "delete", table, func() (int64, error) {
		return g.next.Delete(ctx, table, filter)
	})
}

func retry[T any](ctx context.Context, g *RetryingGateway, op, table string, call func() (T, error)) (T, error) {
	operation := func() (T, error) {
		v, err := call()
		if err != nil && !IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = g.initialInterval

	v, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(g.maxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			g.logger.Warn("database call failed, retrying",
				zap.String("op", op),
				zap.String("table", table),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return v, perm.Unwrap()
	}
	return v, err
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", // connection exception
			"40", // transaction rollback: serialization failure, deadlock
			"53": // insufficient resources
			return true
		}
		return pqErr.Code == "57P03" // cannot connect now
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
