package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go-funnel-metrics/internal/model"

	"go.uber.org/zap"
)

// Retrier re-runs a failing provider fetch with exponential backoff while
// the caller's context allows it.
type Retrier struct {
	config model.RetryConfig
	logger *zap.Logger
}

// NewRetrier creates a retrier for the given policy
func NewRetrier(config model.RetryConfig, logger *zap.Logger) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	return &Retrier{config: config, logger: logger}
}

// Do calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx ends. It returns the number of attempts made.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) (int, error) {
	attempts := 0
	for {
		attempts++
		err := fn(ctx)
		if err == nil {
			if attempts > 1 {
				r.logger.Info("retry: succeeded",
					zap.String("operation", operation),
					zap.Int("attempts", attempts),
				)
			}
			return attempts, nil
		}

		if attempts > r.config.MaxRetries || !r.IsRetryable(err) {
			return attempts, err
		}

		delay := r.Backoff(attempts)
		r.logger.Debug("retry: scheduling attempt",
			zap.String("operation", operation),
			zap.Int("attempt", attempts+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, ctx.Err()
		case <-timer.C:
		}
	}
}

// Backoff returns the delay before the attempt following attempt n (1-based)
func (r *Retrier) Backoff(n int) time.Duration {
	delay := time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(n-1)))
	if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}

// IsRetryable reports whether err matches one of the configured transient
// error substrings. Cancellation and unconfigured sources never retry.
func (r *Retrier) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrSourceNotConfigured) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, retryable := range r.config.RetryableErrors {
		if retryable != "" && strings.Contains(msg, strings.ToLower(retryable)) {
			return true
		}
	}
	return false
}
