package errors

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"
)

// RetryConfig configures the search client's retry behavior (SPEC_FULL.md §4.1).
type RetryConfig struct {
	MaxAttempts int `json:"max_attempts"`
}

// DefaultRetryConfig matches the spec's literal default: up to 3 attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3}
}

// RetryStats tracks aggregate retry behavior for observability.
type RetryStats struct {
	TotalAttempts     int64
	SuccessfulRetries int64
	FailedRetries     int64
}

// RetryExecutor retries an operation classified as SearchTransient using the
// spec's literal backoff: min(16, 2^attempt) + uniform(0,1) seconds.
// Permanent errors (SearchPermanent) are never retried.
type RetryExecutor struct {
	config RetryConfig
	logger *slog.Logger
	mu     sync.Mutex
	stats  RetryStats
}

func NewRetryExecutor(config RetryConfig, logger *slog.Logger) *RetryExecutor {
	return &RetryExecutor{config: config, logger: logger}
}

// Execute runs fn, retrying while it returns a retryable *AppError up to
// config.MaxAttempts total attempts. It returns the last error encountered
// once attempts are exhausted or a permanent error is returned.
func (re *RetryExecutor) Execute(ctx context.Context, operation string, fn func(attempt int) error) error {
	var lastErr error

	for attempt := 1; attempt <= re.config.MaxAttempts; attempt++ {
		re.mu.Lock()
		re.stats.TotalAttempts++
		re.mu.Unlock()

		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				re.mu.Lock()
				re.stats.SuccessfulRetries++
				re.mu.Unlock()
			}
			return nil
		}

		lastErr = err
		appErr, ok := err.(*AppError)
		if !ok || !appErr.Retryable || attempt == re.config.MaxAttempts {
			break
		}

		delay := backoffDelay(attempt)
		re.logger.Warn("search request failed, retrying",
			slog.String("operation", operation),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
			slog.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return NewCancellationError(operation)
		case <-time.After(delay):
		}
	}

	re.mu.Lock()
	re.stats.FailedRetries++
	re.mu.Unlock()

	return lastErr
}

// Stats returns a snapshot of retry counters.
func (re *RetryExecutor) Stats() RetryStats {
	re.mu.Lock()
	defer re.mu.Unlock()
	return re.stats
}

// backoffDelay implements min(16, 2^attempt) + uniform(0,1) seconds.
func backoffDelay(attempt int) time.Duration {
	capped := math.Min(16, math.Pow(2, float64(attempt)))
	jitter := rand.Float64()
	return time.Duration((capped + jitter) * float64(time.Second))
}
