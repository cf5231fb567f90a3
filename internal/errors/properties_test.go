package errors_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "scifind-backend/internal/errors"
)

// Property 12 (SPEC_FULL.md §8): total attempts for an operation that always
// fails transiently never exceed max_retries + 1.
func TestProperty_RetryExecutor_BoundsTotalAttempts(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("attempts <= max_attempts for an always-transient failure", prop.ForAll(
		func(maxAttempts int) bool {
			executor := apperrors.NewRetryExecutor(apperrors.RetryConfig{MaxAttempts: maxAttempts}, discardLogger())

			attempts := 0
			_ = executor.Execute(context.Background(), "op", func(attempt int) error {
				attempts++
				return apperrors.NewSearchTransientError("s", "always fails", 503, nil)
			})

			return attempts <= maxAttempts
		},
		gen.IntRange(1, 8),
	))

	properties.Property("a permanent error always stops after exactly one attempt", prop.ForAll(
		func(maxAttempts int) bool {
			executor := apperrors.NewRetryExecutor(apperrors.RetryConfig{MaxAttempts: maxAttempts}, discardLogger())

			attempts := 0
			_ = executor.Execute(context.Background(), "op", func(attempt int) error {
				attempts++
				return apperrors.NewSearchPermanentError("s", "never retry", 401)
			})

			return attempts == 1
		},
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}
