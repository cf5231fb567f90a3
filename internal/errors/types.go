package errors

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorType categorizes an error for retry/propagation decisions.
type ErrorType string

const (
	// ErrorTypeModelAuth is a fatal authentication failure against a model backend.
	ErrorTypeModelAuth ErrorType = "model_auth"

	// ErrorTypeModelRateLimit means the model backend throttled the caller.
	ErrorTypeModelRateLimit ErrorType = "model_rate_limit"

	// ErrorTypeModelResponse means the model returned something the caller
	// could not parse or validate.
	ErrorTypeModelResponse ErrorType = "model_response"

	// ErrorTypeSearchPermanent is a non-retryable search API failure (401/403).
	ErrorTypeSearchPermanent ErrorType = "search_permanent"

	// ErrorTypeSearchTransient is a retryable search API failure (429/500/503,
	// or no response at all).
	ErrorTypeSearchTransient ErrorType = "search_transient"

	// ErrorTypeValidation means a value failed a schema or invariant check.
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeCancellation means the caller's context was cancelled.
	ErrorTypeCancellation ErrorType = "cancellation"
)

// AppError is a structured error carrying enough context to decide how to
// recover from it without string-matching the message.
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Stack     string                 `json:"stack,omitempty"`
	Component string                 `json:"component"`
	Operation string                 `json:"operation"`
	Timestamp time.Time              `json:"timestamp"`
	Retryable bool                   `json:"retryable"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Code, e.Message)
}

// Is implements error matching by type+code rather than identity.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// Unwrap exposes the underlying cause, if any.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// ErrorBuilder assembles an AppError one field at a time.
type ErrorBuilder struct {
	err *AppError
}

// NewError starts building an AppError of the given type.
func NewError(errorType ErrorType, code, message string) *ErrorBuilder {
	return &ErrorBuilder{
		err: &AppError{
			Type:      errorType,
			Code:      code,
			Message:   message,
			Details:   make(map[string]interface{}),
			Timestamp: time.Now(),
			Retryable: errorType == ErrorTypeSearchTransient || errorType == ErrorTypeModelRateLimit,
		},
	}
}

func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.err.Cause = cause
	return b
}

func (b *ErrorBuilder) WithComponent(component string) *ErrorBuilder {
	b.err.Component = component
	return b
}

func (b *ErrorBuilder) WithOperation(operation string) *ErrorBuilder {
	b.err.Operation = operation
	return b
}

func (b *ErrorBuilder) WithDetail(key string, value interface{}) *ErrorBuilder {
	b.err.Details[key] = value
	return b
}

func (b *ErrorBuilder) WithStack() *ErrorBuilder {
	b.err.Stack = captureStack()
	return b
}

func (b *ErrorBuilder) Retryable(retryable bool) *ErrorBuilder {
	b.err.Retryable = retryable
	return b
}

func (b *ErrorBuilder) Build() *AppError {
	return b.err
}

// Predefined constructors, one per taxonomy entry in SPEC_FULL.md §7.

func NewModelAuthError(component, message string, cause error) *AppError {
	return NewError(ErrorTypeModelAuth, "MODEL_AUTH_ERROR", message).
		WithComponent(component).
		WithCause(cause).
		Retryable(false).
		Build()
}

func NewModelRateLimitError(component, message string) *AppError {
	return NewError(ErrorTypeModelRateLimit, "MODEL_RATE_LIMIT", message).
		WithComponent(component).
		Retryable(true).
		Build()
}

func NewModelResponseError(component, message string, rawPrefix string) *AppError {
	return NewError(ErrorTypeModelResponse, "MODEL_RESPONSE_ERROR", message).
		WithComponent(component).
		WithDetail("raw_prefix", rawPrefix).
		Retryable(false).
		Build()
}

func NewSearchPermanentError(component, message string, statusCode int) *AppError {
	return NewError(ErrorTypeSearchPermanent, "SEARCH_PERMANENT", message).
		WithComponent(component).
		WithDetail("status_code", statusCode).
		Retryable(false).
		Build()
}

func NewSearchTransientError(component, message string, statusCode int, cause error) *AppError {
	return NewError(ErrorTypeSearchTransient, "SEARCH_TRANSIENT", message).
		WithComponent(component).
		WithDetail("status_code", statusCode).
		WithCause(cause).
		Retryable(true).
		Build()
}

func NewValidationError(component, message, field string, value interface{}) *AppError {
	return NewError(ErrorTypeValidation, "VALIDATION_ERROR", message).
		WithComponent(component).
		WithDetail("field", field).
		WithDetail("rejected_value", value).
		Retryable(false).
		Build()
}

func NewCancellationError(component string) *AppError {
	return NewError(ErrorTypeCancellation, "CANCELLED", "operation cancelled").
		WithComponent(component).
		Retryable(false).
		Build()
}

// IsPermanent reports whether err is an *AppError explicitly marked
// non-retryable, used by callers deciding whether to abandon a multi-step
// operation (e.g. paginated search) on the first failure rather than keep
// the results collected so far.
func IsPermanent(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && !appErr.Retryable
}

// captureStack captures the current stack trace for diagnostics.
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var buf strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		fmt.Fprintf(&buf, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}

	return buf.String()
}
