package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// NewLogger builds a structured logger from configuration: JSON or text
// handler, routed to stdout/stderr/file, with RFC3339 timestamps.
func NewLogger(cfg *Config) (*slog.Logger, error) {
	level := parseLogLevel(cfg.Logging.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.Logging.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var output *os.File
	switch cfg.Logging.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	case "file":
		if cfg.Logging.FilePath == "" {
			return nil, fmt.Errorf("file path required when logging output is file")
		}
		f, err := os.OpenFile(cfg.Logging.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = f
	default:
		output = os.Stdout
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RunContext carries per-run identifiers through context.Context so every
// log line emitted during a run can be correlated, the way the teacher's
// RequestContext does for HTTP requests.
type RunContext struct {
	RunID     string
	SessionID string
	Iteration int
	Operation string
	StartTime time.Time
}

type runContextKey struct{}

// WithRunContext attaches a RunContext to ctx.
func WithRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// GetRunContext retrieves the RunContext attached to ctx, if any.
func GetRunContext(ctx context.Context) (*RunContext, bool) {
	rc, ok := ctx.Value(runContextKey{}).(*RunContext)
	return rc, ok
}

// NewRunContext starts a RunContext for a freshly started run.
func NewRunContext(runID, operation string) *RunContext {
	return &RunContext{RunID: runID, Operation: operation, StartTime: time.Now()}
}

// LogWithContext logs at the given level, attaching run correlation fields
// from ctx when present.
func LogWithContext(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, args ...any) {
	if rc, ok := GetRunContext(ctx); ok {
		args = append(args,
			slog.String("run_id", rc.RunID),
			slog.String("operation", rc.Operation),
			slog.Int("iteration", rc.Iteration),
			slog.Duration("elapsed", time.Since(rc.StartTime)),
		)
		if rc.SessionID != "" {
			args = append(args, slog.String("session_id", rc.SessionID))
		}
	}
	logger.Log(ctx, level, msg, args...)
}

// NewRunID generates a fresh run identifier via a real UUID, rather than the
// teacher's own time.Now().UnixNano()-seeded generateRandomString helper.
func NewRunID() string {
	return uuid.NewString()
}
