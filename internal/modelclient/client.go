// Package modelclient provides a uniform contract over heterogeneous
// text-generation backends (SPEC_FULL.md §4.2), grounded on the hand-rolled
// per-backend HTTP client pattern used throughout
// BaSui01-agentflow/providers/{anthropic,gemini,...}/provider.go.
package modelclient

import "context"

// Client is the polymorphic contract every backend implements.
type Client interface {
	// Complete returns the model's text response, or "" if the response was
	// empty. It never returns a nil string value.
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)

	// CompleteJSON returns a parsed JSON object. schema is a hint the
	// backend may or may not honor natively.
	CompleteJSON(ctx context.Context, systemPrompt, userMessage string, schema map[string]interface{}) (map[string]interface{}, error)
}

// Config configures a backend client, taken from SPEC_FULL.md §6's
// model.* configuration options.
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	ModelName   string
	Temperature float64
	MaxTokens   int
}

// New constructs the Client for cfg.Provider ("openai", "claude", or "gemini").
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return newOpenAIClient(cfg), nil
	case "claude":
		return newClaudeClient(cfg), nil
	case "gemini":
		return newGeminiClient(cfg), nil
	default:
		return nil, newUnknownProviderError(cfg.Provider)
	}
}
