package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// claudeClient has no native JSON mode: it appends a JSON-only instruction
// to the system prompt and relies on the shared tolerant extractor, matching
// Anthropic's Messages API shape (system is a top-level field, not a
// message) as grounded in
// BaSui01-agentflow/providers/anthropic/provider.go's claudeRequest.
type claudeClient struct {
	cfg        Config
	httpClient *http.Client
}

func newClaudeClient(cfg Config) *claudeClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	return &claudeClient{cfg: cfg, httpClient: &http.Client{Timeout: 60 * time.Second}}
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type claudeResponse struct {
	Content []claudeContentBlock `json:"content"`
	Error   *claudeErrorObj      `json:"error,omitempty"`
}

type claudeErrorObj struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const jsonOnlyInstruction = "\n\nRespond with a single JSON object only, no prose, no markdown fences unless explicitly requested."

func (c *claudeClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return c.call(ctx, systemPrompt, userMessage)
}

func (c *claudeClient) CompleteJSON(ctx context.Context, systemPrompt, userMessage string, schema map[string]interface{}) (map[string]interface{}, error) {
	text, err := c.call(ctx, systemPrompt+jsonOnlyInstruction, userMessage)
	if err != nil {
		return nil, err
	}
	return ExtractJSON("claude", text)
}

func (c *claudeClient) call(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	reqBody := claudeRequest{
		Model:       c.cfg.ModelName,
		System:      systemPrompt,
		Messages:    []claudeMessage{{Role: "user", Content: userMessage}},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal claude request: %w", err)
	}

	url := c.cfg.BaseURL + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build claude request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("claude request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read claude response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", newAuthError("claude", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", newRateLimitError("claude")
	}

	var parsed claudeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", newResponseError("claude", string(body))
	}
	if parsed.Error != nil {
		return "", newResponseError("claude", parsed.Error.Message)
	}
	if len(parsed.Content) == 0 {
		return "", nil
	}
	return parsed.Content[0].Text, nil
}
