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

// openaiClient is the backend with native JSON mode: it sets
// response_format={"type": "json_object"} and trusts the API to return a
// bare JSON object, no fenced-code tolerance needed on the happy path (the
// shared extractor is still used since a degraded response can still arrive
// wrapped in prose).
type openaiClient struct {
	cfg        Config
	httpClient *http.Client
}

func newOpenAIClient(cfg Config) *openaiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &openaiClient{cfg: cfg, httpClient: &http.Client{Timeout: 60 * time.Second}}
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model          string              `json:"model"`
	Messages       []openaiMessage     `json:"messages"`
	Temperature    float64             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *openaiResponseFmt  `json:"response_format,omitempty"`
}

type openaiResponseFmt struct {
	Type string `json:"type"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}

type openaiResponse struct {
	Choices []openaiChoice  `json:"choices"`
	Error   *openaiErrorObj `json:"error,omitempty"`
}

type openaiErrorObj struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *openaiClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return c.call(ctx, systemPrompt, userMessage, nil)
}

func (c *openaiClient) CompleteJSON(ctx context.Context, systemPrompt, userMessage string, schema map[string]interface{}) (map[string]interface{}, error) {
	text, err := c.call(ctx, systemPrompt, userMessage, &openaiResponseFmt{Type: "json_object"})
	if err != nil {
		return nil, err
	}
	return ExtractJSON("openai", text)
}

func (c *openaiClient) call(ctx context.Context, systemPrompt, userMessage string, format *openaiResponseFmt) (string, error) {
	reqBody := openaiRequest{
		Model: c.cfg.ModelName,
		Messages: []openaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		Temperature:    c.cfg.Temperature,
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: format,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal openai request: %w", err)
	}

	url := c.cfg.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read openai response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", newAuthError("openai", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", newRateLimitError("openai")
	}

	var parsed openaiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", newResponseError("openai", string(body))
	}
	if parsed.Error != nil {
		return "", newResponseError("openai", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}
