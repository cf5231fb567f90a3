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

// geminiClient requires a mime-type plus an optional schema hint:
// generationConfig.responseMimeType = "application/json" and, when a schema
// is supplied, responseSchema carries it through verbatim.
type geminiClient struct {
	cfg        Config
	httpClient *http.Client
}

func newGeminiClient(cfg Config) *geminiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &geminiClient{cfg: cfg, httpClient: &http.Client{Timeout: 60 * time.Second}}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64                `json:"temperature"`
	MaxOutputTokens  int                    `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string                 `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]interface{} `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  geminiGenerationConfig  `json:"generationConfig"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiErrorObj   `json:"error,omitempty"`
}

type geminiErrorObj struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *geminiClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return c.call(ctx, systemPrompt, userMessage, "", nil)
}

func (c *geminiClient) CompleteJSON(ctx context.Context, systemPrompt, userMessage string, schema map[string]interface{}) (map[string]interface{}, error) {
	text, err := c.call(ctx, systemPrompt, userMessage, "application/json", schema)
	if err != nil {
		return nil, err
	}
	return ExtractJSON("gemini", text)
}

func (c *geminiClient) call(ctx context.Context, systemPrompt, userMessage, mimeType string, schema map[string]interface{}) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: userMessage}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      c.cfg.Temperature,
			MaxOutputTokens:  c.cfg.MaxTokens,
			ResponseMimeType: mimeType,
			ResponseSchema:   schema,
		},
	}
	if systemPrompt != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.ModelName, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", newAuthError("gemini", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", newRateLimitError("gemini")
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", newResponseError("gemini", string(body))
	}
	if parsed.Error != nil {
		return "", newResponseError("gemini", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
