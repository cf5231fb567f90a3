// Package pipeline implements the six stages the Workflow Engine drives each
// iteration (SPEC_FULL.md §4.3–§4.8), grounded on
// internal/services/search_service.go's service-wraps-a-client shape.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"scifind-backend/internal/modelclient"
	"scifind-backend/internal/models"
)

const intentSystemPrompt = `You are a research intent parser. Given a researcher's free-text request,
extract the topic, a list of key concepts, the intent type (one of: survey,
method, dataset, baseline), and any year range, language, or result-count
constraints the text implies. Respond with a single JSON object with fields
"topic", "concepts", "intent_type", and "constraints" (an object with
optional "year_from", "year_to", "language", "max_results").`

// IntentParser implements the Intent Parser stage (SPEC_FULL.md §4.3).
type IntentParser struct {
	client       modelclient.Client
	domainSuffix string
	logger       *slog.Logger
}

func NewIntentParser(client modelclient.Client, domainSuffix string, logger *slog.Logger) *IntentParser {
	return &IntentParser{client: client, domainSuffix: domainSuffix, logger: logger}
}

var intentSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"topic":       map[string]interface{}{"type": "string"},
		"concepts":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"intent_type": map[string]interface{}{"type": "string"},
		"constraints": map[string]interface{}{"type": "object"},
	},
	"required": []string{"topic", "concepts", "intent_type"},
}

// Parse requests and validates a ParsedIntent. An intent-parse failure is
// fatal to the run (SPEC_FULL.md §4.9), so Parse returns the error, wrapped
// with an "intent parse" prefix, rather than degrading.
func (p *IntentParser) Parse(ctx context.Context, userText string) (models.ParsedIntent, error) {
	systemPrompt := intentSystemPrompt
	if p.domainSuffix != "" {
		systemPrompt += "\n\n" + p.domainSuffix
	}

	raw, err := p.client.CompleteJSON(ctx, systemPrompt, userText, intentSchema)
	if err != nil {
		return models.ParsedIntent{}, fmt.Errorf("intent parse: %w", err)
	}

	intent, err := decodeParsedIntent(raw)
	if err != nil {
		return models.ParsedIntent{}, fmt.Errorf("intent parse: %w", err)
	}
	if err := intent.Validate(); err != nil {
		return models.ParsedIntent{}, fmt.Errorf("intent parse: %w", err)
	}
	return intent, nil
}

func decodeParsedIntent(raw map[string]interface{}) (models.ParsedIntent, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return models.ParsedIntent{}, err
	}
	var intent models.ParsedIntent
	if err := json.Unmarshal(buf, &intent); err != nil {
		return models.ParsedIntent{}, err
	}
	return intent, nil
}
