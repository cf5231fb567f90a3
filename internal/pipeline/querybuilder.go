package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"scifind-backend/internal/modelclient"
	"scifind-backend/internal/models"
)

const queryBuilderSystemPrompt = `You are a search strategy planner. Given a parsed research intent, the
strategies tried in previous iterations, and any reviewer feedback, produce
2 to 4 search queries and choose which sources to search. Respond with a
single JSON object with fields "queries" (array of {"keywords": [...],
"boolean_query": "..."}), "sources" (array of source names), and "filters"
(object with optional "year_from", "year_to", "language", "max_results").`

var queryBuilderSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"queries": map[string]interface{}{"type": "array"},
		"sources": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"filters": map[string]interface{}{"type": "object"},
	},
	"required": []string{"queries", "sources"},
}

// QueryBuilder implements the Query Builder stage (SPEC_FULL.md §4.4).
type QueryBuilder struct {
	client           modelclient.Client
	domainSuffix     string
	availableSources []string
	logger           *slog.Logger
}

func NewQueryBuilder(client modelclient.Client, domainSuffix string, availableSources []string, logger *slog.Logger) *QueryBuilder {
	return &QueryBuilder{client: client, domainSuffix: domainSuffix, availableSources: availableSources, logger: logger}
}

// Build composes a prompt from input, requests a strategy, sanitizes it, and
// falls back to a deterministic strategy on any model or validation failure
// so the pipeline always makes forward progress.
func (b *QueryBuilder) Build(ctx context.Context, input models.QueryBuilderInput) models.SearchStrategy {
	systemPrompt := queryBuilderSystemPrompt
	if b.domainSuffix != "" {
		systemPrompt += "\n\n" + b.domainSuffix
	}
	userMessage := b.renderUserMessage(input)

	raw, err := b.client.CompleteJSON(ctx, systemPrompt, userMessage, queryBuilderSchema)
	if err != nil {
		b.logger.Warn("query builder model call failed, using deterministic fallback", slog.String("error", err.Error()))
		return b.fallback(input.Intent)
	}

	strategy, err := decodeSearchStrategy(raw)
	if err != nil {
		b.logger.Warn("query builder response invalid, using deterministic fallback", slog.String("error", err.Error()))
		return b.fallback(input.Intent)
	}

	return b.sanitize(strategy, input.Intent)
}

func (b *QueryBuilder) renderUserMessage(input models.QueryBuilderInput) string {
	var sb strings.Builder
	intentJSON, _ := json.Marshal(input.Intent)
	fmt.Fprintf(&sb, "intent: %s\n", intentJSON)

	if len(input.PreviousStrategies) > 0 {
		prevJSON, _ := json.Marshal(input.PreviousStrategies)
		fmt.Fprintf(&sb, "previous_strategies: %s\n", prevJSON)
	}
	if input.UserFeedback != nil {
		fbJSON, _ := json.Marshal(input.UserFeedback)
		fmt.Fprintf(&sb, "feedback: %s\n", fbJSON)
	}
	fmt.Fprintf(&sb, "available_sources: %s\n", strings.Join(b.availableSources, ", "))
	return sb.String()
}

func decodeSearchStrategy(raw map[string]interface{}) (models.SearchStrategy, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return models.SearchStrategy{}, err
	}
	var strategy models.SearchStrategy
	if err := json.Unmarshal(buf, &strategy); err != nil {
		return models.SearchStrategy{}, err
	}
	return strategy, nil
}

// sanitize applies SPEC_FULL.md §4.4's post-processing rules in order.
func (b *QueryBuilder) sanitize(strategy models.SearchStrategy, intent models.ParsedIntent) models.SearchStrategy {
	strategy.Sources = intersectOrAll(strategy.Sources, b.availableSources)

	if strategy.Filters.YearFrom != nil && strategy.Filters.YearTo != nil && *strategy.Filters.YearFrom > *strategy.Filters.YearTo {
		strategy.Filters.YearFrom, strategy.Filters.YearTo = strategy.Filters.YearTo, strategy.Filters.YearFrom
	}

	if len(strategy.Queries) == 0 {
		strategy.Queries = []models.SearchQuery{deterministicQuery(intent)}
	}

	if strategy.Filters.MaxResults < 1 {
		strategy.Filters.MaxResults = 1
	}
	if strategy.Filters.MaxResults > 200 {
		strategy.Filters.MaxResults = 200
	}

	return strategy
}

// fallback returns a fully deterministic strategy: one AND-joined query over
// concepts, all available sources, filters copied from intent constraints.
func (b *QueryBuilder) fallback(intent models.ParsedIntent) models.SearchStrategy {
	maxResults := intent.Constraints.MaxResults
	if maxResults < 1 {
		maxResults = 20
	}
	return models.SearchStrategy{
		Queries: []models.SearchQuery{deterministicQuery(intent)},
		Sources: append([]string(nil), b.availableSources...),
		Filters: models.Constraints{
			YearFrom:   intent.Constraints.YearFrom,
			YearTo:     intent.Constraints.YearTo,
			Language:   intent.Constraints.Language,
			MaxResults: maxResults,
		},
	}
}

func deterministicQuery(intent models.ParsedIntent) models.SearchQuery {
	return models.SearchQuery{
		Keywords:     intent.Concepts,
		BooleanQuery: strings.Join(intent.Concepts, " AND "),
	}
}

func intersectOrAll(requested, available []string) []string {
	availableSet := make(map[string]struct{}, len(available))
	for _, s := range available {
		availableSet[s] = struct{}{}
	}

	var intersection []string
	for _, s := range requested {
		if _, ok := availableSet[s]; ok {
			intersection = append(intersection, s)
		}
	}
	if len(intersection) == 0 {
		return append([]string(nil), available...)
	}
	return intersection
}
