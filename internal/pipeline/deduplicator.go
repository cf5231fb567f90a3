package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"scifind-backend/internal/modelclient"
	"scifind-backend/internal/models"
)

const dedupSystemPrompt = `You are a duplicate-paper detector. Given a list of candidate papers, each
with an id, title, and year, group the ids that refer to the same paper.
Respond with a single JSON object: {"groups": [["id1", "id2"], ["id3"]]}.
Every input id must appear in exactly one group.`

// Deduplicator implements the Deduplicator stage (SPEC_FULL.md §4.6): an
// exact pass over DOI/result-id/URL/normalized-title, followed by an
// optional LLM-assisted semantic pass over what the exact pass left
// ungrouped.
type Deduplicator struct {
	client           modelclient.Client
	llmEnabled       bool
	llmMaxCandidates int
	logger           *slog.Logger
}

func NewDeduplicator(client modelclient.Client, llmEnabled bool, llmMaxCandidates int, logger *slog.Logger) *Deduplicator {
	return &Deduplicator{client: client, llmEnabled: llmEnabled, llmMaxCandidates: llmMaxCandidates, logger: logger}
}

// Deduplicate runs the exact pass, then the semantic pass when enabled and
// within bounds, merging each resulting group into one RawPaper.
func (d *Deduplicator) Deduplicate(ctx context.Context, papers []models.RawPaper) []models.RawPaper {
	groups := exactGroups(papers)

	if d.llmEnabled && d.client != nil {
		groups = d.maybeSemanticPass(ctx, papers, groups)
	}

	out := make([]models.RawPaper, 0, len(groups))
	for _, group := range groups {
		out = append(out, mergeGroup(group))
	}
	return out
}

var punctuation = regexp.MustCompile(`[^\w\s]`)
var whitespace = regexp.MustCompile(`\s+`)

func normalizeTitle(title string) string {
	t := strings.ToLower(title)
	t = punctuation.ReplaceAllString(t, "")
	t = whitespace.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// exactGroups groups papers by, in order: lowercased DOI, provider
// result_id, full_text_url, normalized title. Each paper joins the first
// group whose key it matches; papers matching no existing group start one.
func exactGroups(papers []models.RawPaper) [][]models.RawPaper {
	var groups [][]models.RawPaper
	keyToGroup := make(map[string]int)

	for _, p := range papers {
		keys := exactKeys(p)
		groupIdx := -1
		for _, k := range keys {
			if idx, ok := keyToGroup[k]; ok {
				groupIdx = idx
				break
			}
		}
		if groupIdx == -1 {
			groupIdx = len(groups)
			groups = append(groups, nil)
		}
		groups[groupIdx] = append(groups[groupIdx], p)
		for _, k := range keys {
			keyToGroup[k] = groupIdx
		}
	}
	return groups
}

func exactKeys(p models.RawPaper) []string {
	var keys []string
	if p.DOI != nil && *p.DOI != "" {
		keys = append(keys, "doi:"+strings.ToLower(*p.DOI))
	}
	if p.ProviderResult != "" {
		keys = append(keys, "result:"+p.ProviderResult)
	}
	if p.FullTextURL != nil && *p.FullTextURL != "" {
		keys = append(keys, "url:"+*p.FullTextURL)
	}
	keys = append(keys, "title:"+normalizeTitle(p.Title))
	return keys
}

// maybeSemanticPass submits ungrouped singleton papers to the model for a
// second grouping pass, falling back to the exact-pass groups unchanged on
// any model or parse error, per SPEC_FULL.md §4.6.
func (d *Deduplicator) maybeSemanticPass(ctx context.Context, papers []models.RawPaper, exact [][]models.RawPaper) [][]models.RawPaper {
	var singletons []models.RawPaper
	var multi [][]models.RawPaper
	for _, g := range exact {
		if len(g) == 1 {
			singletons = append(singletons, g[0])
		} else {
			multi = append(multi, g)
		}
	}

	if len(singletons) <= 1 || len(singletons) > d.llmMaxCandidates {
		return exact
	}

	candidates := make([]map[string]interface{}, 0, len(singletons))
	byID := make(map[string]models.RawPaper, len(singletons))
	for _, p := range singletons {
		candidates = append(candidates, map[string]interface{}{"id": p.ID, "title": p.Title, "year": p.Year})
		byID[p.ID] = p
	}

	userMessage, err := json.Marshal(map[string]interface{}{"candidates": candidates})
	if err != nil {
		return exact
	}

	raw, err := d.client.CompleteJSON(ctx, dedupSystemPrompt, string(userMessage), nil)
	if err != nil {
		d.logger.Warn("semantic dedup pass failed, falling back to exact groups", slog.String("error", err.Error()))
		return exact
	}

	semanticGroups, err := decodeGroups(raw, byID)
	if err != nil {
		d.logger.Warn("semantic dedup response invalid, falling back to exact groups", slog.String("error", err.Error()))
		return exact
	}

	return append(multi, semanticGroups...)
}

func decodeGroups(raw map[string]interface{}, byID map[string]models.RawPaper) ([][]models.RawPaper, error) {
	rawGroups, ok := raw["groups"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("deduplicate: response missing groups array")
	}

	seen := make(map[string]struct{}, len(byID))
	var out [][]models.RawPaper
	for _, rg := range rawGroups {
		ids, ok := rg.([]interface{})
		if !ok {
			continue
		}
		var group []models.RawPaper
		for _, rawID := range ids {
			id, ok := rawID.(string)
			if !ok {
				continue
			}
			p, ok := byID[id]
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			group = append(group, p)
		}
		if len(group) > 0 {
			out = append(out, group)
		}
	}

	for id, p := range byID {
		if _, ok := seen[id]; !ok {
			out = append(out, []models.RawPaper{p})
		}
	}
	return out, nil
}

// mergeGroup picks the member with the most non-null primary fields,
// tie-breaking on citation count, then fills remaining null fields from
// other members and sets citation_count to the group max.
func mergeGroup(group []models.RawPaper) models.RawPaper {
	if len(group) == 1 {
		return group[0]
	}

	best := group[0]
	bestScore := primaryFieldCount(best)
	for _, p := range group[1:] {
		score := primaryFieldCount(p)
		if score > bestScore || (score == bestScore && p.CitationCount > best.CitationCount) {
			best, bestScore = p, score
		}
	}

	merged := best
	maxCitations := merged.CitationCount
	for _, p := range group {
		if p.CitationCount > maxCitations {
			maxCitations = p.CitationCount
		}
		if merged.DOI == nil && p.DOI != nil {
			merged.DOI = p.DOI
		}
		if merged.Snippet == nil && p.Snippet != nil {
			merged.Snippet = p.Snippet
		}
		if merged.Year == nil && p.Year != nil {
			merged.Year = p.Year
		}
		if merged.Venue == nil && p.Venue != nil {
			merged.Venue = p.Venue
		}
		if merged.FullTextURL == nil && p.FullTextURL != nil {
			merged.FullTextURL = p.FullTextURL
		}
	}
	merged.CitationCount = maxCitations
	return merged
}

func primaryFieldCount(p models.RawPaper) int {
	count := 0
	if p.DOI != nil {
		count++
	}
	if p.Snippet != nil {
		count++
	}
	if p.Year != nil {
		count++
	}
	if p.Venue != nil {
		count++
	}
	if p.FullTextURL != nil {
		count++
	}
	return count
}
