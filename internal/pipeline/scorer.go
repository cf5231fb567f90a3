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

const scorerSystemPrompt = `You are a relevance scorer for a literature search. Given a research topic,
its key concepts, and a batch of candidate papers, score each paper's
relevance to the topic from 0.0 to 1.0, give a one-sentence reason, and tag
it with zero or more of: method, review, empirical, theoretical, dataset.
Respond with a single JSON object: {"results": [{"paper_id": "...",
"relevance_score": 0.0, "relevance_reason": "...", "tags": [...]}]}.`

const (
	defaultBatchSize      = 10
	defaultMaxConcurrency = 3
	titleTruncateLen      = 200
	snippetTruncateLen    = 500
)

// Scorer implements the Relevance Scorer stage (SPEC_FULL.md §4.7): batches
// of batchSize papers are scored with bounded concurrency up to
// maxConcurrency, grounded on the semaphore-over-goroutines idiom
// (internal/providers/manager.go's fan-out, gated here instead of
// unbounded).
type Scorer struct {
	client         modelclient.Client
	batchSize      int
	maxConcurrency int
	logger         *slog.Logger
}

func NewScorer(client modelclient.Client, batchSize, maxConcurrency int, logger *slog.Logger) *Scorer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &Scorer{client: client, batchSize: batchSize, maxConcurrency: maxConcurrency, logger: logger}
}

// Score partitions papers into contiguous batches, scores them with bounded
// concurrency, and reassembles output in input order regardless of
// completion order.
func (s *Scorer) Score(ctx context.Context, papers []models.RawPaper, intent models.ParsedIntent) []models.ScoredPaper {
	if len(papers) == 0 {
		return nil
	}

	batches := partitionBatches(papers, s.batchSize)
	results := make([][]models.ScoredPaper, len(batches))

	sem := make(chan struct{}, s.maxConcurrency)
	done := make(chan int, len(batches))

	for i, batch := range batches {
		sem <- struct{}{}
		go func(i int, batch []models.RawPaper) {
			defer func() { <-sem }()
			results[i] = s.scoreBatch(ctx, batch, intent)
			done <- i
		}(i, batch)
	}
	for range batches {
		<-done
	}

	out := make([]models.ScoredPaper, 0, len(papers))
	for _, batch := range results {
		out = append(out, batch...)
	}
	return out
}

func partitionBatches(papers []models.RawPaper, size int) [][]models.RawPaper {
	var batches [][]models.RawPaper
	for start := 0; start < len(papers); start += size {
		end := start + size
		if end > len(papers) {
			end = len(papers)
		}
		batches = append(batches, papers[start:end])
	}
	return batches
}

type scoreEntry struct {
	PaperID         string   `json:"paper_id"`
	RelevanceScore  float64  `json:"relevance_score"`
	RelevanceReason string   `json:"relevance_reason"`
	Tags            []string `json:"tags"`
}

// scoreBatch scores one batch, emitting a default (score 0.0, "Scoring
// unavailable", no tags) for any paper not matched in the response or for
// every paper in the batch when the model/parse call fails entirely.
func (s *Scorer) scoreBatch(ctx context.Context, batch []models.RawPaper, intent models.ParsedIntent) []models.ScoredPaper {
	userMessage := s.renderBatchPrompt(batch, intent)

	raw, err := s.client.CompleteJSON(ctx, scorerSystemPrompt, userMessage, nil)
	if err != nil {
		s.logger.Warn("scorer batch failed, emitting defaults", slog.String("error", err.Error()))
		return defaultScores(batch)
	}

	entries, err := decodeScoreEntries(raw)
	if err != nil {
		s.logger.Warn("scorer batch response invalid, emitting defaults", slog.String("error", err.Error()))
		return defaultScores(batch)
	}

	byID := make(map[string]scoreEntry, len(entries))
	for _, e := range entries {
		byID[e.PaperID] = e
	}

	out := make([]models.ScoredPaper, 0, len(batch))
	for _, p := range batch {
		entry, ok := byID[p.ID]
		if !ok {
			out = append(out, models.ScoredPaper{Paper: p, RelevanceScore: 0.0, RelevanceReason: "Scoring unavailable"})
			continue
		}
		sp := models.ScoredPaper{
			Paper:           p,
			RelevanceScore:  entry.RelevanceScore,
			RelevanceReason: entry.RelevanceReason,
			Tags:            toRelevanceTags(entry.Tags),
		}
		sp.ClampScore()
		sp.FilterTags()
		out = append(out, sp)
	}
	return out
}

func defaultScores(batch []models.RawPaper) []models.ScoredPaper {
	out := make([]models.ScoredPaper, 0, len(batch))
	for _, p := range batch {
		out = append(out, models.ScoredPaper{Paper: p, RelevanceScore: 0.0, RelevanceReason: "Scoring unavailable"})
	}
	return out
}

func (s *Scorer) renderBatchPrompt(batch []models.RawPaper, intent models.ParsedIntent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "topic: %s\n", intent.Topic)
	fmt.Fprintf(&sb, "concepts: %s\n", strings.Join(intent.Concepts, ", "))
	sb.WriteString("papers:\n")
	for _, p := range batch {
		title := truncate(p.Title, titleTruncateLen)
		snippet := ""
		if p.Snippet != nil {
			snippet = truncate(*p.Snippet, snippetTruncateLen)
		}
		year := "null"
		if p.Year != nil {
			year = fmt.Sprintf("%d", *p.Year)
		}
		venue := ""
		if p.Venue != nil {
			venue = *p.Venue
		}
		fmt.Fprintf(&sb, "- id: %s, title: %q, snippet: %q, year: %s, venue: %q\n", p.ID, title, snippet, year, venue)
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func decodeScoreEntries(raw map[string]interface{}) ([]scoreEntry, error) {
	resultsRaw, ok := raw["results"]
	if !ok {
		return nil, fmt.Errorf("score: response missing results array")
	}
	buf, err := json.Marshal(resultsRaw)
	if err != nil {
		return nil, err
	}
	var entries []scoreEntry
	if err := json.Unmarshal(buf, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func toRelevanceTags(raw []string) []models.RelevanceTag {
	out := make([]models.RelevanceTag, 0, len(raw))
	for _, t := range raw {
		out = append(out, models.RelevanceTag(t))
	}
	return out
}
