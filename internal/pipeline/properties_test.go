package pipeline_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"scifind-backend/internal/models"
	"scifind-backend/internal/pipeline"
)

// trackingModelClient counts total CompleteJSON invocations and the peak
// number observed in flight at once, simulating per-call work with a tiny
// sleep so concurrent goroutines overlap.
type trackingModelClient struct {
	totalCalls   int64
	inFlight     int64
	peakInFlight int64
}

func (c *trackingModelClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return "", nil
}

func (c *trackingModelClient) CompleteJSON(ctx context.Context, systemPrompt, userMessage string, schema map[string]interface{}) (map[string]interface{}, error) {
	atomic.AddInt64(&c.totalCalls, 1)
	cur := atomic.AddInt64(&c.inFlight, 1)
	for {
		peak := atomic.LoadInt64(&c.peakInFlight)
		if cur <= peak || atomic.CompareAndSwapInt64(&c.peakInFlight, peak, cur) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	atomic.AddInt64(&c.inFlight, -1)
	return map[string]interface{}{"results": []interface{}{}}, nil
}

func genRawPapers(n int, scorePrefix string) []models.RawPaper {
	out := make([]models.RawPaper, n)
	for i := range out {
		out[i] = models.RawPaper{ID: fmt.Sprintf("%s-%d", scorePrefix, i), Title: fmt.Sprintf("Paper %d", i), Source: "s"}
	}
	return out
}

// Property 3 (SPEC_FULL.md §8): scorer output count equals input count
// regardless of partial or total model failure.
func TestProperty_Scorer_PreservesOutputCount(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("|score(papers)| == |papers on model failure", prop.ForAll(
		func(n int) bool {
			client := &fakeModelClient{jsonErrs: []error{fmt.Errorf("model down")}}
			s := pipeline.NewScorer(client, 7, 3, discardLogger())
			out := s.Score(context.Background(), genRawPapers(n, "p"), models.ParsedIntent{Topic: "t"})
			return len(out) == n
		},
		gen.IntRange(0, 60),
	))

	properties.TestingRun(t)
}

// Property 2 (SPEC_FULL.md §8): every ScoredPaper.RelevanceScore ∈ [0,1]
// regardless of the raw score the model returns.
func TestProperty_Scorer_ClampsScoreIntoUnitRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("relevance_score always lands in [0,1]", prop.ForAll(
		func(rawScore float64) bool {
			client := &fakeModelClient{jsonResponses: []map[string]interface{}{
				{"results": []interface{}{
					map[string]interface{}{"paper_id": "p0", "relevance_score": rawScore, "tags": []interface{}{}},
				}},
			}}
			s := pipeline.NewScorer(client, 10, 1, discardLogger())
			out := s.Score(context.Background(), genRawPapers(1, "p"), models.ParsedIntent{Topic: "t"})
			if len(out) != 1 {
				return false
			}
			return out[0].RelevanceScore >= 0.0 && out[0].RelevanceScore <= 1.0
		},
		gen.Float64Range(-1000, 1000),
	))

	properties.TestingRun(t)
}

// Property 4 (SPEC_FULL.md §8): deduplication never grows the input, and any
// merged group's citation_count is the group's maximum.
func TestProperty_Deduplicator_MonotonicAndCitationIsGroupMax(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("|deduplicate(xs)| <= |xs|", prop.ForAll(
		func(n, duplicateGroups int) bool {
			if duplicateGroups > n {
				duplicateGroups = n
			}
			var papers []models.RawPaper
			for i := 0; i < n; i++ {
				groupID := i
				if duplicateGroups > 0 {
					groupID = i % duplicateGroups
				}
				papers = append(papers, models.RawPaper{
					ID:            fmt.Sprintf("id-%d", i),
					Title:         fmt.Sprintf("Shared Title %d", groupID),
					Source:        "s",
					CitationCount: i,
				})
			}

			maxCitations := make(map[string]int)
			for _, p := range papers {
				if p.CitationCount > maxCitations[p.Title] {
					maxCitations[p.Title] = p.CitationCount
				}
			}

			d := pipeline.NewDeduplicator(nil, false, 10, discardLogger())
			out := d.Deduplicate(context.Background(), papers)
			if len(out) > len(papers) {
				return false
			}
			for _, p := range out {
				if p.CitationCount != maxCitations[p.Title] {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 40),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}

// Property 5 (SPEC_FULL.md §8): Organizer's sort is total and stable under
// (score desc, citations desc, year desc, title asc).
func TestProperty_Organizer_SortIsTotallyOrdered(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("output is sorted by (score desc, citations desc, year desc, title asc)", prop.ForAll(
		func(scores []float64) bool {
			scoredPapers := make([]models.ScoredPaper, len(scores))
			for i, sc := range scores {
				year := 2000 + i
				scoredPapers[i] = models.ScoredPaper{
					Paper: models.RawPaper{
						ID: fmt.Sprintf("p%d", i), Title: fmt.Sprintf("title-%03d", i),
						Year: &year, CitationCount: i, Source: "s",
					},
					RelevanceScore: sc,
				}
			}

			org := pipeline.NewOrganizer(-1)
			coll := org.Organize(scoredPapers, models.SearchStrategy{}, "q")

			return sort.SliceIsSorted(coll.Papers, func(i, j int) bool {
				a, b := coll.Papers[i], coll.Papers[j]
				if a.RelevanceScore != b.RelevanceScore {
					return a.RelevanceScore > b.RelevanceScore
				}
				if a.CitationCount != b.CitationCount {
					return a.CitationCount > b.CitationCount
				}
				ay, by := 0, 0
				if a.Year != nil {
					ay = *a.Year
				}
				if b.Year != nil {
					by = *b.Year
				}
				if ay != by {
					return ay > by
				}
				return strings.ToLower(a.Title) <= strings.ToLower(b.Title)
			})
		},
		gen.SliceOf(gen.Float64Range(0.31, 1.0)),
	))

	properties.TestingRun(t)
}

// Property 6 (SPEC_FULL.md §8): facet counts never exceed their declared caps.
func TestProperty_Organizer_FacetConsistency(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("sum(by_year) <= |papers|, |top_authors| <= 10, |key_themes| <= 8", prop.ForAll(
		func(n int) bool {
			scoredPapers := make([]models.ScoredPaper, n)
			for i := 0; i < n; i++ {
				year := 2000 + i%5
				scoredPapers[i] = models.ScoredPaper{
					Paper: models.RawPaper{
						ID: fmt.Sprintf("p%d", i), Title: fmt.Sprintf("Deep Learning Vision Method %d", i),
						Year: &year, Source: "s", Authors: []string{fmt.Sprintf("author-%d", i%15)},
					},
					RelevanceScore: 0.9,
				}
			}

			org := pipeline.NewOrganizer(0.5)
			coll := org.Organize(scoredPapers, models.SearchStrategy{}, "q")

			total := 0
			for _, c := range coll.Facets.ByYear {
				total += c
			}
			if total > len(coll.Papers) {
				return false
			}
			if len(coll.Facets.TopAuthors) > 10 {
				return false
			}
			if len(coll.Facets.KeyThemes) > 8 {
				return false
			}
			return true
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}

// Property 1 (SPEC_FULL.md §8): scoring N papers in batches of size B issues
// exactly ceil(N/B) model calls, and never more than maxConcurrency of them
// run at once.
func TestProperty_Scorer_BoundedFanOut(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("call count == ceil(n/batchSize) and peak concurrency <= maxConcurrency", prop.ForAll(
		func(n, batchSize, maxConcurrency int) bool {
			client := &trackingModelClient{}
			s := pipeline.NewScorer(client, batchSize, maxConcurrency, discardLogger())
			out := s.Score(context.Background(), genRawPapers(n, "p"), models.ParsedIntent{Topic: "t"})
			if len(out) != n {
				return false
			}

			wantCalls := int64(0)
			if n > 0 {
				wantCalls = int64((n + batchSize - 1) / batchSize)
			}
			if atomic.LoadInt64(&client.totalCalls) != wantCalls {
				return false
			}
			return atomic.LoadInt64(&client.peakInFlight) <= int64(maxConcurrency)
		},
		gen.IntRange(0, 50),
		gen.IntRange(1, 8),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}
