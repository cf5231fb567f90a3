package pipeline

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"scifind-backend/internal/models"
)

const defaultMinRelevance = 0.3
const keyThemeScoreThreshold = 0.5
const topAuthorsLimit = 10
const keyThemesLimit = 8
const minThemeTokenLen = 3

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "into": {}, "that": {},
	"this": {}, "are": {}, "was": {}, "were": {}, "has": {}, "have": {}, "using": {},
	"based": {}, "via": {}, "towards": {}, "toward": {}, "over": {}, "under": {},
}

// Organizer implements the Result Organizer stage (SPEC_FULL.md §4.8).
type Organizer struct {
	minRelevance float64
}

func NewOrganizer(minRelevance float64) *Organizer {
	if minRelevance <= 0 {
		minRelevance = defaultMinRelevance
	}
	return &Organizer{minRelevance: minRelevance}
}

// Organize filters, sorts, projects, and facets scored papers into the
// final PaperCollection.
func (o *Organizer) Organize(scored []models.ScoredPaper, strategy models.SearchStrategy, originalQuery string) models.PaperCollection {
	totalFound := len(scored)

	filtered := make([]models.ScoredPaper, 0, len(scored))
	for _, sp := range scored {
		if sp.RelevanceScore >= o.minRelevance {
			filtered = append(filtered, sp)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if a.Paper.CitationCount != b.Paper.CitationCount {
			return a.Paper.CitationCount > b.Paper.CitationCount
		}
		ay, by := yearOrZero(a.Paper.Year), yearOrZero(b.Paper.Year)
		if ay != by {
			return ay > by
		}
		return strings.ToLower(a.Paper.Title) < strings.ToLower(b.Paper.Title)
	})

	papers := make([]models.Paper, 0, len(filtered))
	for _, sp := range filtered {
		papers = append(papers, models.ProjectPaper(sp))
	}

	return models.PaperCollection{
		Metadata: models.CollectionMetadata{
			Query:          originalQuery,
			SearchStrategy: strategy,
			TotalFound:     totalFound,
		},
		Papers: papers,
		Facets: buildFacets(papers),
	}
}

func yearOrZero(y *int) int {
	if y == nil {
		return 0
	}
	return *y
}

func buildFacets(papers []models.Paper) models.Facets {
	byYear := make(map[string]int)
	byVenue := make(map[string]int)
	authorCounts := make(map[string]int)
	var authorOrder []string
	themeCounts := make(map[string]int)
	var themeOrder []string

	for _, p := range papers {
		if p.Year != nil {
			byYear[strconv.Itoa(*p.Year)]++
		}
		if p.Venue != nil && *p.Venue != "" {
			byVenue[titleCase(*p.Venue)]++
		}
		for _, author := range p.Authors {
			if _, seen := authorCounts[author]; !seen {
				authorOrder = append(authorOrder, author)
			}
			authorCounts[author]++
		}
		if p.RelevanceScore >= keyThemeScoreThreshold {
			for _, token := range tokenize(p.Title) {
				if _, seen := themeCounts[token]; !seen {
					themeOrder = append(themeOrder, token)
				}
				themeCounts[token]++
			}
		}
	}

	return models.Facets{
		ByYear:     byYear,
		ByVenue:    byVenue,
		TopAuthors: topByFrequency(authorOrder, authorCounts, topAuthorsLimit),
		KeyThemes:  topByFrequency(themeOrder, themeCounts, keyThemesLimit),
	}
}

func topByFrequency(order []string, counts map[string]int, limit int) []string {
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > limit {
		order = order[:limit]
	}
	return append([]string(nil), order...)
}

var titleSplitter = regexp.MustCompile(`\s+`)

func titleCase(s string) string {
	words := titleSplitter.Split(strings.ToLower(s), -1)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var tokenSplitter = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func tokenize(title string) []string {
	lower := strings.ToLower(title)
	var out []string
	for _, token := range tokenSplitter.Split(lower, -1) {
		if len(token) < minThemeTokenLen {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		out = append(out, token)
	}
	return out
}
