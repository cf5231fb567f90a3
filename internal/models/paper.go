package models

// RawPaper is a normalized record produced by the External Search Client
// (SPEC_FULL.md §4.1) or by a Searcher-stage source, before dedup/scoring.
type RawPaper struct {
	ID             string                 `json:"id" validate:"required"`
	Title          string                 `json:"title" validate:"required"`
	Authors        []string               `json:"authors"`
	Year           *int                   `json:"year,omitempty"`
	Venue          *string                `json:"venue,omitempty"`
	DOI            *string                `json:"doi,omitempty"`
	Snippet        *string                `json:"snippet,omitempty"`
	FullTextURL    *string                `json:"full_text_url,omitempty"`
	CitationCount  int                    `json:"citation_count" validate:"min=0"`
	Source         string                 `json:"source" validate:"required"`
	ProviderResult string                 `json:"provider_result_id,omitempty"`
	RawData        map[string]interface{} `json:"raw_data,omitempty"`
}

// RelevanceTag is one of the fixed enum values a scored paper can carry.
type RelevanceTag string

const (
	TagMethod      RelevanceTag = "method"
	TagReview      RelevanceTag = "review"
	TagEmpirical   RelevanceTag = "empirical"
	TagTheoretical RelevanceTag = "theoretical"
	TagDataset     RelevanceTag = "dataset"
)

// ValidRelevanceTags is the closed set tags are filtered against (SPEC_FULL.md §4.7).
var ValidRelevanceTags = map[RelevanceTag]struct{}{
	TagMethod: {}, TagReview: {}, TagEmpirical: {}, TagTheoretical: {}, TagDataset: {},
}

// ScoredPaper is the output of the Relevance Scorer stage (SPEC_FULL.md §4.7).
type ScoredPaper struct {
	Paper           RawPaper       `json:"paper"`
	RelevanceScore  float64        `json:"relevance_score"`
	RelevanceReason string         `json:"relevance_reason"`
	Tags            []RelevanceTag `json:"tags"`
}

// ClampScore forces RelevanceScore into [0.0, 1.0], per SPEC_FULL.md §4.7/§8.2.
func (s *ScoredPaper) ClampScore() {
	if s.RelevanceScore < 0 {
		s.RelevanceScore = 0
	}
	if s.RelevanceScore > 1 {
		s.RelevanceScore = 1
	}
}

// FilterTags drops any tag outside ValidRelevanceTags.
func (s *ScoredPaper) FilterTags() {
	kept := make([]RelevanceTag, 0, len(s.Tags))
	for _, t := range s.Tags {
		if _, ok := ValidRelevanceTags[t]; ok {
			kept = append(kept, t)
		}
	}
	s.Tags = kept
}

// Paper is the organizer's output projection of a ScoredPaper (SPEC_FULL.md §3).
type Paper struct {
	ID             string         `json:"id"`
	DOI            *string        `json:"doi,omitempty"`
	Title          string         `json:"title"`
	Authors        []string       `json:"authors"`
	Year           *int           `json:"year,omitempty"`
	Venue          *string        `json:"venue,omitempty"`
	RelevanceScore float64        `json:"relevance_score"`
	Tags           []RelevanceTag `json:"tags"`
	CitationCount  int            `json:"citation_count"`
	Snippet        *string        `json:"snippet,omitempty"`
	FullTextURL    *string        `json:"full_text_url,omitempty"`
	Source         string         `json:"source"`
}

// ProjectPaper maps a ScoredPaper onto its output Paper shape.
func ProjectPaper(s ScoredPaper) Paper {
	return Paper{
		ID:             s.Paper.ID,
		DOI:            s.Paper.DOI,
		Title:          s.Paper.Title,
		Authors:        s.Paper.Authors,
		Year:           s.Paper.Year,
		Venue:          s.Paper.Venue,
		RelevanceScore: s.RelevanceScore,
		Tags:           s.Tags,
		CitationCount:  s.Paper.CitationCount,
		Snippet:        s.Paper.Snippet,
		FullTextURL:    s.Paper.FullTextURL,
		Source:         s.Paper.Source,
	}
}

// Facets summarizes a PaperCollection for faceted browsing (SPEC_FULL.md §4.8).
type Facets struct {
	ByYear     map[string]int `json:"by_year"`
	ByVenue    map[string]int `json:"by_venue"`
	TopAuthors []string       `json:"top_authors"`
	KeyThemes  []string       `json:"key_themes"`
}

// CollectionMetadata wraps a PaperCollection with its provenance.
type CollectionMetadata struct {
	Query          string         `json:"query"`
	SearchStrategy SearchStrategy `json:"search_strategy"`
	TotalFound     int            `json:"total_found"`
}

// PaperCollection is the Organizer stage's output (SPEC_FULL.md §4.8).
type PaperCollection struct {
	Metadata CollectionMetadata `json:"metadata"`
	Papers   []Paper            `json:"papers"`
	Facets   Facets             `json:"facets"`
}
