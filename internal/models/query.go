package models

// SearchQuery is one keyword/boolean query issued to a search source.
type SearchQuery struct {
	Keywords     []string `json:"keywords"`
	BooleanQuery string   `json:"boolean_query" validate:"required"`
}

// SearchStrategy is the output of the Query Builder stage (SPEC_FULL.md §4.4):
// a set of queries to run against a set of sources, with shared filters.
type SearchStrategy struct {
	Queries []SearchQuery `json:"queries" validate:"required,min=1"`
	Sources []string      `json:"sources" validate:"required,min=1"`
	Filters Constraints   `json:"filters"`
}

// QueryBuilderInput is handed to the Query Builder stage each iteration.
type QueryBuilderInput struct {
	Intent             ParsedIntent     `json:"intent"`
	PreviousStrategies []SearchStrategy `json:"previous_strategies"`
	UserFeedback       *UserFeedback    `json:"user_feedback,omitempty"`
}

// UserFeedback is what a decider's decision coerces into for the next
// iteration's Query Builder input (SPEC_FULL.md §4.9 `coerce`).
type UserFeedback struct {
	FreeTextFeedback   string              `json:"free_text_feedback"`
	MarkedRelevant     map[string]struct{} `json:"marked_relevant"`
	MarkedIrrelevant   map[string]struct{} `json:"marked_irrelevant"`
	RevisedConstraints *Constraints        `json:"revised_constraints,omitempty"`
}

// Validate enforces marked_relevant ∩ marked_irrelevant = ∅.
func (f UserFeedback) Validate() error {
	for id := range f.MarkedRelevant {
		if _, clash := f.MarkedIrrelevant[id]; clash {
			return newValidationError("UserFeedback", "a paper cannot be both marked relevant and irrelevant", "marked_relevant", id)
		}
	}
	return nil
}

// NewUserFeedback builds an empty, ready-to-use UserFeedback.
func NewUserFeedback(freeText string) UserFeedback {
	return UserFeedback{
		FreeTextFeedback: freeText,
		MarkedRelevant:   make(map[string]struct{}),
		MarkedIrrelevant: make(map[string]struct{}),
	}
}
