package models

// IntentType classifies what kind of research question the user asked.
type IntentType string

const (
	IntentSurvey   IntentType = "survey"
	IntentMethod   IntentType = "method"
	IntentDataset  IntentType = "dataset"
	IntentBaseline IntentType = "baseline"
)

// Constraints narrows a search: year range, language, and a result cap.
// Every field is optional; a zero value means "unconstrained".
type Constraints struct {
	YearFrom   *int   `json:"year_from,omitempty" validate:"omitempty"`
	YearTo     *int   `json:"year_to,omitempty" validate:"omitempty"`
	Language   string `json:"language,omitempty"`
	MaxResults int    `json:"max_results,omitempty" validate:"omitempty,min=1,max=200"`
}

// ParsedIntent is the output of the Intent Parser stage (SPEC_FULL.md §4.3).
type ParsedIntent struct {
	Topic       string      `json:"topic" validate:"required"`
	Concepts    []string    `json:"concepts" validate:"required,min=1,dive,required"`
	IntentType  IntentType  `json:"intent_type" validate:"required,oneof=survey method dataset baseline"`
	Constraints Constraints `json:"constraints"`
}

// Validate enforces the invariants listed in SPEC_FULL.md §3 beyond what
// struct tags can express: year_from ≤ year_to when both are set.
func (p ParsedIntent) Validate() error {
	if len(p.Concepts) == 0 {
		return newValidationError("ParsedIntent", "concepts must be non-empty after parse", "concepts", p.Concepts)
	}
	if p.Constraints.YearFrom != nil && p.Constraints.YearTo != nil && *p.Constraints.YearFrom > *p.Constraints.YearTo {
		return newValidationError("ParsedIntent", "year_from must be <= year_to", "constraints.year_from", *p.Constraints.YearFrom)
	}
	return nil
}
