package engine

import (
	"encoding/json"

	"scifind-backend/internal/models"
)

// decodeStrategy coerces a decider's edit payload into a SearchStrategy,
// used only on the STRATEGY_CONFIRMATION EDIT path (SPEC_FULL.md §4.9).
func decodeStrategy(data map[string]interface{}) (models.SearchStrategy, error) {
	buf, err := json.Marshal(data)
	if err != nil {
		return models.SearchStrategy{}, err
	}
	var strategy models.SearchStrategy
	if err := json.Unmarshal(buf, &strategy); err != nil {
		return models.SearchStrategy{}, err
	}
	return strategy, nil
}

// decodeUserFeedback attempts to parse revised_data as a UserFeedback,
// reporting whether it decoded into a structurally valid feedback object.
func decodeUserFeedback(data map[string]interface{}) (models.UserFeedback, bool) {
	buf, err := json.Marshal(data)
	if err != nil {
		return models.UserFeedback{}, false
	}
	var fb models.UserFeedback
	if err := json.Unmarshal(buf, &fb); err != nil {
		return models.UserFeedback{}, false
	}
	if fb.MarkedRelevant == nil {
		fb.MarkedRelevant = make(map[string]struct{})
	}
	if fb.MarkedIrrelevant == nil {
		fb.MarkedIrrelevant = make(map[string]struct{})
	}
	return fb, true
}
