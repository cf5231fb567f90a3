package models

// IterationRecord is one entry in WorkflowState.History: what strategy ran,
// how many papers it produced, and what feedback (if any) closed it out.
type IterationRecord struct {
	Strategy    SearchStrategy `json:"strategy"`
	ResultCount int            `json:"result_count"`
	Feedback    *UserFeedback  `json:"feedback,omitempty"`
}

// WorkflowState tracks one run's progress across iterations (SPEC_FULL.md §3).
// accumulated_papers preserves insertion order and de-duplicates by ID, per
// S4: a paper is kept at its first-seen position even if a later iteration
// re-emits the same ID with a different score (DESIGN.md open-question #3).
type WorkflowState struct {
	CurrentIteration  int
	History           []IterationRecord
	accumulatedOrder  []string
	accumulatedPapers map[string]Paper
	IsComplete        bool
}

// NewWorkflowState returns a fresh, zeroed WorkflowState.
func NewWorkflowState() *WorkflowState {
	return &WorkflowState{
		accumulatedPapers: make(map[string]Paper),
	}
}

// PreviousStrategies returns the strategy from every recorded iteration, in order.
func (s *WorkflowState) PreviousStrategies() []SearchStrategy {
	out := make([]SearchStrategy, 0, len(s.History))
	for _, h := range s.History {
		out = append(out, h.Strategy)
	}
	return out
}

// LatestFeedback returns the most recently recorded feedback, or nil if none.
func (s *WorkflowState) LatestFeedback() *UserFeedback {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Feedback != nil {
			return s.History[i].Feedback
		}
	}
	return nil
}

// Record appends an iteration to history and advances CurrentIteration.
func (s *WorkflowState) Record(strategy SearchStrategy, resultCount int, feedback *UserFeedback) {
	s.History = append(s.History, IterationRecord{
		Strategy:    strategy,
		ResultCount: resultCount,
		Feedback:    feedback,
	})
	s.CurrentIteration++
}

// AccumulateRelevant appends papers from coll whose ID is in marked, skipping
// any ID already accumulated (SPEC_FULL.md §4.9 `accumulate_relevant`).
func (s *WorkflowState) AccumulateRelevant(papers []Paper, marked map[string]struct{}) {
	for _, p := range papers {
		if _, wanted := marked[p.ID]; !wanted {
			continue
		}
		if _, already := s.accumulatedPapers[p.ID]; already {
			continue
		}
		s.accumulatedPapers[p.ID] = p
		s.accumulatedOrder = append(s.accumulatedOrder, p.ID)
	}
}

// AccumulatedPapers returns the accumulated papers in insertion order.
func (s *WorkflowState) AccumulatedPapers() []Paper {
	out := make([]Paper, 0, len(s.accumulatedOrder))
	for _, id := range s.accumulatedOrder {
		out = append(out, s.accumulatedPapers[id])
	}
	return out
}

// AccumulatedCount is the number of distinct accumulated papers so far.
func (s *WorkflowState) AccumulatedCount() int {
	return len(s.accumulatedOrder)
}

// MergeAccumulated appends accumulated papers not already present in coll.Papers
// (by ID), preserving coll's own papers first (SPEC_FULL.md §4.9 `merge_accumulated`).
func MergeAccumulated(coll PaperCollection, accumulated []Paper) PaperCollection {
	present := make(map[string]struct{}, len(coll.Papers))
	for _, p := range coll.Papers {
		present[p.ID] = struct{}{}
	}
	for _, p := range accumulated {
		if _, ok := present[p.ID]; ok {
			continue
		}
		coll.Papers = append(coll.Papers, p)
		present[p.ID] = struct{}{}
	}
	return coll
}
