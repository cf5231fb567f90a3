package models

import (
	"fmt"
	"time"
)

// CheckpointKind is one of the two pause points the engine fires (SPEC_FULL.md §4.9).
type CheckpointKind string

const (
	StrategyConfirmation CheckpointKind = "STRATEGY_CONFIRMATION"
	ResultReview         CheckpointKind = "RESULT_REVIEW"
)

// StrategyPayload accompanies a STRATEGY_CONFIRMATION checkpoint.
type StrategyPayload struct {
	Intent   ParsedIntent   `json:"intent"`
	Strategy SearchStrategy `json:"strategy"`
}

// ResultPayload accompanies a RESULT_REVIEW checkpoint. AccumulatedCount is
// the size of state.accumulated_papers at the time the checkpoint fired.
type ResultPayload struct {
	Collection       PaperCollection `json:"collection"`
	AccumulatedCount int             `json:"accumulated_count"`
}

// Checkpoint is the typed envelope handed to a decider (SPEC_FULL.md §3).
type Checkpoint struct {
	Kind      CheckpointKind `json:"kind"`
	RunID     string         `json:"run_id"`
	Iteration int            `json:"iteration"`
	Timestamp time.Time      `json:"timestamp"`

	// Exactly one of these is populated, selected by Kind.
	StrategyPayload *StrategyPayload `json:"strategy_payload,omitempty"`
	ResultPayload   *ResultPayload   `json:"result_payload,omitempty"`
}

// Signature identifies a checkpoint for the Session Layer's monotonic-advance
// check (SPEC_FULL.md §4.10): "{run_id}:{iteration}:{kind}".
func (c Checkpoint) Signature() string {
	return fmt.Sprintf("%s:%d:%s", c.RunID, c.Iteration, c.Kind)
}

// CheckpointID is the wire-facing identifier ("run_id:iteration") used in snapshots.
func (c Checkpoint) CheckpointID() string {
	return fmt.Sprintf("%s:%d", c.RunID, c.Iteration)
}

// NewStrategyCheckpoint builds a STRATEGY_CONFIRMATION checkpoint.
func NewStrategyCheckpoint(runID string, iteration int, intent ParsedIntent, strategy SearchStrategy) Checkpoint {
	return Checkpoint{
		Kind:            StrategyConfirmation,
		RunID:           runID,
		Iteration:       iteration,
		Timestamp:       time.Now(),
		StrategyPayload: &StrategyPayload{Intent: intent, Strategy: strategy},
	}
}

// NewResultCheckpoint builds a RESULT_REVIEW checkpoint.
func NewResultCheckpoint(runID string, iteration int, coll PaperCollection, accumulatedCount int) Checkpoint {
	return Checkpoint{
		Kind:      ResultReview,
		RunID:     runID,
		Iteration: iteration,
		Timestamp: time.Now(),
		ResultPayload: &ResultPayload{
			Collection:       coll,
			AccumulatedCount: accumulatedCount,
		},
	}
}
