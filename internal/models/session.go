package models

import "time"

// Phase names the engine reports progress under (SPEC_FULL.md §4.9 `report`).
type Phase string

const (
	PhaseQueryBuilding     Phase = "query_building"
	PhaseSearching         Phase = "searching"
	PhaseDeduplicating     Phase = "deduplicating"
	PhaseScoring           Phase = "scoring"
	PhaseOrganizing        Phase = "organizing"
	PhaseWaitingCheckpoint Phase = "waiting_checkpoint"
)

// ProgressSnapshot is the engine's last-reported phase, held by the Session
// so `get`/`decide` can describe a run that has no pending checkpoint.
type ProgressSnapshot struct {
	Phase       Phase     `json:"phase"`
	Details     string    `json:"phase_details"`
	UpdatedAt   time.Time `json:"phase_updated_at"`
}

// Snapshot is the wire-facing view of a Session at a point in time
// (SPEC_FULL.md §4.10, §6).
type Snapshot struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	IsComplete bool  `json:"is_complete"`
	Error     string `json:"error,omitempty"`

	HasPendingCheckpoint bool           `json:"has_pending_checkpoint"`
	CheckpointKind       CheckpointKind `json:"checkpoint_kind,omitempty"`
	CheckpointID         string         `json:"checkpoint_id,omitempty"`
	CheckpointPayload    interface{}    `json:"checkpoint_payload,omitempty"`

	Phase        Phase   `json:"phase,omitempty"`
	PhaseDetails string  `json:"phase_details,omitempty"`
	PhaseUpdated string  `json:"phase_updated_at,omitempty"`
	ElapsedS     float64 `json:"elapsed_s,omitempty"`

	PaperCount int `json:"paper_count,omitempty"`
}
