package models

// DecisionAction is the decider's verdict on a checkpoint.
type DecisionAction string

const (
	Approve DecisionAction = "approve"
	Edit    DecisionAction = "edit"
	Reject  DecisionAction = "reject"
)

// Decision is the decider's reply to a Checkpoint (SPEC_FULL.md §3).
type Decision struct {
	Action       DecisionAction         `json:"action"`
	RevisedData  map[string]interface{} `json:"revised_data,omitempty"`
	Note         string                 `json:"note,omitempty"`
}

// NewApproveDecision builds the implicit decision used when no decider is configured.
func NewApproveDecision() Decision {
	return Decision{Action: Approve}
}
