package coordinator

import "time"

// State is one point in the run lifecycle state machine (spec section
// 4.10). Transitions are one-way; FAILED is terminal and carries the
// stage name at which the run died.
type State string

const (
	StateCreated   State = "CREATED"
	StateReadyOK   State = "READY_OK"
	StateInputsOK  State = "INPUTS_OK"
	StateActivated State = "ACTIVATED"
	StateR1Done    State = "R1_DONE"
	StateR2Done    State = "R2_DONE"
	StateR3Done    State = "R3_DONE"
	StateStatsDone State = "STATS_DONE"
	StateDelivered State = "DELIVERED"
	StateFailed    State = "FAILED"
)

// StatusArtifact is the continuously-updated status.json schema (spec
// section 3 and 4.10). Every write replaces the whole file via the
// artifact store's atomic rename (last writer wins); a run's status is
// written only from its own pipeline goroutine, so writes for one run
// never interleave.
type StatusArtifact struct {
	RunID         string              `json:"run_id"`
	CurrentPhase  State               `json:"current_phase"`
	Completed     bool                `json:"completed"`
	Progress      int                 `json:"progress"`
	Steps         []StatusArtifactStep `json:"steps"`
	Error         string              `json:"error,omitempty"`
	FailedStage   string              `json:"failed_stage,omitempty"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// StatusArtifactStep mirrors progress.Step for JSON stability independent
// of the progress package's internal representation.
type StatusArtifactStep struct {
	Text     string `json:"text"`
	Status   string `json:"status"`
	Time     string `json:"time,omitempty"`
	Progress int    `json:"progress,omitempty"`
}
