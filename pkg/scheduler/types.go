package scheduler

import "github.com/ultrai-run/ultrai/pkg/gateway"

// RoundTag identifies which round a scheduler invocation serves.
type RoundTag string

const (
	RoundInitial RoundTag = "INITIAL"
	RoundMeta    RoundTag = "META"
)

// Slot is one executable activation slot: a primary model to try first
// and a fallback to try if the primary exhausts its attempts.
type Slot struct {
	Primary  string
	Fallback string
}

// Record is one entry of 03_initial.json / 04_meta.json (spec section 3).
type Record struct {
	Round        string   `json:"round"`
	Model        string   `json:"model"`
	Text         string   `json:"text"`
	Ms           int64    `json:"ms"`
	Error        bool     `json:"error"`
	FailedModels []string `json:"failed_models,omitempty"`
}

// Status is the COMPLETED/DEGRADED verdict for a round.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusDegraded  Status = "DEGRADED"
)

// RoundResult bundles everything a round produces: the ordered record
// list, the primary models that failed (whether or not a fallback then
// rescued their slot), and the round-level status.
type RoundResult struct {
	Records      []Record
	FailedModels []string
	Status       Status
	Concurrency  int
}

// PromptBuilder constructs the system/user message pair sent to a model
// for a given round, injected into the scheduler rather than hardcoded
// (spec section 4.6).
type PromptBuilder func(model string) []gateway.Message
