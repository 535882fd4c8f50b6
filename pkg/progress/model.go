// Package progress implements the Progress Model: an in-memory, per-run
// ordered step table mirrored into status.json and consumed by the
// polling API, mutex-guarded the way the teacher's Session type guards
// its mutable fields.
package progress

import (
	"sync"
	"time"
)

// StepStatus is a step's lifecycle state. Transitions are monotonic:
// PENDING -> IN_PROGRESS -> COMPLETED|FAILED.
type StepStatus string

const (
	StepPending    StepStatus = "PENDING"
	StepInProgress StepStatus = "IN_PROGRESS"
	StepCompleted  StepStatus = "COMPLETED"
	StepFailed     StepStatus = "FAILED"
)

// Step is one entry of the Progress Model's ordered step list.
type Step struct {
	Text     string     `json:"text"`
	Status   StepStatus `json:"status"`
	Time     string     `json:"time,omitempty"`
	Progress int        `json:"progress,omitempty"`
}

// Model is the thread-safe ordered step table for a single run.
type Model struct {
	mu    sync.RWMutex
	steps []Step
}

// New seeds a Model with a completed "system init" step and one pending
// step per R1 slot, named by r1Models. The R2, R3, stats, and delivery
// steps (spec section 4.11) are appended later with AddR2Steps and
// AddStep once R1's survivors are known.
func New(r1Models []string) *Model {
	steps := make([]Step, 0, 2+len(r1Models))
	steps = append(steps, Step{Text: "system init", Status: StepCompleted})
	for _, m := range r1Models {
		steps = append(steps, Step{Text: "R1 ← " + m, Status: StepPending})
	}
	return &Model{steps: steps}
}

// AddStep appends a new pending step, used when R2's slot list and the
// fixed R3/stats/delivery steps become known.
func (m *Model) AddStep(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, Step{Text: text, Status: StepPending})
}

// AddR2Steps appends one step per R2 slot.
func (m *Model) AddR2Steps(r2Models []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, model := range r2Models {
		m.steps = append(m.steps, Step{Text: "R2 ← " + model, Status: StepPending})
	}
}

// SetStatus transitions the step at index to status, recording duration
// when it reaches a terminal state.
func (m *Model) SetStatus(index int, status StepStatus, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.steps) {
		return
	}
	m.steps[index].Status = status
	if status == StepCompleted || status == StepFailed {
		m.steps[index].Time = elapsed.String()
	}
}

// FindByText transitions the first step whose text matches to status,
// for callers that address a step by its text rather than by index.
func (m *Model) FindByText(text string, status StepStatus, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.steps {
		if m.steps[i].Text == text {
			m.steps[i].Status = status
			if status == StepCompleted || status == StepFailed {
				m.steps[i].Time = elapsed.String()
			}
			return
		}
	}
}

// Steps returns a defensive copy of the ordered step list.
func (m *Model) Steps() []Step {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Step, len(m.steps))
	copy(out, m.steps)
	return out
}

// Progress returns the overall completion percentage:
// (completed_count / total_count) * 100. Failed steps count toward
// completion.
func (m *Model) Progress() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.steps) == 0 {
		return 0
	}
	done := 0
	for _, s := range m.steps {
		if s.Status == StepCompleted || s.Status == StepFailed {
			done++
		}
	}
	return (done * 100) / len(m.steps)
}
