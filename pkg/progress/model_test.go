package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestModel_SeedAndProgress(t *testing.T) {
	m := New([]string{"p1", "p2"})
	assert.Equal(t, 33, m.Progress()) // system init is seeded completed; 1 of 3 steps done
	steps := m.Steps()
	require := assert.New(t)
	require.Len(steps, 3)
	require.Equal("system init", steps[0].Text)
	require.Equal(StepCompleted, steps[0].Status)
}

func TestModel_StepTransitionsMonotonic(t *testing.T) {
	m := New([]string{"p1"})
	m.SetStatus(1, StepInProgress, 0)
	assert.Equal(t, StepInProgress, m.Steps()[1].Status)
	m.SetStatus(1, StepCompleted, 150*time.Millisecond)
	assert.Equal(t, StepCompleted, m.Steps()[1].Status)
	assert.NotEmpty(t, m.Steps()[1].Time)
}

func TestModel_FindByTextUpdatesCorrectStep(t *testing.T) {
	m := New([]string{"p1", "p2"})
	m.FindByText("R1 ← p2", StepFailed, 10*time.Millisecond)
	steps := m.Steps()
	assert.Equal(t, StepFailed, steps[2].Status)
	assert.Equal(t, StepPending, steps[1].Status)
}

func TestModel_ProgressReflectsCompletion(t *testing.T) {
	m := New([]string{"p1", "p2"})
	total := len(m.Steps())
	m.SetStatus(1, StepCompleted, 0)
	m.SetStatus(2, StepFailed, 0)
	// system init (index 0) is seeded COMPLETED, plus the two just set.
	assert.Equal(t, 100*total/total, m.Progress())
}

func TestModel_AddR2AndFixedSteps(t *testing.T) {
	m := New([]string{"p1"})
	m.AddR2Steps([]string{"p1"})
	m.AddStep("R3")
	m.AddStep("stats")
	m.AddStep("delivery")
	assert.Len(t, m.Steps(), 6)
}
