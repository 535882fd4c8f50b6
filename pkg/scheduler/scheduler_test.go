package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultrai-run/ultrai/pkg/artifact"
	"github.com/ultrai-run/ultrai/pkg/config"
	"github.com/ultrai-run/ultrai/pkg/gateway"
)

// scripted models a gateway whose responses are keyed by model and fail
// for a configurable number of leading calls before (optionally)
// succeeding, letting tests exercise the primary-then-fallback chain
// deterministically.
type scripted struct {
	mu        sync.Mutex
	failFirst map[string]int
	calls     map[string]int
	err       map[string]error
	text      map[string]string
}

func newScripted() *scripted {
	return &scripted{
		failFirst: map[string]int{},
		calls:     map[string]int{},
		err:       map[string]error{},
		text:      map[string]string{},
	}
}

func (s *scripted) Call(ctx context.Context, model string, messages []gateway.Message, timeout time.Duration) (*gateway.CallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[model]++

	if n := s.failFirst[model]; n >= s.calls[model] {
		if e, ok := s.err[model]; ok {
			return nil, e
		}
		return nil, &gateway.CallError{Model: model, Class: gateway.ErrMidStreamError}
	}

	text := s.text[model]
	if text == "" {
		text = "draft from " + model
	}
	return &gateway.CallResult{Text: text, FinishReason: "stop", Ms: 1}, nil
}

func (s *scripted) callCount(model string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[model]
}

func testSchedulerCfg() *config.SchedulerConfig {
	cfg := config.DefaultSchedulerConfig()
	cfg.PrimaryTimeout = 2 * time.Second
	cfg.FallbackTimeout = 2 * time.Second
	return cfg
}

func TestScheduler_HappyPath(t *testing.T) {
	gw := newScripted()
	store := artifact.NewStore(t.TempDir())
	s := NewScheduler(gw, store, testSchedulerCfg())

	slots := []Slot{
		{Primary: "p1", Fallback: "f1"},
		{Primary: "p2", Fallback: "f2"},
		{Primary: "p3", Fallback: "f3"},
	}

	result, err := s.RunRound(t.Context(), "run1", RoundInitial, slots, BuildInitialPrompt("hi"), 10, 0, "03_initial")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	require.Len(t, result.Records, 3)
	assert.Equal(t, "p1", result.Records[0].Model)
	assert.Equal(t, "p2", result.Records[1].Model)
	assert.Equal(t, "p3", result.Records[2].Model)
	assert.Empty(t, result.FailedModels)

	var onDisk []Record
	require.NoError(t, store.Read("run1", "03_initial", &onDisk))
	assert.Len(t, onDisk, 3)
}

func TestScheduler_HonorsConfiguredMaxConcurrency(t *testing.T) {
	gw := newScripted()
	store := artifact.NewStore(t.TempDir())
	cfg := testSchedulerCfg()
	cfg.MaxConcurrency = 1
	s := NewScheduler(gw, store, cfg)

	slots := []Slot{
		{Primary: "p1", Fallback: "f1"},
		{Primary: "p2", Fallback: "f2"},
		{Primary: "p3", Fallback: "f3"},
	}

	result, err := s.RunRound(t.Context(), "run1", RoundInitial, slots, BuildInitialPrompt("hi"), 10, 0, "03_initial")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Concurrency)
}

func TestScheduler_PrimaryFailsFallbackSucceeds(t *testing.T) {
	gw := newScripted()
	gw.failFirst["p1"] = 2 // both primary attempts fail
	store := artifact.NewStore(t.TempDir())
	s := NewScheduler(gw, store, testSchedulerCfg())

	slots := []Slot{{Primary: "p1", Fallback: "f1"}}

	result, err := s.RunRound(t.Context(), "run1", RoundInitial, slots, BuildInitialPrompt("hi"), 10, 0, "03_initial")
	require.NoError(t, err)
	assert.Equal(t, "f1", result.Records[0].Model)
	assert.False(t, result.Records[0].Error)
	assert.Contains(t, result.FailedModels, "p1")
	assert.Equal(t, 2, gw.callCount("p1"))

	var status struct {
		Status  string `json:"status"`
		Details struct {
			FailedModels []string `json:"failed_models"`
		} `json:"details"`
	}
	require.NoError(t, store.Read("run1", "03_initial_status", &status))
	assert.Equal(t, "DEGRADED", status.Status)
	assert.Contains(t, status.Details.FailedModels, "p1")
}

func TestScheduler_BothFailYieldsErrorRecord(t *testing.T) {
	gw := newScripted()
	gw.failFirst["p1"] = 2
	gw.failFirst["f1"] = 1
	store := artifact.NewStore(t.TempDir())
	s := NewScheduler(gw, store, testSchedulerCfg())

	slots := []Slot{{Primary: "p1", Fallback: "f1"}}

	result, err := s.RunRound(t.Context(), "run1", RoundInitial, slots, BuildInitialPrompt("hi"), 10, 0, "03_initial")
	require.NoError(t, err)
	assert.True(t, result.Records[0].Error)
	assert.Equal(t, "p1", result.Records[0].Model)
}

func TestScheduler_PartialLossPreservesQuorum(t *testing.T) {
	gw := newScripted()
	gw.failFirst["p3"] = 2
	gw.failFirst["f3"] = 1
	store := artifact.NewStore(t.TempDir())
	s := NewScheduler(gw, store, testSchedulerCfg())

	slots := []Slot{
		{Primary: "p1", Fallback: "f1"},
		{Primary: "p2", Fallback: "f2"},
		{Primary: "p3", Fallback: "f3"},
	}

	result, err := s.RunRound(t.Context(), "run1", RoundInitial, slots, BuildInitialPrompt("hi"), 10, 0, "03_initial")
	require.NoError(t, err)
	require.Len(t, result.Records, 3)
	assert.Equal(t, StatusDegraded, result.Status)

	nonError := 0
	for _, r := range result.Records {
		if !r.Error {
			nonError++
		}
	}
	assert.Equal(t, 2, nonError)
}

func TestScheduler_RateLimitFastFailsToFallback(t *testing.T) {
	gw := newScripted()
	gw.err["p1"] = &gateway.CallError{Model: "p1", Class: gateway.ErrRateLimited}
	gw.failFirst["p1"] = 1
	store := artifact.NewStore(t.TempDir())
	s := NewScheduler(gw, store, testSchedulerCfg())

	slots := []Slot{{Primary: "p1", Fallback: "f1"}}

	result, err := s.RunRound(t.Context(), "run1", RoundInitial, slots, BuildInitialPrompt("hi"), 10, 0, "03_initial")
	require.NoError(t, err)
	assert.Equal(t, "f1", result.Records[0].Model)
	// Rate limit on the first attempt skips the remaining primary attempts.
	assert.Equal(t, 1, gw.callCount("p1"))
}

func TestScheduler_RecordOrderMatchesSlotOrder(t *testing.T) {
	gw := newScripted()
	store := artifact.NewStore(t.TempDir())
	s := NewScheduler(gw, store, testSchedulerCfg())

	slots := []Slot{
		{Primary: "slow", Fallback: "slow-f"},
		{Primary: "fast", Fallback: "fast-f"},
	}

	result, err := s.RunRound(t.Context(), "run1", RoundInitial, slots, BuildInitialPrompt("hi"), 10, 0, "03_initial")
	require.NoError(t, err)
	assert.Equal(t, "slow", result.Records[0].Model)
	assert.Equal(t, "fast", result.Records[1].Model)
}

func TestBuildMetaPrompt_ExcludesErrorRecordsAndTruncates(t *testing.T) {
	longText := make([]byte, 600)
	for i := range longText {
		longText[i] = 'x'
	}
	initial := []Record{
		{Model: "p1", Text: string(longText), Error: false},
		{Model: "p2", Text: "short", Error: true},
	}
	build := BuildMetaPrompt("query", initial)
	msgs := build("p1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "META revision round (R2)", msgs[0].Content)
	assert.Contains(t, msgs[1].Content, "- p1: "+string(longText[:500]))
	assert.NotContains(t, msgs[1].Content, "p2:")
}
