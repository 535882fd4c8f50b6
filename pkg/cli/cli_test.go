package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultrai-run/ultrai/pkg/artifact"
	"github.com/ultrai-run/ultrai/pkg/config"
	"github.com/ultrai-run/ultrai/pkg/coordinator"
	"github.com/ultrai-run/ultrai/pkg/gateway"
	"github.com/ultrai-run/ultrai/pkg/validate"
)

type fakeGateway struct {
	ready []string
}

func (f *fakeGateway) ListModels(ctx context.Context) ([]string, error) {
	return f.ready, nil
}

func (f *fakeGateway) Call(ctx context.Context, model string, messages []gateway.Message, timeout time.Duration) (*gateway.CallResult, error) {
	return &gateway.CallResult{Text: "draft from " + model, FinishReason: "stop", Ms: 1}, nil
}

func testShell(t *testing.T) (*Shell, *artifact.Store) {
	t.Helper()
	cocktail := config.Cocktail{
		Primaries: []string{"model-a", "model-b", "model-c"},
		Fallbacks: []string{"model-a-fb", "model-b-fb", "model-c-fb"},
	}
	registry := config.NewCocktailRegistry(map[string]config.Cocktail{"default": cocktail})

	runsDir := t.TempDir()
	store := artifact.NewStore(runsDir)
	cfg := &config.Config{
		Scheduler: &config.SchedulerConfig{
			PrimaryAttempts: 1,
			PrimaryTimeout:  time.Second,
			FallbackTimeout: time.Second,
			Quorum:          2,
			MaxConcurrency:  50,
		},
		Cocktails: registry,
		RunsDir:   runsDir,
	}
	gw := &fakeGateway{ready: []string{"model-a", "model-b", "model-c"}}
	coord := coordinator.New(gw, store, cfg)

	s := New(coord, store, registry)
	var buf bytes.Buffer
	s.out = &buf
	return s, store
}

func TestShell_AwaitTerminalReturnsZeroOnDelivery(t *testing.T) {
	s, store := testShell(t)

	runID := "20260101_000000"
	raw := validate.Raw{Query: "what is Go?", Analysis: "Synthesis", Cocktail: "default"}
	require.NoError(t, s.coordinator.StartRun(raw, runID))

	code := s.awaitTerminal(t.Context(), runID)
	assert.Equal(t, 0, code)

	var status coordinator.StatusArtifact
	require.NoError(t, store.Read(runID, "status", &status))
	assert.Equal(t, coordinator.StateDelivered, status.CurrentPhase)
}

func TestShell_AwaitTerminalReturnsOneOnFailure(t *testing.T) {
	s, _ := testShell(t)

	runID := "20260101_000001"
	raw := validate.Raw{Query: "", Analysis: "Synthesis", Cocktail: "default"}
	require.NoError(t, s.coordinator.StartRun(raw, runID))

	code := s.awaitTerminal(t.Context(), runID)
	assert.Equal(t, 1, code)
}

func TestShell_AwaitTerminalRespectsContextCancellation(t *testing.T) {
	s, _ := testShell(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	code := s.awaitTerminal(ctx, "no-such-run")
	assert.Equal(t, 1, code)
}

func TestShell_CocktailCompleterOffersConfiguredNames(t *testing.T) {
	s, _ := testShell(t)
	completer := s.cocktailCompleter()
	names, _ := completer.Do([]rune(""), 0)
	require.Len(t, names, 1)
	assert.Equal(t, "default ", string(names[0])) // PcItem appends the trailing space readline inserts after a completed word
}
