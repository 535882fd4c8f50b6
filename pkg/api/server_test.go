package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultrai-run/ultrai/pkg/artifact"
	"github.com/ultrai-run/ultrai/pkg/config"
	"github.com/ultrai-run/ultrai/pkg/coordinator"
	"github.com/ultrai-run/ultrai/pkg/gateway"
)

type fakeGateway struct {
	ready []string
	err   error
}

func (f *fakeGateway) ListModels(ctx context.Context) ([]string, error) {
	return f.ready, f.err
}

func (f *fakeGateway) Call(ctx context.Context, model string, messages []gateway.Message, timeout time.Duration) (*gateway.CallResult, error) {
	return &gateway.CallResult{Text: "draft from " + model, FinishReason: "stop", Ms: 1}, nil
}

func testServer(t *testing.T, gw *fakeGateway) (*Server, *artifact.Store) {
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
	coord := coordinator.New(gw, store, cfg)
	return NewServer(cfg, coord, store, gw), store
}

func TestHealthHandler_ReportsGatewayReachable(t *testing.T) {
	s, _ := testServer(t, &fakeGateway{ready: []string{"model-a", "model-b"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.Gateway.Reachable)
	assert.Equal(t, 1, resp.Configuration.Cocktails)
}

func TestHealthHandler_ReportsDegradedWhenGatewayUnreachable(t *testing.T) {
	s, _ := testServer(t, &fakeGateway{err: assertErr{}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.False(t, resp.Gateway.Reachable)
}

func TestStartRunHandler_RejectsEmptyQuery(t *testing.T) {
	s, _ := testServer(t, &fakeGateway{ready: []string{"model-a", "model-b", "model-c"}})

	body, _ := json.Marshal(StartRunRequest{Cocktail: "default"})
	req := httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartRunHandler_AcceptsValidRequestAndEventuallyDelivers(t *testing.T) {
	s, store := testServer(t, &fakeGateway{ready: []string{"model-a", "model-b", "model-c"}})

	body, _ := json.Marshal(StartRunRequest{Query: "what is Go?", Analysis: "Synthesis", Cocktail: "default"})
	req := httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var started StartRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.NotEmpty(t, started.RunID)
	assert.Equal(t, "queued", started.Status)

	deadline := time.Now().Add(5 * time.Second)
	var status coordinator.StatusArtifact
	for time.Now().Before(deadline) {
		if err := store.Read(started.RunID, "status", &status); err == nil &&
			(status.CurrentPhase == coordinator.StateDelivered || status.CurrentPhase == coordinator.StateFailed) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, coordinator.StateDelivered, status.CurrentPhase)

	statusReq := httptest.NewRequest(http.MethodGet, "/runs/"+started.RunID+"/status", nil)
	statusRec := httptest.NewRecorder()
	s.echo.ServeHTTP(statusRec, statusReq)
	assert.Equal(t, http.StatusOK, statusRec.Code)

	artifactsReq := httptest.NewRequest(http.MethodGet, "/runs/"+started.RunID+"/artifacts", nil)
	artifactsRec := httptest.NewRecorder()
	s.echo.ServeHTTP(artifactsRec, artifactsReq)
	assert.Equal(t, http.StatusOK, artifactsRec.Code)

	var artifacts ArtifactListResponse
	require.NoError(t, json.Unmarshal(artifactsRec.Body.Bytes(), &artifacts))
	assert.Contains(t, artifacts.Artifacts, "00_ready")

	artifactReq := httptest.NewRequest(http.MethodGet, "/runs/"+started.RunID+"/artifacts/00_ready", nil)
	artifactRec := httptest.NewRecorder()
	s.echo.ServeHTTP(artifactRec, artifactReq)
	assert.Equal(t, http.StatusOK, artifactRec.Code)
}

func TestRunStatusHandler_UnknownRunReturnsNotFound(t *testing.T) {
	s, _ := testServer(t, &fakeGateway{ready: []string{"model-a", "model-b", "model-c"}})

	req := httptest.NewRequest(http.MethodGet, "/runs/no-such-run/status", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunStatusHandler_MalformedRunIDReturnsBadRequest(t *testing.T) {
	s, _ := testServer(t, &fakeGateway{ready: []string{"model-a", "model-b", "model-c"}})

	req := httptest.NewRequest(http.MethodGet, "/runs/bad%20id/status", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRunsHandler_EmptyRunsRoot(t *testing.T) {
	s, _ := testServer(t, &fakeGateway{ready: []string{"model-a", "model-b", "model-c"}})

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp ListRunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Runs)
}

// assertErr is a minimal error used to script gateway failures.
type assertErr struct{}

func (assertErr) Error() string { return "simulated gateway failure" }
