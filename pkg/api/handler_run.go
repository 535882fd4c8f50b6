package api

import (
	"net/http"
	"os"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/ultrai-run/ultrai/pkg/coordinator"
	"github.com/ultrai-run/ultrai/pkg/run"
	"github.com/ultrai-run/ultrai/pkg/validate"
)

// startRunHandler handles POST /runs. Creates the run directory and
// launches the pipeline in the background, returning immediately with
// run_id so the caller can poll status.
func (s *Server) startRunHandler(c *echo.Context) error {
	var req StartRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if req.Cocktail == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "cocktail field is required")
	}

	runID := run.NewAPIRunID(req.Cocktail, time.Now())

	raw := validate.Raw{
		Query:    req.Query,
		Analysis: req.Analysis,
		Cocktail: req.Cocktail,
		Addons:   req.Addons,
	}
	if err := s.coordinator.StartRun(raw, runID); err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusAccepted, &StartRunResponse{RunID: runID, Status: "queued"})
}

// listRunsHandler handles GET /runs, listing run directories under the
// runs root with their current status.json phase.
func (s *Server) listRunsHandler(c *echo.Context) error {
	entries, err := os.ReadDir(s.store.RunsRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return c.JSON(http.StatusOK, &ListRunsResponse{Runs: []RunSummary{}})
		}
		return mapServiceError(err)
	}

	runs := make([]RunSummary, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var status coordinator.StatusArtifact
		if err := s.store.Read(e.Name(), "status", &status); err != nil {
			continue
		}
		runs = append(runs, RunSummary{
			RunID:        e.Name(),
			CurrentPhase: string(status.CurrentPhase),
			Completed:    status.Completed,
		})
	}

	return c.JSON(http.StatusOK, &ListRunsResponse{Runs: runs})
}

// runStatusHandler handles GET /runs/:id/status.
func (s *Server) runStatusHandler(c *echo.Context) error {
	runID := c.Param("id")

	var status coordinator.StatusArtifact
	if err := s.store.Read(runID, "status", &status); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &status)
}

// listArtifactsHandler handles GET /runs/:id/artifacts.
func (s *Server) listArtifactsHandler(c *echo.Context) error {
	runID := c.Param("id")

	names, err := s.store.List(runID)
	if err != nil {
		return mapServiceError(err)
	}

	stripped := make([]string, len(names))
	for i, n := range names {
		stripped[i] = n[:len(n)-len(".json")]
	}

	return c.JSON(http.StatusOK, &ArtifactListResponse{RunID: runID, Artifacts: stripped})
}

// getArtifactHandler handles GET /runs/:id/artifacts/:name, forwarding the
// artifact's raw JSON verbatim.
func (s *Server) getArtifactHandler(c *echo.Context) error {
	runID := c.Param("id")
	name := c.Param("name")

	raw, err := s.store.ReadRaw(runID, name)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSONBlob(http.StatusOK, raw)
}
