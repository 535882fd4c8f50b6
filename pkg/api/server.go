// Package api provides the HTTP control plane for the orchestration
// engine: submitting runs, polling their status, and retrieving their
// artifact trail.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/ultrai-run/ultrai/pkg/artifact"
	"github.com/ultrai-run/ultrai/pkg/config"
	"github.com/ultrai-run/ultrai/pkg/coordinator"
	"github.com/ultrai-run/ultrai/pkg/version"
)

// modelLister is the subset of gateway.Client the health handler depends
// on, kept narrow so tests can fake it.
type modelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Server is the HTTP API server.
type Server struct {
	echo        *echo.Echo
	httpServer  *http.Server
	cfg         *config.Config
	coordinator *coordinator.Coordinator
	store       *artifact.Store
	gateway     modelLister
}

// NewServer creates a new API server with Echo v5.
func NewServer(cfg *config.Config, coord *coordinator.Coordinator, store *artifact.Store, gw modelLister) *Server {
	e := echo.New()

	s := &Server{
		echo:        e,
		cfg:         cfg,
		coordinator: coord,
		store:       store,
		gateway:     gw,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(1024 * 1024))

	s.echo.GET("/health", s.healthHandler)

	s.echo.POST("/runs", s.startRunHandler)
	s.echo.GET("/runs", s.listRunsHandler)
	s.echo.GET("/runs/:id/status", s.runStatusHandler)
	s.echo.GET("/runs/:id/artifacts", s.listArtifactsHandler)
	s.echo.GET("/runs/:id/artifacts/:name", s.getArtifactHandler)
}

// Start starts the HTTP server on the given address and blocks until it
// stops, returning http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	gwHealth := GatewayHealth{Reachable: true}
	if _, err := s.gateway.ListModels(reqCtx); err != nil {
		gwHealth.Reachable = false
		gwHealth.Message = err.Error()
	}

	status := "healthy"
	if !gwHealth.Reachable {
		status = "degraded"
	}

	return c.JSON(http.StatusOK, &HealthResponse{
		Status:  status,
		Version: version.Full(),
		Gateway: gwHealth,
		Configuration: ConfigStats{
			Cocktails: s.cfg.Stats().Cocktails,
		},
		SchedulerStats: SchedulerHealth{
			ActiveRuns: s.coordinator.ActiveRunCount(),
		},
	})
}
