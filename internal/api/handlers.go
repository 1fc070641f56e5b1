// Package api contains the HTTP handlers for the admin backend.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"homeops/backend/internal/integrations"
	"homeops/backend/internal/repository"
	"homeops/backend/internal/services"
	"homeops/backend/pkg/models"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies for the API server.
type Server struct {
	Admin    repository.ChainAdmin
	Audit    repository.AuditStore
	Registry *integrations.Registry
	Executor services.Executor
	DB       Pinger
}

// NewServer creates a new Server.
func NewServer(admin repository.ChainAdmin, audit repository.AuditStore, registry *integrations.Registry, executor services.Executor, db Pinger) *Server {
	return &Server{
		Admin:    admin,
		Audit:    audit,
		Registry: registry,
		Executor: executor,
		DB:       db,
	}
}

// Register mounts the health endpoint and the /api/v1 surface on the router.
func (s *Server) Register(e *echo.Echo, requireAuth echo.MiddlewareFunc) {
	e.GET("/health", s.Health)

	g := e.Group("/api/v1")
	if requireAuth != nil {
		g.Use(requireAuth)
	}
	g.GET("/chains", s.ListChains)
	g.POST("/chains", s.CreateChain)
	g.GET("/chains/:id", s.GetChain)
	g.PUT("/chains/:id", s.UpdateChain)
	g.DELETE("/chains/:id", s.DeleteChain)
	g.GET("/tools", s.ListTools)
	g.POST("/tools/execute", s.ExecuteTool)
	g.GET("/history", s.History)
}

// Health returns service health including database reachability
// (GET /health)
func (s *Server) Health(c echo.Context) error {
	status := models.HealthStatus{
		Status:    "ok",
		Service:   "homeops-backend",
		Version:   "1.0.0",
		Timestamp: time.Now().UTC(),
		Checks:    map[string]string{"database": "ok"},
	}

	if err := s.DB.Ping(c.Request().Context()); err != nil {
		status.Status = "degraded"
		status.Checks["database"] = err.Error()
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}
