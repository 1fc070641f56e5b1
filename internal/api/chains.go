package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"homeops/backend/internal/repository"
	"homeops/backend/pkg/models"
)

// ListChains returns all configured chains
// (GET /api/v1/chains)
func (s *Server) ListChains(c echo.Context) error {
	ctx := c.Request().Context()

	chains, err := s.Admin.ListChains(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, chains)
}

// GetChain returns one chain with its steps and targets
// (GET /api/v1/chains/:id)
func (s *Server) GetChain(c echo.Context) error {
	ctx := c.Request().Context()

	chain, err := s.Admin.GetChain(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "chain not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, chain)
}

// CreateChain creates a chain together with its steps and targets
// (POST /api/v1/chains)
func (s *Server) CreateChain(c echo.Context) error {
	ctx := c.Request().Context()

	var chain models.Chain
	if err := c.Bind(&chain); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if err := validateChain(&chain); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := s.Admin.CreateChain(ctx, &chain); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save chain: "+err.Error())
	}

	return c.JSON(http.StatusCreated, chain)
}

// UpdateChain replaces a chain document under its path ID
// (PUT /api/v1/chains/:id)
func (s *Server) UpdateChain(c echo.Context) error {
	ctx := c.Request().Context()

	var chain models.Chain
	if err := c.Bind(&chain); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	chain.ID = c.Param("id")
	if err := validateChain(&chain); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	err := s.Admin.UpdateChain(ctx, &chain)
	if errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "chain not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save chain: "+err.Error())
	}

	return c.JSON(http.StatusOK, chain)
}

// DeleteChain removes a chain and everything under it
// (DELETE /api/v1/chains/:id)
func (s *Server) DeleteChain(c echo.Context) error {
	ctx := c.Request().Context()

	err := s.Admin.DeleteChain(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "chain not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

// validateChain rejects chains the engine could not act on. Field resolution
// paths and argument mappings stay unchecked: they are evaluated leniently at
// match time.
func validateChain(chain *models.Chain) error {
	if chain.Name == "" {
		return errors.New("chain name is required")
	}
	for i := range chain.Steps {
		step := &chain.Steps[i]
		if step.SourceService == "" || step.SourceTool == "" {
			return fmt.Errorf("step %d: source service and tool are required", i)
		}
		if !step.Condition.Operator.Valid() {
			return fmt.Errorf("step %d: unknown condition operator %q", i, step.Condition.Operator)
		}
		for j := range step.Targets {
			target := &step.Targets[j]
			if target.TargetService == "" || target.TargetTool == "" {
				return fmt.Errorf("step %d target %d: target service and tool are required", i, j)
			}
		}
	}
	return nil
}
