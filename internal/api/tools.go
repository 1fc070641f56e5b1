package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"homeops/backend/internal/auth"
	"homeops/backend/internal/services"
)

// toolDescriptor is the listing shape for one callable tool.
type toolDescriptor struct {
	Name        string         `json:"name"`
	Service     string         `json:"service"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type toolListResponse struct {
	Tools    []toolDescriptor  `json:"tools"`
	Services map[string]string `json:"services"`
}

// ListTools returns every registered tool and the known services
// (GET /api/v1/tools)
func (s *Server) ListTools(c echo.Context) error {
	tools := s.Registry.List()

	resp := toolListResponse{
		Tools:    make([]toolDescriptor, 0, len(tools)),
		Services: s.Registry.ServiceNames(),
	}
	for _, t := range tools {
		resp.Tools = append(resp.Tools, toolDescriptor{
			Name:        t.FullName(),
			Service:     t.Service,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

type executeRequest struct {
	Tool      string         `json:"tool"`
	Params    map[string]any `json:"params"`
	SessionID string         `json:"session_id"`
}

// ExecuteTool runs a tool and returns its enriched result envelope
// (POST /api/v1/tools/execute)
func (s *Server) ExecuteTool(c echo.Context) error {
	ctx := c.Request().Context()

	var req executeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.Tool == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tool is required")
	}

	result, err := s.Executor.Execute(ctx, req.Tool, req.Params, req.SessionID, auth.UserID(ctx))
	if errors.Is(err, services.ErrUnknownTool) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, result)
}

// History returns recent tool invocations, newest first
// (GET /api/v1/history)
func (s *Server) History(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}
	if limit > 200 {
		limit = 200
	}

	invocations, err := s.Audit.ListRecent(ctx, c.QueryParam("session_id"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, invocations)
}
