package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"homeops/backend/internal/chains"
	"homeops/backend/internal/integrations"
	"homeops/backend/internal/repository"
	"homeops/backend/pkg/models"
)

// ErrUnknownTool is returned when a tool name matches no registered tool.
var ErrUnknownTool = errors.New("unknown tool")

// ToolService executes registered tools, enriches their results with chain
// suggestions, and records every invocation.
type ToolService struct {
	registry *integrations.Registry
	enricher *chains.Enricher
	audit    repository.AuditStore
	logger   *zap.SugaredLogger
}

// NewToolService creates a new ToolService.
func NewToolService(registry *integrations.Registry, enricher *chains.Enricher, audit repository.AuditStore, logger *zap.SugaredLogger) *ToolService {
	return &ToolService{
		registry: registry,
		enricher: enricher,
		audit:    audit,
		logger:   logger,
	}
}

// Execute runs the named tool and returns the enriched result envelope. A
// tool that runs and reports a problem still yields an envelope; only an
// unregistered tool name is an error.
func (s *ToolService) Execute(ctx context.Context, toolName string, params map[string]any, sessionID, userID string) (map[string]any, error) {
	tool := s.registry.Get(toolName)
	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, toolName)
	}

	payload, err := tool.Handler(ctx, params)
	envelope := models.ToolResult{Success: err == nil, Result: payload}
	if err != nil {
		envelope.Error = err.Error()
		s.logger.Warnw("tool reported failure", "tool", toolName, "error", err)
	}

	enriched := s.enricher.Enrich(ctx, toolName, envelope.Map(), params, sessionID, userID)

	status := models.InvocationCompleted
	if ctx.Err() != nil {
		status = models.InvocationFailed
	}
	inv := &models.ToolInvocation{
		ToolName:     toolName,
		InputParams:  params,
		OutputResult: enriched,
		SessionID:    sessionID,
		UserID:       userID,
		Status:       status,
	}
	// Audit writes never block the response; a lost row only costs the next
	// call its continuation context.
	if err := s.audit.RecordInvocation(ctx, inv); err != nil {
		s.logger.Errorw("failed to record invocation", "tool", toolName, "error", err)
	}

	s.logger.Debugw("tool executed", "tool", toolName, "success", envelope.Success)
	return enriched, nil
}
