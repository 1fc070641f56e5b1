package services

import "context"

// Executor runs a tool call end to end: execution, enrichment, audit.
type Executor interface {
	// Execute runs the named tool and returns the enriched result envelope.
	Execute(ctx context.Context, toolName string, params map[string]any, sessionID, userID string) (map[string]any, error)
}
