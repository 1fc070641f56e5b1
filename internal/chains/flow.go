package chains

import (
	"context"
	"time"

	"homeops/backend/internal/repository"
)

// DefaultFlowWindow bounds how far back continuation detection looks.
const DefaultFlowWindow = 60 * time.Second

// FlowResult reports that the current call continues a chain suggested by
// an earlier invocation.
type FlowResult struct {
	PreviousTool string
	// ChainContext is the prior invocation's stored context, verbatim.
	ChainContext map[string]any
}

// FlowDetector checks recent audit history for a suggestion that named the
// tool now being called.
type FlowDetector struct {
	history repository.AuditStore
	window  time.Duration
}

// NewFlowDetector returns a detector over the audit history. A window of
// zero or less falls back to DefaultFlowWindow.
func NewFlowDetector(history repository.AuditStore, window time.Duration) *FlowDetector {
	if window <= 0 {
		window = DefaultFlowWindow
	}
	return &FlowDetector{history: history, window: window}
}

// Detect returns nil when the call is not a continuation. Without a session
// or user scope it never reports one, so anonymous calls cannot pick up
// another identity's chain.
func (d *FlowDetector) Detect(ctx context.Context, tool, sessionID, userID string) (*FlowResult, error) {
	if sessionID == "" && userID == "" {
		return nil, nil
	}
	prev, err := d.history.MostRecentCompleted(ctx, sessionID, userID, d.window)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, nil
	}
	calls, ok := prev.OutputResult["next_tools_to_call"].([]any)
	if !ok {
		return nil, nil
	}
	for _, c := range calls {
		entry, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if name, _ := entry["tool"].(string); name == tool {
			cctx, _ := prev.OutputResult["chain_context"].(map[string]any)
			return &FlowResult{PreviousTool: prev.ToolName, ChainContext: cctx}, nil
		}
	}
	return nil, nil
}
