package models

import (
	"time"
)

// ChainPosition locates a tool call within a chain.
type ChainPosition string

const (
	PositionStart  ChainPosition = "start"
	PositionMiddle ChainPosition = "middle"
	PositionEnd    ChainPosition = "end"
)

// ToolResult is the normalized outcome of a tool execution before enrichment.
type ToolResult struct {
	Success bool   `json:"success"`
	Result  any    `json:"result"`
	Error   string `json:"error,omitempty"`
}

// Map renders the result in the wire shape enrichment operates on.
func (r ToolResult) Map() map[string]any {
	m := map[string]any{
		"success": r.Success,
		"result":  r.Result,
	}
	if r.Error != "" {
		m["error"] = r.Error
	} else {
		m["error"] = nil
	}
	return m
}

// ChainRef identifies a chain in enrichment output.
type ChainRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ChainContext describes where the just-completed tool call sits within
// the configured chains.
type ChainContext struct {
	Position   ChainPosition `json:"position"`
	SourceTool string        `json:"source_tool"`
	Chains     []ChainRef    `json:"chains"`
	StepNumber int           `json:"step_number"`
}

// SuggestedCall is one entry of next_tools_to_call.
type SuggestedCall struct {
	Tool               string         `json:"tool"`
	Service            string         `json:"service"`
	ServiceName        string         `json:"service_name"`
	SuggestedArguments map[string]any `json:"suggested_arguments"`
	Reason             string         `json:"reason,omitempty"`
}

// HealthStatus represents service health.
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}
