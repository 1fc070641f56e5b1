package models

import (
	"time"
)

// InvocationStatus represents the terminal state of a tool invocation.
// A tool that ran and reported failure still completes; failed is reserved
// for infrastructure errors around the call itself.
type InvocationStatus string

const (
	InvocationCompleted InvocationStatus = "completed"
	InvocationFailed    InvocationStatus = "failed"
)

// ToolInvocation is the audit record written after every tool execution.
// InputParams and OutputResult are stored as JSONB; OutputResult holds the
// enriched result, including any suggested next calls, which is what
// continuation detection reads back.
type ToolInvocation struct {
	ID           string           `json:"id" db:"id"`
	ToolName     string           `json:"tool_name" db:"tool_name"`
	InputParams  map[string]any   `json:"input_params,omitempty" db:"input_params"`
	OutputResult map[string]any   `json:"output_result,omitempty" db:"output_result"`
	SessionID    string           `json:"session_id,omitempty" db:"session_id"`
	UserID       string           `json:"user_id,omitempty" db:"user_id"`
	Status       InvocationStatus `json:"status" db:"status"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}
