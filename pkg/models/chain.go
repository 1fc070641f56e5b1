// Package models defines the domain models for the HomeOps backend.
package models

import (
	"time"
)

// Operator identifies a condition operator evaluated against a tool result.
type Operator string

const (
	OperatorSuccess        Operator = "success"
	OperatorFailed         Operator = "failed"
	OperatorEquals         Operator = "eq"
	OperatorNotEquals      Operator = "ne"
	OperatorGreaterThan    Operator = "gt"
	OperatorLessThan       Operator = "lt"
	OperatorGreaterOrEqual Operator = "gte"
	OperatorLessOrEqual    Operator = "lte"
	OperatorContains       Operator = "contains"
	OperatorNotContains    Operator = "not_contains"
	OperatorIsEmpty        Operator = "is_empty"
	OperatorIsNotEmpty     Operator = "is_not_empty"
	OperatorRegex          Operator = "regex"
)

// Valid reports whether the operator is one of the supported set.
func (o Operator) Valid() bool {
	switch o {
	case OperatorSuccess, OperatorFailed,
		OperatorEquals, OperatorNotEquals,
		OperatorGreaterThan, OperatorLessThan,
		OperatorGreaterOrEqual, OperatorLessOrEqual,
		OperatorContains, OperatorNotContains,
		OperatorIsEmpty, OperatorIsNotEmpty,
		OperatorRegex:
		return true
	}
	return false
}

// RequiresField reports whether the operator reads a field from the result.
func (o Operator) RequiresField() bool {
	switch o {
	case OperatorSuccess, OperatorFailed:
		return false
	}
	return o.Valid()
}

// RequiresValue reports whether the operator compares against a configured value.
func (o Operator) RequiresValue() bool {
	switch o {
	case OperatorEquals, OperatorNotEquals,
		OperatorGreaterThan, OperatorLessThan,
		OperatorGreaterOrEqual, OperatorLessOrEqual,
		OperatorContains, OperatorNotContains,
		OperatorRegex:
		return true
	}
	return false
}

// ExecutionMode is an advisory hint for how suggested targets may be run.
type ExecutionMode string

const (
	ExecutionSequential ExecutionMode = "sequential"
	ExecutionParallel   ExecutionMode = "parallel"
)

// Chain represents a configured tool chain. Higher priority chains are
// evaluated first when several share an entry trigger.
type Chain struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Description string      `json:"description,omitempty" db:"description"`
	Color       string      `json:"color" db:"color"`
	Priority    int         `json:"priority" db:"priority"`
	Enabled     bool        `json:"enabled" db:"enabled"`
	Steps       []ChainStep `json:"steps,omitempty"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// ChainStep represents a single rule inside a chain. StepOrder 0 marks a
// chain entry point; higher orders only fire as continuations.
type ChainStep struct {
	ID            string        `json:"id" db:"id"`
	ChainID       string        `json:"chain_id" db:"chain_id"`
	StepOrder     int           `json:"step_order" db:"step_order"`
	SourceService string        `json:"source_service" db:"source_service"`
	SourceTool    string        `json:"source_tool" db:"source_tool"`
	Condition     ConditionSpec `json:"condition"`
	Comment       string        `json:"comment,omitempty" db:"comment"`
	Enabled       bool          `json:"enabled" db:"enabled"`
	Targets       []StepTarget  `json:"targets,omitempty"`
}

// ConditionSpec is the persisted condition of a step. Field and Value are
// optional depending on the operator.
type ConditionSpec struct {
	Operator Operator `json:"operator" db:"condition_operator"`
	Field    string   `json:"field,omitempty" db:"condition_field"`
	Value    string   `json:"value,omitempty" db:"condition_value"`
}

// StepTarget represents a tool call suggested when its step's condition holds.
type StepTarget struct {
	ID               string         `json:"id" db:"id"`
	StepID           string         `json:"step_id" db:"step_id"`
	TargetService    string         `json:"target_service" db:"target_service"`
	TargetTool       string         `json:"target_tool" db:"target_tool"`
	TargetOrder      int            `json:"target_order" db:"target_order"`
	ExecutionMode    ExecutionMode  `json:"execution_mode" db:"execution_mode"`
	ArgumentMappings map[string]any `json:"argument_mappings,omitempty" db:"argument_mappings"` // JSONB
	Comment          string         `json:"comment,omitempty" db:"comment"`
	Enabled          bool           `json:"enabled" db:"enabled"`
}
