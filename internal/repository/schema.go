package repository

import (
	"context"
	"fmt"
)

// schemaStatements are applied one by one; pgx's extended protocol does not
// accept multi-statement strings.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tool_chains (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '#6366f1',
		priority INT NOT NULL DEFAULT 0,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chain_steps (
		id UUID PRIMARY KEY,
		chain_id UUID NOT NULL REFERENCES tool_chains(id) ON DELETE CASCADE,
		step_order INT NOT NULL DEFAULT 0,
		source_service TEXT NOT NULL,
		source_tool TEXT NOT NULL,
		condition_operator TEXT NOT NULL,
		condition_field TEXT,
		condition_value TEXT,
		comment TEXT NOT NULL DEFAULT '',
		enabled BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS step_targets (
		id UUID PRIMARY KEY,
		step_id UUID NOT NULL REFERENCES chain_steps(id) ON DELETE CASCADE,
		target_service TEXT NOT NULL,
		target_tool TEXT NOT NULL,
		target_order INT NOT NULL DEFAULT 0,
		execution_mode TEXT NOT NULL DEFAULT 'sequential',
		argument_mappings JSONB,
		comment TEXT NOT NULL DEFAULT '',
		enabled BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS tool_invocations (
		id UUID PRIMARY KEY,
		tool_name TEXT NOT NULL,
		input_params JSONB,
		output_result JSONB,
		session_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'completed',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chain_steps_trigger
		ON chain_steps (source_service, source_tool)`,
	`CREATE INDEX IF NOT EXISTS idx_step_targets_tool
		ON step_targets (target_service, target_tool)`,
	`CREATE INDEX IF NOT EXISTS idx_tool_invocations_session
		ON tool_invocations (session_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_tool_invocations_user
		ON tool_invocations (user_id, created_at DESC)`,
}

// Migrate creates the schema if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
