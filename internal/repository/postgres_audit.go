package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"homeops/backend/pkg/models"
)

const insertInvocationSQL = `
INSERT INTO tool_invocations (id, tool_name, input_params, output_result, session_id, user_id, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// RecordInvocation persists the audit row for a finished tool call, assigning
// an ID and timestamp where missing.
func (s *PostgresStore) RecordInvocation(ctx context.Context, inv *models.ToolInvocation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if inv.Status == "" {
		inv.Status = models.InvocationCompleted
	}

	input, err := marshalJSON(inv.InputParams)
	if err != nil {
		return fmt.Errorf("encode input params: %w", err)
	}
	output, err := marshalJSON(inv.OutputResult)
	if err != nil {
		return fmt.Errorf("encode output result: %w", err)
	}

	_, err = s.db.Exec(ctx, insertInvocationSQL,
		inv.ID, inv.ToolName, input, output,
		inv.SessionID, inv.UserID, string(inv.Status), inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	return nil
}

const invocationColumns = `id, tool_name, input_params, output_result, session_id, user_id, status, created_at`

const mostRecentBySessionSQL = `
SELECT ` + invocationColumns + `
FROM tool_invocations
WHERE session_id = $1 AND status = 'completed' AND created_at >= $2
ORDER BY created_at DESC
LIMIT 1`

const mostRecentByUserSQL = `
SELECT ` + invocationColumns + `
FROM tool_invocations
WHERE user_id = $1 AND status = 'completed' AND created_at >= $2
ORDER BY created_at DESC
LIMIT 1`

// MostRecentCompleted returns the newest completed invocation within the
// window, scoped to the session when given, else the user. Nil without error
// when neither scope is given or nothing matches.
func (s *PostgresStore) MostRecentCompleted(ctx context.Context, sessionID, userID string, within time.Duration) (*models.ToolInvocation, error) {
	if sessionID == "" && userID == "" {
		return nil, nil
	}
	query, scope := mostRecentBySessionSQL, sessionID
	if sessionID == "" {
		query, scope = mostRecentByUserSQL, userID
	}
	cutoff := time.Now().UTC().Add(-within)

	inv, err := scanInvocation(s.db.QueryRow(ctx, query, scope, cutoff))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query invocation: %w", err)
	}
	return inv, nil
}

const listRecentSQL = `
SELECT ` + invocationColumns + `
FROM tool_invocations
WHERE $1 = '' OR session_id = $1
ORDER BY created_at DESC
LIMIT $2`

// ListRecent returns recent invocations, newest first. A non-empty sessionID
// restricts the result to that session.
func (s *PostgresStore) ListRecent(ctx context.Context, sessionID string, limit int) ([]*models.ToolInvocation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, listRecentSQL, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	invocations := []*models.ToolInvocation{}
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read invocations: %w", err)
	}
	return invocations, nil
}

func scanInvocation(row pgx.Row) (*models.ToolInvocation, error) {
	var inv models.ToolInvocation
	var status string
	var input, output []byte
	err := row.Scan(&inv.ID, &inv.ToolName, &input, &output,
		&inv.SessionID, &inv.UserID, &status, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	inv.Status = models.InvocationStatus(status)
	if len(input) > 0 {
		if err := json.Unmarshal(input, &inv.InputParams); err != nil {
			return nil, fmt.Errorf("decode input params: %w", err)
		}
	}
	if len(output) > 0 {
		if err := json.Unmarshal(output, &inv.OutputResult); err != nil {
			return nil, fmt.Errorf("decode output result: %w", err)
		}
	}
	return &inv, nil
}
