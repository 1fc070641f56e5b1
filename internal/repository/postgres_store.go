package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"homeops/backend/pkg/models"
)

// PostgresStore implements ChainStore, ChainAdmin, and AuditStore over a
// pgx connection pool.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *zap.SugaredLogger
}

// NewPostgresStore creates a store backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool, logger *zap.SugaredLogger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

const findStepsSQL = `
SELECT s.id, s.chain_id, s.step_order, s.source_service, s.source_tool,
       s.condition_operator, COALESCE(s.condition_field, ''), COALESCE(s.condition_value, ''),
       s.comment, s.enabled,
       c.id, c.name, c.description, c.color, c.priority, c.enabled, c.created_at, c.updated_at
FROM chain_steps s
JOIN tool_chains c ON c.id = s.chain_id
WHERE s.enabled AND c.enabled
  AND s.source_service = $1 AND s.source_tool = $2
  AND (NOT $3 OR s.step_order = 0)
ORDER BY c.priority DESC, s.step_order ASC`

const enabledTargetsSQL = `
SELECT id, step_id, target_service, target_tool, target_order, execution_mode,
       argument_mappings, comment, enabled
FROM step_targets
WHERE enabled AND step_id = ANY($1::uuid[])
ORDER BY target_order ASC, id ASC`

// FindSteps returns the enabled steps of enabled chains triggered by the
// given tool, with their enabled targets, ordered by chain priority
// descending and step order ascending.
func (s *PostgresStore) FindSteps(ctx context.Context, sourceService, sourceTool string, entryOnly bool) ([]StepBinding, error) {
	rows, err := s.db.Query(ctx, findStepsSQL, sourceService, sourceTool, entryOnly)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var bindings []StepBinding
	var stepIDs []string
	for rows.Next() {
		var b StepBinding
		var op string
		if err := rows.Scan(
			&b.Step.ID, &b.Step.ChainID, &b.Step.StepOrder, &b.Step.SourceService, &b.Step.SourceTool,
			&op, &b.Step.Condition.Field, &b.Step.Condition.Value,
			&b.Step.Comment, &b.Step.Enabled,
			&b.Chain.ID, &b.Chain.Name, &b.Chain.Description, &b.Chain.Color,
			&b.Chain.Priority, &b.Chain.Enabled, &b.Chain.CreatedAt, &b.Chain.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		b.Step.Condition.Operator = models.Operator(op)
		b.Targets = []models.StepTarget{}
		bindings = append(bindings, b)
		stepIDs = append(stepIDs, b.Step.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read steps: %w", err)
	}
	if len(bindings) == 0 {
		return bindings, nil
	}

	targets, err := s.targetsByStep(ctx, enabledTargetsSQL, stepIDs)
	if err != nil {
		return nil, err
	}
	for i := range bindings {
		if ts, ok := targets[bindings[i].Step.ID]; ok {
			bindings[i].Targets = ts
		}
	}
	return bindings, nil
}

const findTargetsOfSQL = `
SELECT t.id, t.step_id, t.target_service, t.target_tool, t.target_order, t.execution_mode,
       t.argument_mappings, t.comment, t.enabled,
       s.id, s.chain_id, s.step_order, s.source_service, s.source_tool,
       s.condition_operator, COALESCE(s.condition_field, ''), COALESCE(s.condition_value, ''),
       s.comment, s.enabled,
       c.id, c.name, c.description, c.color, c.priority, c.enabled, c.created_at, c.updated_at
FROM step_targets t
JOIN chain_steps s ON s.id = t.step_id
JOIN tool_chains c ON c.id = s.chain_id
WHERE t.enabled AND s.enabled AND c.enabled
  AND t.target_service = $1 AND t.target_tool = $2
ORDER BY c.priority DESC, s.step_order ASC, t.target_order ASC`

// FindTargetsOf returns every enabled target matching the given tool, with
// its owning step and chain, ordered by chain priority descending.
func (s *PostgresStore) FindTargetsOf(ctx context.Context, targetService, targetTool string) ([]TargetBinding, error) {
	rows, err := s.db.Query(ctx, findTargetsOfSQL, targetService, targetTool)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	var bindings []TargetBinding
	for rows.Next() {
		var b TargetBinding
		var op, mode string
		var mappings []byte
		if err := rows.Scan(
			&b.Target.ID, &b.Target.StepID, &b.Target.TargetService, &b.Target.TargetTool,
			&b.Target.TargetOrder, &mode, &mappings, &b.Target.Comment, &b.Target.Enabled,
			&b.Step.ID, &b.Step.ChainID, &b.Step.StepOrder, &b.Step.SourceService, &b.Step.SourceTool,
			&op, &b.Step.Condition.Field, &b.Step.Condition.Value,
			&b.Step.Comment, &b.Step.Enabled,
			&b.Chain.ID, &b.Chain.Name, &b.Chain.Description, &b.Chain.Color,
			&b.Chain.Priority, &b.Chain.Enabled, &b.Chain.CreatedAt, &b.Chain.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		b.Target.ExecutionMode = models.ExecutionMode(mode)
		b.Step.Condition.Operator = models.Operator(op)
		if len(mappings) > 0 {
			if err := json.Unmarshal(mappings, &b.Target.ArgumentMappings); err != nil {
				return nil, fmt.Errorf("decode argument mappings: %w", err)
			}
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	return bindings, nil
}

func (s *PostgresStore) targetsByStep(ctx context.Context, query string, stepIDs []string) (map[string][]models.StepTarget, error) {
	rows, err := s.db.Query(ctx, query, stepIDs)
	if err != nil {
		return nil, fmt.Errorf("query step targets: %w", err)
	}
	defer rows.Close()

	targets := make(map[string][]models.StepTarget)
	for rows.Next() {
		var t models.StepTarget
		var mode string
		var mappings []byte
		if err := rows.Scan(
			&t.ID, &t.StepID, &t.TargetService, &t.TargetTool,
			&t.TargetOrder, &mode, &mappings, &t.Comment, &t.Enabled,
		); err != nil {
			return nil, fmt.Errorf("scan step target: %w", err)
		}
		t.ExecutionMode = models.ExecutionMode(mode)
		if len(mappings) > 0 {
			if err := json.Unmarshal(mappings, &t.ArgumentMappings); err != nil {
				return nil, fmt.Errorf("decode argument mappings: %w", err)
			}
		}
		targets[t.StepID] = append(targets[t.StepID], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read step targets: %w", err)
	}
	return targets, nil
}

const selectChainsSQL = `
SELECT id, name, description, color, priority, enabled, created_at, updated_at
FROM tool_chains
ORDER BY priority DESC, name ASC`

const selectChainSQL = `
SELECT id, name, description, color, priority, enabled, created_at, updated_at
FROM tool_chains
WHERE id = $1`

// Admin reads return disabled rows too: disabling hides a chain from the
// engine without deleting it from the editor.
const adminStepsSQL = `
SELECT id, chain_id, step_order, source_service, source_tool,
       condition_operator, COALESCE(condition_field, ''), COALESCE(condition_value, ''),
       comment, enabled
FROM chain_steps
WHERE chain_id = ANY($1::uuid[])
ORDER BY step_order ASC, id ASC`

const adminTargetsSQL = `
SELECT id, step_id, target_service, target_tool, target_order, execution_mode,
       argument_mappings, comment, enabled
FROM step_targets
WHERE step_id = ANY($1::uuid[])
ORDER BY target_order ASC, id ASC`

// ListChains returns all chains with their steps and targets, ordered by
// priority descending then name.
func (s *PostgresStore) ListChains(ctx context.Context) ([]*models.Chain, error) {
	rows, err := s.db.Query(ctx, selectChainsSQL)
	if err != nil {
		return nil, fmt.Errorf("query chains: %w", err)
	}
	defer rows.Close()

	chains := []*models.Chain{}
	for rows.Next() {
		var c models.Chain
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Color, &c.Priority, &c.Enabled, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chain: %w", err)
		}
		chains = append(chains, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read chains: %w", err)
	}

	if err := s.attachSteps(ctx, chains); err != nil {
		return nil, err
	}
	return chains, nil
}

// GetChain returns one chain with its steps and targets, or ErrNotFound.
func (s *PostgresStore) GetChain(ctx context.Context, id string) (*models.Chain, error) {
	var c models.Chain
	err := s.db.QueryRow(ctx, selectChainSQL, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.Color, &c.Priority, &c.Enabled, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query chain: %w", err)
	}

	if err := s.attachSteps(ctx, []*models.Chain{&c}); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) attachSteps(ctx context.Context, chains []*models.Chain) error {
	if len(chains) == 0 {
		return nil
	}
	chainIDs := make([]string, len(chains))
	for i, c := range chains {
		chainIDs[i] = c.ID
		c.Steps = []models.ChainStep{}
	}

	rows, err := s.db.Query(ctx, adminStepsSQL, chainIDs)
	if err != nil {
		return fmt.Errorf("query chain steps: %w", err)
	}
	defer rows.Close()

	stepsByChain := make(map[string][]models.ChainStep)
	var stepIDs []string
	for rows.Next() {
		var st models.ChainStep
		var op string
		if err := rows.Scan(
			&st.ID, &st.ChainID, &st.StepOrder, &st.SourceService, &st.SourceTool,
			&op, &st.Condition.Field, &st.Condition.Value, &st.Comment, &st.Enabled,
		); err != nil {
			return fmt.Errorf("scan chain step: %w", err)
		}
		st.Condition.Operator = models.Operator(op)
		st.Targets = []models.StepTarget{}
		stepsByChain[st.ChainID] = append(stepsByChain[st.ChainID], st)
		stepIDs = append(stepIDs, st.ID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read chain steps: %w", err)
	}

	targetsByStep := map[string][]models.StepTarget{}
	if len(stepIDs) > 0 {
		targetsByStep, err = s.targetsByStep(ctx, adminTargetsSQL, stepIDs)
		if err != nil {
			return err
		}
	}

	for _, c := range chains {
		steps := stepsByChain[c.ID]
		for i := range steps {
			if ts, ok := targetsByStep[steps[i].ID]; ok {
				steps[i].Targets = ts
			}
		}
		if steps != nil {
			c.Steps = steps
		}
	}
	return nil
}

const insertChainSQL = `
INSERT INTO tool_chains (id, name, description, color, priority, enabled, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const insertStepSQL = `
INSERT INTO chain_steps (id, chain_id, step_order, source_service, source_tool,
	condition_operator, condition_field, condition_value, comment, enabled)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const insertTargetSQL = `
INSERT INTO step_targets (id, step_id, target_service, target_tool, target_order,
	execution_mode, argument_mappings, comment, enabled)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// CreateChain inserts a chain with its steps and targets in one transaction,
// assigning IDs and timestamps where missing. The chain is mutated in place.
func (s *PostgresStore) CreateChain(ctx context.Context, chain *models.Chain) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if chain.ID == "" {
		chain.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	chain.CreatedAt = now
	chain.UpdatedAt = now

	_, err = tx.Exec(ctx, insertChainSQL,
		chain.ID, chain.Name, chain.Description, chain.Color,
		chain.Priority, chain.Enabled, chain.CreatedAt, chain.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert chain: %w", err)
	}
	if err := insertSteps(ctx, tx, chain); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const updateChainSQL = `
UPDATE tool_chains
SET name = $2, description = $3, color = $4, priority = $5, enabled = $6, updated_at = $7
WHERE id = $1
RETURNING created_at`

// UpdateChain replaces the chain row and all of its steps and targets in one
// transaction. Returns ErrNotFound if the chain does not exist.
func (s *PostgresStore) UpdateChain(ctx context.Context, chain *models.Chain) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	chain.UpdatedAt = time.Now().UTC()
	err = tx.QueryRow(ctx, updateChainSQL,
		chain.ID, chain.Name, chain.Description, chain.Color,
		chain.Priority, chain.Enabled, chain.UpdatedAt).Scan(&chain.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update chain: %w", err)
	}

	// Steps are replaced wholesale; targets go with them via ON DELETE CASCADE.
	if _, err := tx.Exec(ctx, `DELETE FROM chain_steps WHERE chain_id = $1`, chain.ID); err != nil {
		return fmt.Errorf("delete steps: %w", err)
	}
	if err := insertSteps(ctx, tx, chain); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeleteChain removes a chain and, through cascades, its steps and targets.
func (s *PostgresStore) DeleteChain(ctx context.Context, id string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM tool_chains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete chain: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func insertSteps(ctx context.Context, tx pgx.Tx, chain *models.Chain) error {
	for i := range chain.Steps {
		st := &chain.Steps[i]
		if st.ID == "" {
			st.ID = uuid.New().String()
		}
		st.ChainID = chain.ID
		_, err := tx.Exec(ctx, insertStepSQL,
			st.ID, st.ChainID, st.StepOrder, st.SourceService, st.SourceTool,
			string(st.Condition.Operator), nullable(st.Condition.Field), nullable(st.Condition.Value),
			st.Comment, st.Enabled)
		if err != nil {
			return fmt.Errorf("insert step: %w", err)
		}

		for j := range st.Targets {
			tg := &st.Targets[j]
			if tg.ID == "" {
				tg.ID = uuid.New().String()
			}
			tg.StepID = st.ID
			if tg.ExecutionMode == "" {
				tg.ExecutionMode = models.ExecutionSequential
			}
			mappings, err := marshalJSON(tg.ArgumentMappings)
			if err != nil {
				return fmt.Errorf("encode argument mappings: %w", err)
			}
			_, err = tx.Exec(ctx, insertTargetSQL,
				tg.ID, tg.StepID, tg.TargetService, tg.TargetTool, tg.TargetOrder,
				string(tg.ExecutionMode), mappings, tg.Comment, tg.Enabled)
			if err != nil {
				return fmt.Errorf("insert target: %w", err)
			}
		}
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// marshalJSON encodes a map for a JSONB column, keeping nil maps as NULL.
func marshalJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
