package repository

import (
	"context"
	"errors"
	"time"

	"homeops/backend/pkg/models"
)

// ErrNotFound is returned by lookups and writes that address a chain that
// does not exist.
var ErrNotFound = errors.New("chain not found")

// StepBinding pairs a chain step with its owning chain and its enabled
// targets, in suggestion order.
type StepBinding struct {
	Chain   models.Chain
	Step    models.ChainStep
	Targets []models.StepTarget
}

// TargetBinding pairs a step target with its owning step and chain.
type TargetBinding struct {
	Chain  models.Chain
	Step   models.ChainStep
	Target models.StepTarget
}

// ChainStore is the read surface the orchestration engine matches against.
// Implementations only return enabled rows of enabled parents.
type ChainStore interface {
	// FindSteps returns the steps triggered by the given tool, ordered by
	// chain priority (desc) then step order (asc). entryOnly restricts the
	// result to entry-point steps (step order 0).
	FindSteps(ctx context.Context, sourceService, sourceTool string, entryOnly bool) ([]StepBinding, error)
	// FindTargetsOf returns the targets naming the given tool, ordered by
	// chain priority (desc) then step order (asc).
	FindTargetsOf(ctx context.Context, targetService, targetTool string) ([]TargetBinding, error)
}

// ChainAdmin manages chain configuration as whole documents: steps and
// targets ride along with their chain.
type ChainAdmin interface {
	// ListChains returns all chains with steps and targets attached.
	ListChains(ctx context.Context) ([]*models.Chain, error)
	// GetChain returns one chain with steps and targets attached.
	GetChain(ctx context.Context, id string) (*models.Chain, error)
	// CreateChain inserts a chain and its nested steps and targets,
	// assigning IDs where missing.
	CreateChain(ctx context.Context, chain *models.Chain) error
	// UpdateChain replaces a chain document, steps and targets included.
	UpdateChain(ctx context.Context, chain *models.Chain) error
	// DeleteChain removes a chain and everything under it.
	DeleteChain(ctx context.Context, id string) error
}

// AuditStore records tool invocations and serves recent history back to
// continuation detection.
type AuditStore interface {
	// RecordInvocation persists the audit row for a finished tool call.
	RecordInvocation(ctx context.Context, inv *models.ToolInvocation) error
	// MostRecentCompleted returns the newest completed invocation within
	// the window, scoped to the session when given, else the user. Nil when
	// neither scope is given or nothing matches.
	MostRecentCompleted(ctx context.Context, sessionID, userID string, within time.Duration) (*models.ToolInvocation, error)
	// ListRecent returns recent invocations, newest first, optionally
	// filtered to one session.
	ListRecent(ctx context.Context, sessionID string, limit int) ([]*models.ToolInvocation, error)
}
