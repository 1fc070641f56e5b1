package chains

import (
	"context"

	"homeops/backend/internal/repository"
	"homeops/backend/pkg/models"
)

// ToolPosition describes where a tool sits within the configured chains
// when it is called as a continuation.
type ToolPosition struct {
	Position   models.ChainPosition
	SourceTool string
	StepNumber int
	Chains     []models.ChainRef
}

// PositionResolver locates a tool inside the chain graph by the targets
// that name it.
type PositionResolver struct {
	store repository.ChainStore
}

// NewPositionResolver returns a PositionResolver reading from the store.
func NewPositionResolver(store repository.ChainStore) *PositionResolver {
	return &PositionResolver{store: store}
}

// Locate returns nil when no enabled chain targets the tool. Otherwise the
// first match fixes the position and step number while every matching chain
// is listed. The position is middle when the owning chain also has an
// enabled step triggered by this same tool, meaning the chain continues
// past it; otherwise the tool closes the chain and the position is end.
// StepNumber is the 1-based position after the owning step.
func (r *PositionResolver) Locate(ctx context.Context, service, tool string) (*ToolPosition, error) {
	hits, err := r.store.FindTargetsOf(ctx, service, tool)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}
	continuing, err := r.store.FindSteps(ctx, service, tool, false)
	if err != nil {
		return nil, err
	}
	hasNext := make(map[string]bool, len(continuing))
	for _, b := range continuing {
		hasNext[b.Chain.ID] = true
	}

	first := hits[0]
	pos := models.PositionEnd
	if hasNext[first.Chain.ID] {
		pos = models.PositionMiddle
	}
	refs := make([]models.ChainRef, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		if seen[h.Chain.ID] {
			continue
		}
		seen[h.Chain.ID] = true
		refs = append(refs, models.ChainRef{ID: h.Chain.ID, Name: h.Chain.Name, Color: h.Chain.Color})
	}
	return &ToolPosition{
		Position:   pos,
		SourceTool: service + "_" + tool,
		StepNumber: first.Step.StepOrder + 2,
		Chains:     refs,
	}, nil
}
