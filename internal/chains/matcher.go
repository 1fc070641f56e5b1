package chains

import (
	"context"
	"strings"

	"homeops/backend/internal/repository"
)

// Suggestion is a matched follow-up call before it is rendered to the wire.
type Suggestion struct {
	TargetService      string
	TargetTool         string
	SuggestedArguments map[string]any
	Reason             string
	ChainID            string
	ChainName          string
	ChainColor         string
	StepOrder          int
}

// Matcher finds the chain steps triggered by a finished tool call and turns
// their targets into suggestions.
type Matcher struct {
	store repository.ChainStore
}

// NewMatcher returns a Matcher reading from the given store.
func NewMatcher(store repository.ChainStore) *Matcher {
	return &Matcher{store: store}
}

// MatchEntryPoints considers only entry-point steps, for tools called
// outside any running chain.
func (m *Matcher) MatchEntryPoints(ctx context.Context, service, tool string, result any, success bool, input map[string]any) ([]Suggestion, error) {
	return m.match(ctx, service, tool, result, success, input, true)
}

// MatchAnyPosition considers every step, for tools already inside a chain.
func (m *Matcher) MatchAnyPosition(ctx context.Context, service, tool string, result any, success bool, input map[string]any) ([]Suggestion, error) {
	return m.match(ctx, service, tool, result, success, input, false)
}

func (m *Matcher) match(ctx context.Context, service, tool string, result any, success bool, input map[string]any, entryOnly bool) ([]Suggestion, error) {
	bindings, err := m.store.FindSteps(ctx, service, tool, entryOnly)
	if err != nil {
		return nil, err
	}
	var out []Suggestion
	for _, b := range bindings {
		if !EvaluateCondition(result, success, b.Step.Condition) {
			continue
		}
		for _, t := range b.Targets {
			out = append(out, Suggestion{
				TargetService:      t.TargetService,
				TargetTool:         t.TargetTool,
				SuggestedArguments: BuildArguments(t.ArgumentMappings, result, input),
				Reason:             joinComments(b.Step.Comment, t.Comment),
				ChainID:            b.Chain.ID,
				ChainName:          b.Chain.Name,
				ChainColor:         b.Chain.Color,
				StepOrder:          b.Step.StepOrder,
			})
		}
	}
	return out, nil
}

// joinComments merges the step and target comments into a single reason,
// empty when both are blank.
func joinComments(step, target string) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(step); s != "" {
		parts = append(parts, s)
	}
	if t := strings.TrimSpace(target); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}
