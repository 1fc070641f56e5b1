package chains

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"homeops/backend/internal/repository"
	"homeops/backend/pkg/models"
)

// fakeChainStore serves configured chains with the same filtering and
// ordering contract as the Postgres store: enabled rows only, chains by
// priority (desc), steps by order (asc), targets by order (asc).
type fakeChainStore struct {
	chains []models.Chain
	err    error
}

func (f *fakeChainStore) FindSteps(_ context.Context, service, tool string, entryOnly bool) ([]repository.StepBinding, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []repository.StepBinding
	for _, c := range f.sorted() {
		if !c.Enabled {
			continue
		}
		for _, s := range sortedSteps(c.Steps) {
			if !s.Enabled || s.SourceService != service || s.SourceTool != tool {
				continue
			}
			if entryOnly && s.StepOrder != 0 {
				continue
			}
			out = append(out, repository.StepBinding{Chain: c, Step: s, Targets: enabledTargets(s.Targets)})
		}
	}
	return out, nil
}

func (f *fakeChainStore) FindTargetsOf(_ context.Context, service, tool string) ([]repository.TargetBinding, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []repository.TargetBinding
	for _, c := range f.sorted() {
		if !c.Enabled {
			continue
		}
		for _, s := range sortedSteps(c.Steps) {
			if !s.Enabled {
				continue
			}
			for _, t := range enabledTargets(s.Targets) {
				if t.TargetService == service && t.TargetTool == tool {
					out = append(out, repository.TargetBinding{Chain: c, Step: s, Target: t})
				}
			}
		}
	}
	return out, nil
}

func (f *fakeChainStore) sorted() []models.Chain {
	chains := append([]models.Chain(nil), f.chains...)
	sort.SliceStable(chains, func(i, j int) bool { return chains[i].Priority > chains[j].Priority })
	return chains
}

func sortedSteps(steps []models.ChainStep) []models.ChainStep {
	out := append([]models.ChainStep(nil), steps...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StepOrder < out[j].StepOrder })
	return out
}

func enabledTargets(targets []models.StepTarget) []models.StepTarget {
	var out []models.StepTarget
	for _, t := range targets {
		if t.Enabled {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TargetOrder < out[j].TargetOrder })
	return out
}

// fakeAuditStore keeps invocations in memory. RecordInvocation mirrors the
// JSONB round trip of the real store so reads see generic JSON shapes.
type fakeAuditStore struct {
	records []*models.ToolInvocation
	err     error
}

func (f *fakeAuditStore) RecordInvocation(_ context.Context, inv *models.ToolInvocation) error {
	if f.err != nil {
		return f.err
	}
	rec := *inv
	if rec.OutputResult != nil {
		raw, err := json.Marshal(rec.OutputResult)
		if err != nil {
			return err
		}
		var back map[string]any
		if err := json.Unmarshal(raw, &back); err != nil {
			return err
		}
		rec.OutputResult = back
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	f.records = append(f.records, &rec)
	return nil
}

func (f *fakeAuditStore) MostRecentCompleted(_ context.Context, sessionID, userID string, within time.Duration) (*models.ToolInvocation, error) {
	if f.err != nil {
		return nil, f.err
	}
	if sessionID == "" && userID == "" {
		return nil, nil
	}
	cutoff := time.Now().Add(-within)
	var best *models.ToolInvocation
	for _, r := range f.records {
		if r.Status != models.InvocationCompleted || r.CreatedAt.Before(cutoff) {
			continue
		}
		if sessionID != "" {
			if r.SessionID != sessionID {
				continue
			}
		} else if r.UserID != userID {
			continue
		}
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			best = r
		}
	}
	return best, nil
}

func (f *fakeAuditStore) ListRecent(_ context.Context, sessionID string, limit int) ([]*models.ToolInvocation, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.ToolInvocation
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if sessionID == "" || f.records[i].SessionID == sessionID {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}
