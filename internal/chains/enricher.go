package chains

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"homeops/backend/internal/repository"
	"homeops/backend/pkg/models"
)

// AIInstruction is attached verbatim whenever suggestions are present so
// the calling agent knows what next_tools_to_call means.
const AIInstruction = "This result includes next_tools_to_call: follow-up tool calls configured for this workflow. Review each suggestion and, when it serves the user's request, call the suggested tool with the provided arguments before answering."

const (
	keyChainContext = "chain_context"
	keyNextTools    = "next_tools_to_call"
	keyInstruction  = "ai_instruction"
)

// Enricher is the orchestration facade. Given a finished tool call it
// attaches chain context and suggested follow-up calls to the result.
type Enricher struct {
	matcher  *Matcher
	resolver *PositionResolver
	detector *FlowDetector
	services map[string]string // service prefix -> display name
	logger   *zap.SugaredLogger

	enrichments metric.Int64Counter
	suggestions metric.Int64Counter
}

// NewEnricher wires the engine against its stores. services maps known
// service prefixes to display names; tools outside it are never enriched.
// window bounds continuation detection.
func NewEnricher(store repository.ChainStore, history repository.AuditStore, services map[string]string, window time.Duration, logger *zap.SugaredLogger) *Enricher {
	meter := otel.Meter("homeops/backend/chains")
	enrichments, _ := meter.Int64Counter("homeops.chain.enrichments",
		metric.WithDescription("Tool results that received chain enrichment"))
	suggestions, _ := meter.Int64Counter("homeops.chain.suggestions",
		metric.WithDescription("Follow-up tool calls suggested"))
	return &Enricher{
		matcher:     NewMatcher(store),
		resolver:    NewPositionResolver(store),
		detector:    NewFlowDetector(history, window),
		services:    services,
		logger:      logger,
		enrichments: enrichments,
		suggestions: suggestions,
	}
}

// Enrich decorates result with chain context and suggested next calls. It
// never fails: lookup errors are logged and the result comes back
// unchanged, and the caller's map is never mutated. Enrich is meant to run
// once per tool completion; re-applying it replaces the attached keys
// rather than stacking them.
func (e *Enricher) Enrich(ctx context.Context, toolName string, result map[string]any, input map[string]any, sessionID, userID string) map[string]any {
	service, tool, ok := e.splitTool(toolName)
	if !ok {
		return result
	}
	success, _ := result["success"].(bool)
	enriched, err := e.enrich(ctx, service, tool, toolName, result, success, input, sessionID, userID)
	if err != nil {
		e.logger.Warnw("chain enrichment skipped", "tool", toolName, "error", err)
		return result
	}
	return enriched
}

func (e *Enricher) enrich(ctx context.Context, service, tool, toolName string, result map[string]any, success bool, input map[string]any, sessionID, userID string) (map[string]any, error) {
	flow, err := e.detector.Detect(ctx, tool, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if flow != nil {
		return e.enrichContinuation(ctx, service, tool, result, success, input, flow)
	}

	// Conditions and argument sources read the tool's result payload, not
	// the wire envelope around it.
	suggestions, err := e.matcher.MatchEntryPoints(ctx, service, tool, result["result"], success, input)
	if err != nil {
		return nil, err
	}
	if len(suggestions) == 0 {
		return result, nil
	}
	out := cloneResult(result)
	out[keyChainContext] = models.ChainContext{
		Position:   models.PositionStart,
		SourceTool: toolName,
		Chains:     distinctChains(suggestions),
		StepNumber: 1,
	}
	out[keyNextTools] = e.render(suggestions)
	out[keyInstruction] = AIInstruction
	e.count(ctx, e.enrichments, 1,
		attribute.String("service", service),
		attribute.String("position", string(models.PositionStart)))
	e.count(ctx, e.suggestions, int64(len(suggestions)), attribute.String("service", service))
	return out, nil
}

func (e *Enricher) enrichContinuation(ctx context.Context, service, tool string, result map[string]any, success bool, input map[string]any, flow *FlowResult) (map[string]any, error) {
	pos, err := e.resolver.Locate(ctx, service, tool)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		// Suggested by a previous call but not a target of any enabled
		// chain anymore; nothing to report.
		return result, nil
	}
	out := cloneResult(result)
	if pos.Position == models.PositionMiddle {
		suggestions, err := e.matcher.MatchAnyPosition(ctx, service, tool, result["result"], success, input)
		if err != nil {
			return nil, err
		}
		if len(suggestions) > 0 {
			out[keyNextTools] = e.render(suggestions)
			out[keyInstruction] = AIInstruction
			e.count(ctx, e.suggestions, int64(len(suggestions)), attribute.String("service", service))
		}
	}
	out[keyChainContext] = models.ChainContext{
		Position:   pos.Position,
		SourceTool: pos.SourceTool,
		Chains:     pos.Chains,
		StepNumber: pos.StepNumber,
	}
	e.count(ctx, e.enrichments, 1,
		attribute.String("service", service),
		attribute.String("position", string(pos.Position)))
	e.logger.Debugw("tool call continues a chain",
		"tool", pos.SourceTool, "previous", flow.PreviousTool, "position", pos.Position)
	return out, nil
}

// splitTool separates a full tool name into its service prefix and bare
// tool name, preferring the longest known prefix.
func (e *Enricher) splitTool(toolName string) (service, tool string, ok bool) {
	best := ""
	for svc := range e.services {
		if strings.HasPrefix(toolName, svc+"_") && len(svc) > len(best) {
			best = svc
		}
	}
	if best == "" {
		return "", "", false
	}
	return best, toolName[len(best)+1:], true
}

func (e *Enricher) render(suggestions []Suggestion) []models.SuggestedCall {
	calls := make([]models.SuggestedCall, 0, len(suggestions))
	for _, s := range suggestions {
		name := e.services[s.TargetService]
		if name == "" {
			name = s.TargetService
		}
		calls = append(calls, models.SuggestedCall{
			Tool:               s.TargetTool,
			Service:            s.TargetService,
			ServiceName:        name,
			SuggestedArguments: s.SuggestedArguments,
			Reason:             s.Reason,
		})
	}
	return calls
}

func distinctChains(suggestions []Suggestion) []models.ChainRef {
	refs := make([]models.ChainRef, 0, len(suggestions))
	seen := make(map[string]bool, len(suggestions))
	for _, s := range suggestions {
		if seen[s.ChainID] {
			continue
		}
		seen[s.ChainID] = true
		refs = append(refs, models.ChainRef{ID: s.ChainID, Name: s.ChainName, Color: s.ChainColor})
	}
	return refs
}

// cloneResult shallow-copies the result map so enrichment never mutates
// the caller's data. Always allocates, even for a nil input.
func cloneResult(result map[string]any) map[string]any {
	out := make(map[string]any, len(result)+3)
	for k, v := range result {
		out[k] = v
	}
	return out
}

func (e *Enricher) count(ctx context.Context, c metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if c != nil {
		c.Add(ctx, n, metric.WithAttributes(attrs...))
	}
}
