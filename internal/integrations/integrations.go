// Package integrations exposes homelab services as callable tools.
package integrations

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// HandlerFunc executes a tool call with already-decoded arguments.
type HandlerFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

// Tool represents one callable operation of an integration.
type Tool struct {
	Name        string         `json:"name"`
	Service     string         `json:"service"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     HandlerFunc    `json:"-"`
}

// FullName returns the service-qualified tool name, e.g. "sabnzbd_get_queue".
func (t *Tool) FullName() string {
	return t.Service + "_" + t.Name
}

// Registry holds the tools of every configured integration, keyed by their
// service-qualified name.
type Registry struct {
	tools    map[string]*Tool
	order    []string
	services map[string]string
	logger   *zap.SugaredLogger
}

// NewRegistry creates an empty registry. Integrations attach themselves to it.
func NewRegistry(logger *zap.SugaredLogger) *Registry {
	return &Registry{
		tools:    make(map[string]*Tool),
		services: make(map[string]string),
		logger:   logger,
	}
}

// RegisterService records a service prefix and its display name.
func (r *Registry) RegisterService(key, displayName string) {
	r.services[key] = displayName
}

// Register adds a tool to the registry.
func (r *Registry) Register(t *Tool) {
	full := t.FullName()
	if _, exists := r.tools[full]; !exists {
		r.order = append(r.order, full)
	}
	r.tools[full] = t
}

// Get retrieves a tool by its service-qualified name.
func (r *Registry) Get(fullName string) *Tool {
	return r.tools[fullName]
}

// List returns all tools in registration order.
func (r *Registry) List() []*Tool {
	result := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

// ServiceNames returns the known service prefixes and their display names.
func (r *Registry) ServiceNames() map[string]string {
	names := make(map[string]string, len(r.services))
	for k, v := range r.services {
		names[k] = v
	}
	return names
}

// Execute runs a tool by its service-qualified name.
func (r *Registry) Execute(ctx context.Context, fullName string, args map[string]any) (map[string]any, error) {
	tool := r.tools[fullName]
	if tool == nil {
		return nil, fmt.Errorf("unknown tool: %s", fullName)
	}
	r.logger.Debugw("executing tool", "tool", fullName)
	return tool.Handler(ctx, args)
}

func argString(args map[string]any, key, fallback string) string {
	if s, ok := args[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// argInt reads a numeric argument. Tool arguments arrive as decoded JSON, so
// numbers are usually float64.
func argInt(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}
