package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"homeops/backend/internal/integrations"
	"homeops/backend/internal/services"
)

// Server exposes the tool registry over the Model Context Protocol so AI
// assistants can drive the homelab services directly. Every call runs through
// the same executor as the HTTP API, so results carry the same follow-up
// suggestions and land in the same audit trail.
type Server struct {
	mcpServer *server.MCPServer
	sse       *server.SSEServer
	executor  services.Executor
	logger    *zap.SugaredLogger
}

func NewServer(registry *integrations.Registry, executor services.Executor, logger *zap.SugaredLogger) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"HomeOps",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		executor: executor,
		logger:   logger,
	}

	s.registerTools(registry)
	s.sse = server.NewSSEServer(s.mcpServer, server.WithStaticBasePath("/mcp"))
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// registerTools mirrors the registry into the MCP tool list. Parameters are
// already JSON-schema shaped, so they pass through as raw schemas.
func (s *Server) registerTools(registry *integrations.Registry) {
	for _, tool := range registry.List() {
		schema, err := json.Marshal(tool.Parameters)
		if err != nil {
			s.logger.Errorw("failed to marshal tool schema", "tool", tool.FullName(), "error", err)
			continue
		}
		name := tool.FullName()
		s.mcpServer.AddTool(
			mcp.NewToolWithRawSchema(name, tool.Description, schema),
			s.callHandler(name),
		)
	}
}

func (s *Server) callHandler(toolName string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if request.Params.Arguments != nil {
			typed, ok := request.Params.Arguments.(map[string]any)
			if !ok {
				return mcp.NewToolResultError("Invalid arguments type"), nil
			}
			args = typed
		}

		// Each SSE connection carries its own session ID, which is what ties
		// consecutive calls from the same assistant together.
		sessionID := ""
		if session := server.ClientSessionFromContext(ctx); session != nil {
			sessionID = session.SessionID()
		}

		result, err := s.executor.Execute(ctx, toolName, args, sessionID, "")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to execute %s: %v", toolName, err)), nil
		}

		jsonBytes, _ := json.Marshal(result)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}
}

// MountHTTPHandlers wires the MCP transport endpoints onto mux.
func (s *Server) MountHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			s.sse.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", s.sse.ServeHTTP)
	mux.HandleFunc("/mcp/message", s.sse.ServeHTTP)
}
