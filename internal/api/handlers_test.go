package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"homeops/backend/internal/auth"
	"homeops/backend/internal/integrations"
	"homeops/backend/internal/repository"
	"homeops/backend/internal/services"
	"homeops/backend/pkg/models"
)

type fakeAdmin struct {
	chains map[string]*models.Chain
	order  []string
	nextID int
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{chains: make(map[string]*models.Chain)}
}

func (f *fakeAdmin) ListChains(context.Context) ([]*models.Chain, error) {
	out := make([]*models.Chain, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.chains[id])
	}
	return out, nil
}

func (f *fakeAdmin) GetChain(_ context.Context, id string) (*models.Chain, error) {
	chain, ok := f.chains[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return chain, nil
}

func (f *fakeAdmin) CreateChain(_ context.Context, chain *models.Chain) error {
	if chain.ID == "" {
		f.nextID++
		chain.ID = fmt.Sprintf("chain-%d", f.nextID)
	}
	f.chains[chain.ID] = chain
	f.order = append(f.order, chain.ID)
	return nil
}

func (f *fakeAdmin) UpdateChain(_ context.Context, chain *models.Chain) error {
	if _, ok := f.chains[chain.ID]; !ok {
		return repository.ErrNotFound
	}
	f.chains[chain.ID] = chain
	return nil
}

func (f *fakeAdmin) DeleteChain(_ context.Context, id string) error {
	if _, ok := f.chains[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.chains, id)
	for i, existing := range f.order {
		if existing == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

type fakeAudit struct {
	invocations []*models.ToolInvocation
	lastSession string
	lastLimit   int
}

func (f *fakeAudit) RecordInvocation(_ context.Context, inv *models.ToolInvocation) error {
	f.invocations = append(f.invocations, inv)
	return nil
}

func (f *fakeAudit) MostRecentCompleted(context.Context, string, string, time.Duration) (*models.ToolInvocation, error) {
	return nil, nil
}

func (f *fakeAudit) ListRecent(_ context.Context, sessionID string, limit int) ([]*models.ToolInvocation, error) {
	f.lastSession = sessionID
	f.lastLimit = limit
	return f.invocations, nil
}

type fakeExecutor struct {
	lastTool    string
	lastParams  map[string]any
	lastSession string
	lastUser    string
	result      map[string]any
	err         error
}

func (f *fakeExecutor) Execute(_ context.Context, toolName string, params map[string]any, sessionID, userID string) (map[string]any, error) {
	f.lastTool = toolName
	f.lastParams = params
	f.lastSession = sessionID
	f.lastUser = userID
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(admin repository.ChainAdmin, audit repository.AuditStore, executor services.Executor, db Pinger) *Server {
	registry := integrations.NewRegistry(zap.NewNop().Sugar())
	registry.RegisterService("overseerr", "Overseerr")
	registry.Register(&integrations.Tool{
		Name:        "request_media",
		Service:     "overseerr",
		Description: "Request a movie or TV show.",
		Parameters:  map[string]any{"type": "object"},
		Handler: func(context.Context, map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
	})
	return NewServer(admin, audit, registry, executor, db)
}

func doJSON(t *testing.T, s *Server, method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	s.Register(e, nil)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(newFakeAdmin(), &fakeAudit{}, &fakeExecutor{}, &fakePinger{})

	rec := doJSON(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var status models.HealthStatus
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "ok", status.Checks["database"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	s := newTestServer(newFakeAdmin(), &fakeAudit{}, &fakeExecutor{}, &fakePinger{err: errors.New("connection refused")})

	rec := doJSON(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status models.HealthStatus
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status)
	assert.Contains(t, status.Checks["database"], "connection refused")
}

func TestChainCRUD(t *testing.T) {
	s := newTestServer(newFakeAdmin(), &fakeAudit{}, &fakeExecutor{}, &fakePinger{})

	// 1. Create
	body := `{
		"name": "Request to status",
		"color": "#6366f1",
		"priority": 5,
		"enabled": true,
		"steps": [
			{
				"step_order": 0,
				"source_service": "overseerr",
				"source_tool": "request_media",
				"condition": {"operator": "success"},
				"enabled": true,
				"targets": [
					{"target_service": "overseerr", "target_tool": "get_queue", "enabled": true}
				]
			}
		]
	}`
	rec := doJSON(t, s, http.MethodPost, "/api/v1/chains", body, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var created models.Chain
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)

	// 2. List and Get
	rec = doJSON(t, s, http.MethodGet, "/api/v1/chains", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var listed []models.Chain
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/chains/"+created.ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// 3. Update under the path ID
	update := `{"name": "Request to status v2", "steps": []}`
	rec = doJSON(t, s, http.MethodPut, "/api/v1/chains/"+created.ID, update, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var updated models.Chain
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Request to status v2", updated.Name)

	// 4. Delete, then 404
	rec = doJSON(t, s, http.MethodDelete, "/api/v1/chains/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/chains/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateChain_Validation(t *testing.T) {
	s := newTestServer(newFakeAdmin(), &fakeAudit{}, &fakeExecutor{}, &fakePinger{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/chains", `{"name": ""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "name is required")

	rec = doJSON(t, s, http.MethodPost, "/api/v1/chains", `{
		"name": "Bad operator",
		"steps": [
			{"source_service": "overseerr", "source_tool": "request_media", "condition": {"operator": "always"}}
		]
	}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown condition operator")

	rec = doJSON(t, s, http.MethodPost, "/api/v1/chains", `{
		"name": "Missing target tool",
		"steps": [
			{
				"source_service": "overseerr",
				"source_tool": "request_media",
				"condition": {"operator": "success"},
				"targets": [{"target_service": "sabnzbd"}]
			}
		]
	}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "target service and tool are required")
}

func TestUpdateChain_NotFound(t *testing.T) {
	s := newTestServer(newFakeAdmin(), &fakeAudit{}, &fakeExecutor{}, &fakePinger{})

	rec := doJSON(t, s, http.MethodPut, "/api/v1/chains/ghost", `{"name": "Ghost"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTools(t *testing.T) {
	s := newTestServer(newFakeAdmin(), &fakeAudit{}, &fakeExecutor{}, &fakePinger{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/tools", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tools []struct {
			Name    string `json:"name"`
			Service string `json:"service"`
		} `json:"tools"`
		Services map[string]string `json:"services"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Tools, 1)
	assert.Equal(t, "overseerr_request_media", resp.Tools[0].Name)
	assert.Equal(t, "Overseerr", resp.Services["overseerr"])
}

func TestExecuteTool(t *testing.T) {
	executor := &fakeExecutor{result: map[string]any{
		"success": true,
		"result":  map[string]any{"request_id": float64(17)},
	}}
	s := newTestServer(newFakeAdmin(), &fakeAudit{}, executor, &fakePinger{})

	body := `{"tool": "overseerr_request_media", "params": {"media_id": 438631}, "session_id": "sess-1"}`
	rec := doJSON(t, s, http.MethodPost, "/api/v1/tools/execute", body, func(req *http.Request) {
		*req = *req.WithContext(auth.WithUserID(req.Context(), "kris@home.lan"))
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// The executor sees the caller's identity and session.
	assert.Equal(t, "overseerr_request_media", executor.lastTool)
	assert.Equal(t, map[string]any{"media_id": float64(438631)}, executor.lastParams)
	assert.Equal(t, "sess-1", executor.lastSession)
	assert.Equal(t, "kris@home.lan", executor.lastUser)

	var result map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, true, result["success"])
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	executor := &fakeExecutor{err: fmt.Errorf("%w: proxmox_list_vms", services.ErrUnknownTool)}
	s := newTestServer(newFakeAdmin(), &fakeAudit{}, executor, &fakePinger{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/tools/execute", `{"tool": "proxmox_list_vms"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecuteTool_RequiresToolName(t *testing.T) {
	s := newTestServer(newFakeAdmin(), &fakeAudit{}, &fakeExecutor{}, &fakePinger{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/tools/execute", `{"params": {}}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory(t *testing.T) {
	audit := &fakeAudit{invocations: []*models.ToolInvocation{
		{ID: "inv-1", ToolName: "sabnzbd_get_queue", Status: models.InvocationCompleted},
	}}
	s := newTestServer(newFakeAdmin(), audit, &fakeExecutor{}, &fakePinger{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/history?session_id=sess-1&limit=500", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sess-1", audit.lastSession)
	// Limits are clamped to keep responses bounded.
	assert.Equal(t, 200, audit.lastLimit)

	var invocations []models.ToolInvocation
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &invocations))
	assert.Len(t, invocations, 1)
	assert.Equal(t, "sabnzbd_get_queue", invocations[0].ToolName)
}

func TestHistory_BadLimit(t *testing.T) {
	s := newTestServer(newFakeAdmin(), &fakeAudit{}, &fakeExecutor{}, &fakePinger{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/history?limit=-3", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
