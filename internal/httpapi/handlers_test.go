package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpilot/core/internal/execagent"
	"github.com/mcpilot/core/internal/mcpclient"
	"github.com/mcpilot/core/internal/model"
	"github.com/mcpilot/core/internal/orchestrator"
	"github.com/mcpilot/core/internal/subtool"
)

type fakeClient struct{ text string }

func (c *fakeClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	return &model.Response{Text: c.text}, nil
}

func newTestDeps(t *testing.T, client model.Client) *Deps {
	t.Helper()
	catalog := subtool.NewCatalog()
	mgr := mcpclient.NewManagerForTest(nil)
	return &Deps{
		Orchestrator: &orchestrator.Orchestrator{
			Sessions: orchestrator.NewManager(),
			Catalog:  catalog,
			Dispatcher: &execagent.Dispatcher{
				Catalog:  catalog,
				SubTools: subtool.NewExecutor(catalog, mgr),
				Client:   client,
			},
			Client: client,
		},
		Catalog:      catalog,
		MCP:          mgr,
		Clients:      map[string]model.Client{"anthropic": client},
		LearningsDir: t.TempDir(),
	}
}

func TestHandleChatStreamsMessageThenComplete(t *testing.T) {
	t.Parallel()
	d := newTestDeps(t, &fakeClient{text: "hello from the model"})
	body := strings.NewReader(`{"messages":[{"role":"user","text":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/chat", body)
	rec := httptest.NewRecorder()

	d.HandleChat(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	out := rec.Body.String()
	assert.Contains(t, out, `"type":"message"`)
	assert.Contains(t, out, `"type":"complete"`)
	assert.Contains(t, out, "hello from the model")
}

func TestHandleToolCallingAgentStreamsCompleteEnvelope(t *testing.T) {
	t.Parallel()
	d := newTestDeps(t, &fakeClient{text: "REPLY: all set"})
	body := strings.NewReader(`{"sessionId":"s1","message":"hi","history":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/tool-calling-agent", body)
	rec := httptest.NewRecorder()

	d.HandleToolCallingAgent(rec, req)

	out := rec.Body.String()
	require.Contains(t, out, `"type":"complete"`)
	assert.Contains(t, out, "all set")
}

func TestHandleListMCPsReturnsEmptyWhenNoneConnected(t *testing.T) {
	t.Parallel()
	d := newTestDeps(t, &fakeClient{})
	req := httptest.NewRequest(http.MethodGet, "/mcps", nil)
	rec := httptest.NewRecorder()

	d.HandleListMCPs(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got []mcpStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Empty(t, got)
}

func TestHandleMCPLearningPreviewRendersKnownSubTools(t *testing.T) {
	t.Parallel()
	d := newTestDeps(t, &fakeClient{})
	d.Catalog.Put("weather", subtool.CatalogFile{
		MCPName: "weather",
		Version: 1,
		SubTools: []subtool.SubTool{
			{ID: "1", Name: "get_forecast", Description: "fetch a forecast", Inputs: []subtool.Input{{Name: "city", Type: subtool.InputString}}},
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/mcp-learning-preview?mcp=weather", nil)
	rec := httptest.NewRecorder()

	d.HandleMCPLearningPreview(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "get_forecast")
}

func TestHandleMCPLearningPreviewUnknownMCPReturns404(t *testing.T) {
	t.Parallel()
	d := newTestDeps(t, &fakeClient{})
	req := httptest.NewRequest(http.MethodGet, "/mcp-learning-preview?mcp=nope", nil)
	rec := httptest.NewRecorder()

	d.HandleMCPLearningPreview(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleAgentPromptsListsBuiltinTools(t *testing.T) {
	t.Parallel()
	d := newTestDeps(t, &fakeClient{})
	req := httptest.NewRequest(http.MethodGet, "/agent-prompts", nil)
	rec := httptest.NewRecorder()

	d.HandleAgentPrompts(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "llm")
}
