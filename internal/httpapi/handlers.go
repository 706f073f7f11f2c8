package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mcpilot/core/internal/agenterr"
	"github.com/mcpilot/core/internal/execagent"
	"github.com/mcpilot/core/internal/learning"
	"github.com/mcpilot/core/internal/mcpclient"
	"github.com/mcpilot/core/internal/model"
	"github.com/mcpilot/core/internal/orchestrator"
	"github.com/mcpilot/core/internal/pilot"
	"github.com/mcpilot/core/internal/subtool"
	"github.com/mcpilot/core/internal/telemetry"
)

// Deps bundles everything the handlers need: the agent runtimes, the shared
// sub-tool catalog, the MCP manager, and one model.Client per configured
// provider (spec.md §6 "multi-provider chat").
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Catalog      *subtool.Catalog
	MCP          *mcpclient.Manager
	Clients      map[string]model.Client
	LearningsDir string
	Telemetry    telemetry.Bundle
}

func (d *Deps) defaultClient() model.Client {
	for _, name := range []string{"anthropic", "openai"} {
		if c, ok := d.Clients[name]; ok {
			return c
		}
	}
	for _, c := range d.Clients {
		return c
	}
	return nil
}

func (d *Deps) client(provider string) model.Client {
	if provider == "" {
		return d.defaultClient()
	}
	if c, ok := d.Clients[provider]; ok {
		return c
	}
	return d.defaultClient()
}

// chatRequest is the body for POST /chat.
type chatRequest struct {
	Provider string           `json:"provider"`
	Messages []chatMessageDTO `json:"messages"`
}

type chatMessageDTO struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// HandleChat streams a single completion back to the caller as SSE "message"
// and "complete" events (spec.md §6 `/chat`: "Multi-provider chat with tool
// use" — this module's tool-using surface is the Pilot system at
// `/tool-calling-agent`; `/chat` is the plain conversational passthrough a
// UI's general chat box talks to).
func (d *Deps) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	client := d.client(req.Provider)
	if client == nil {
		writeJSONError(w, http.StatusServiceUnavailable, agenterr.New(agenterr.ConfigMissingKeys, "no model provider is configured"))
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	messages := make([]model.Message, 0, len(req.Messages))
	var system string
	for _, m := range req.Messages {
		if model.Role(m.Role) == model.RoleSystem {
			system = m.Text
			continue
		}
		messages = append(messages, model.Message{Role: model.Role(m.Role), Text: m.Text})
	}

	resp, err := client.Complete(r.Context(), &model.Request{
		System:      system,
		Messages:    messages,
		ModelClass:  model.ModelClassDefault,
		Temperature: 0.7,
	})
	if err != nil {
		sse.send("error", map[string]any{"message": err.Error()})
		return
	}
	sse.send("message", map[string]any{"text": resp.Text})
	sse.send("complete", map[string]any{"text": resp.Text})
}

// toolCallingRequest is the body for POST /tool-calling-agent.
type toolCallingRequest struct {
	SessionID string       `json:"sessionId"`
	Message   string       `json:"message"`
	History   []turnDTO    `json:"history"`
}

type turnDTO struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// HandleToolCallingAgent drives one Orchestrator turn and streams its
// progress events, ending with the `complete` envelope spec.md §6 specifies.
func (d *Deps) HandleToolCallingAgent(w http.ResponseWriter, r *http.Request) {
	var req toolCallingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = r.Header.Get("X-Session-Id")
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sink := orchestrator.Sink(func(e orchestrator.Event) {
		sse.send(string(e.Type), e.Fields)
	})

	got, err := d.Orchestrator.RunTurn(r.Context(), req.SessionID, len(req.History), req.Message, sink)
	if err != nil && agenterr.KindOf(err) != agenterr.StepCapReached {
		sse.send("error", map[string]any{"message": err.Error()})
		return
	}
	history := make([]turnDTO, 0, len(got.History))
	for _, t := range got.History {
		history = append(history, turnDTO{Role: string(t.Role), Text: t.Text})
	}
	sse.send("complete", map[string]any{"dsl": got.DSL, "message": got.Message, "history": history})
}

// mcpStatus is one row of GET /mcps.
type mcpStatus struct {
	Name     string `json:"name"`
	Learned  bool   `json:"learned"`
	Version  int    `json:"version,omitempty"`
	SubTools int    `json:"subToolCount"`
}

// HandleListMCPs lists every connected MCP server alongside its learning
// status (spec.md §6 `/mcps`: "List MCPs with learning status").
func (d *Deps) HandleListMCPs(w http.ResponseWriter, r *http.Request) {
	var out []mcpStatus
	for _, name := range d.MCP.Servers() {
		st := mcpStatus{Name: name}
		if f, ok := d.Catalog.MCPFile(name); ok {
			st.Learned = true
			st.Version = f.Version
			st.SubTools = len(f.SubTools)
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

// HandleMCPLearningPreview renders one MCP's learned catalog as the human
// prompt text the Executor would actually see (spec.md §6
// `/mcp-learning-preview`: "Render learning as a human prompt").
func (d *Deps) HandleMCPLearningPreview(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("mcp")
	f, ok := d.Catalog.MCPFile(name)
	if !ok {
		writeJSONError(w, http.StatusNotFound, agenterr.Errorf(agenterr.ToolNotFound, "no learned catalog for mcp %q", name))
		return
	}
	names := make([]string, 0, len(f.SubTools))
	for _, st := range f.SubTools {
		names = append(names, st.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mcp":    name,
		"prompt": execagent.RenderToolDocs(names, d.Catalog),
	})
}

// HandleAgentPrompts introspects the rendered system prompts each agent
// would use right now, given the current catalog and tool set (spec.md §6
// `/agent-prompts`: "Introspect rendered prompts").
func (d *Deps) HandleAgentPrompts(w http.ResponseWriter, r *http.Request) {
	toolNames := append([]string{}, execagent.BuiltinTools...)
	for _, st := range d.Catalog.All() {
		toolNames = append(toolNames, st.Name)
	}
	decision, _ := pilot.Decide(r.Context(), noopPromptClient{}, pilot.Request{ToolNames: toolNames, CurrentDate: time.Now().UTC().Format("2006-01-02")})
	rendered := decision.Message
	if rendered == "" {
		rendered = decision.Instruction
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pilot": rendered,
		"tools": toolNames,
	})
}

// noopPromptClient lets HandleAgentPrompts reuse pilot.Decide's prompt
// construction without a real model call: it echoes the system prompt back
// as its completion, so the decision Decide returns carries the rendered
// prompt text (as the heuristic fallback's Message or Instruction), which
// the caller renders directly.
type noopPromptClient struct{}

func (noopPromptClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	return &model.Response{Text: req.System}, nil
}

// HandleLearnMCP starts a learning run for each comma-separated MCP name in
// the `mcps` query parameter, streaming progress and writing the resulting
// catalog files to LearningsDir (spec.md §6 `/learn-mcp`: "Start learning
// for comma-separated MCPs").
func (d *Deps) HandleLearnMCP(w http.ResponseWriter, r *http.Request) {
	names := strings.Split(r.URL.Query().Get("mcps"), ",")
	client := d.client(r.URL.Query().Get("provider"))
	if client == nil {
		writeJSONError(w, http.StatusServiceUnavailable, agenterr.New(agenterr.ConfigMissingKeys, "no model provider is configured"))
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		sse.send("analysis_phase", map[string]any{"phase": "learning", "mcp": name})

		sink := learning.Sink(func(e learning.Event) {
			sse.send("tool_calling", map[string]any{"mcp": name, "kind": string(e.Kind), "tool": e.Tool, "name": e.Name})
		})

		prompt := buildLearningPrompt(name, d.MCP)
		result, err := learning.Run(r.Context(), client, d.MCP, prompt, sink)
		if err != nil {
			sse.send("error", map[string]any{"mcp": name, "message": err.Error()})
			continue
		}
		files := learning.Partition(d.MCP, result, providerModelHint(req2provider(r)), time.Now())
		if err := learning.WriteDir(d.LearningsDir, files); err != nil {
			sse.send("error", map[string]any{"mcp": name, "message": err.Error()})
			continue
		}
		for mcpName, f := range files {
			d.Catalog.Put(mcpName, f)
		}
		sse.send("complete", map[string]any{"mcp": name, "subToolCount": len(result.SubTools)})
	}
}

func req2provider(r *http.Request) string {
	return r.URL.Query().Get("provider")
}

func providerModelHint(provider string) string {
	if provider == "" {
		return "default"
	}
	return provider
}

// buildLearningPrompt seeds the Learning Agent with the MCP's original
// tools/list description, per spec.md §4.4's starting context.
func buildLearningPrompt(mcpName string, mcp *mcpclient.Manager) string {
	var b strings.Builder
	b.WriteString("Learn the MCP server \"" + mcpName + "\". Its tools/list response is:\n")
	for _, t := range mcp.Tools() {
		if t.ServerName != mcpName {
			continue
		}
		b.WriteString("- " + t.OriginalName + ": " + t.Description + "\n")
	}
	b.WriteString("\nDocument inputs, derive sub-tools, and record useful workflows.")
	return b.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
