package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/mcpilot/core/internal/agenterr"
	"github.com/mcpilot/core/internal/config"
	"github.com/mcpilot/core/internal/telemetry"
)

// maxProviderTools is the truncation applied by ListTools for providers that
// cap the number of function declarations per request (spec.md §4.1).
const maxProviderTools = 128

// route resolves a sanitized tool name back to the server that owns it and
// the tool's original, server-local name.
type route struct {
	server   string
	original string
}

// Manager is the MCP Client Manager (C1): it owns one caller per connected
// server, a flat catalog of sanitized Tool entries, and the sanitized-name
// routing table used by Call.
type Manager struct {
	mu       sync.RWMutex
	callers  map[string]caller
	tools    []Tool
	routes   map[string]route
	byServer map[string][]string // server -> sanitized names, insertion order

	telemetry telemetry.Bundle

	// testHook, when set, bypasses routing and schema validation entirely:
	// Call dispatches straight to it. Used only by NewManagerForTest so
	// other packages' tests can exercise dispatch through a Manager without
	// standing up a real MCP server.
	testHook func(sanitizedName string, args []byte) (ToolCallResult, error)
}

// NewManagerForTest builds a Manager whose Call method dispatches directly
// to hook, bypassing server connections, routing, and schema validation.
// Exported for use by other packages' tests (e.g. internal/subtool) that
// need a Manager-shaped dependency without a real MCP server.
func NewManagerForTest(hook func(sanitizedName string, args []byte) (ToolCallResult, error)) *Manager {
	m := NewManager(telemetry.Noop())
	m.testHook = hook
	return m
}

// NewManager constructs an empty Manager. Call Connect for each configured
// server before use.
func NewManager(bundle telemetry.Bundle) *Manager {
	return &Manager{
		callers:   make(map[string]caller),
		routes:    make(map[string]route),
		byServer:  make(map[string][]string),
		telemetry: bundle,
	}
}

// Connect opens a client for every server in cfg, lists its tools, and
// records them under sanitized names. A server that fails to connect is
// logged and skipped; its absence is not fatal to the process (spec.md
// §4.1 failure model).
func (m *Manager) Connect(ctx context.Context, cfg *config.File) {
	// Sorted for deterministic sanitization/collision ordering across runs.
	names := make([]string, 0, len(cfg.MCPServers))
	for name := range cfg.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sc := cfg.MCPServers[name]
		c, err := m.dial(ctx, name, sc)
		if err != nil {
			m.telemetry.Log.Warn(ctx, "mcp server connect failed",
				"server", name, "error", err.Error())
			continue
		}
		descs, err := c.ListTools(ctx)
		if err != nil {
			m.telemetry.Log.Warn(ctx, "mcp server tools/list failed",
				"server", name, "error", err.Error())
			_ = c.Close()
			continue
		}
		m.mu.Lock()
		m.callers[name] = c
		seen := make(map[string]bool, len(m.tools))
		for _, t := range m.tools {
			seen[t.SanitizedName] = true
		}
		for _, d := range descs {
			sanitized := Sanitize(name, d.Name, seen)
			seen[sanitized] = true
			tool := Tool{
				ServerName:    name,
				OriginalName:  d.Name,
				SanitizedName: sanitized,
				Description:   d.Description,
				InputSchema:   d.InputSchema,
			}
			m.tools = append(m.tools, tool)
			m.routes[sanitized] = route{server: name, original: d.Name}
			m.byServer[name] = append(m.byServer[name], sanitized)
		}
		m.mu.Unlock()
		m.telemetry.Log.Info(ctx, "mcp server connected",
			"server", name, "tool_count", len(descs))
	}
}

func (m *Manager) dial(ctx context.Context, name string, sc config.ServerConfig) (caller, error) {
	if sc.IsStdio() {
		return newStdioCaller(ctx, stdioOptions{
			Command: sc.Command,
			Args:    sc.Args,
			Env:     sc.Env,
			Stderr:  zerolog.New(os.Stderr).With().Timestamp().Logger(),
		})
	}
	transport := sc.EffectiveTransport()
	switch transport {
	case config.TransportSSE:
		return newHTTPCaller(ctx, httpOptions{Endpoint: sc.URL, UseSSE: true})
	case config.TransportStreamableHTTP:
		return newHTTPCaller(ctx, httpOptions{Endpoint: sc.URL})
	default:
		return nil, agenterr.Errorf(agenterr.MCPConnectFailed, "unsupported transport %q for server %q", transport, name)
	}
}

// ProviderToolShape is a tool adapted to the JSON-Schema function-declaration
// shape most LLM providers expect.
type ProviderToolShape struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ListTools returns the full catalog adapted to the provider function-call
// shape, truncated to maxProviderTools entries for providers that enforce
// such a cap.
func (m *Manager) ListTools() []ProviderToolShape {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.tools)
	if n > maxProviderTools {
		n = maxProviderTools
	}
	out := make([]ProviderToolShape, 0, n)
	for i := 0; i < n; i++ {
		t := m.tools[i]
		out = append(out, ProviderToolShape{
			Name:        t.SanitizedName,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}

// Tools returns the full, untruncated Tool catalog.
func (m *Manager) Tools() []Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Tool, len(m.tools))
	copy(out, m.tools)
	return out
}

// Servers returns the names of every server a Connect call successfully
// dialed, sorted by name.
func (m *Manager) Servers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byServer))
	for name := range m.callers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Lookup resolves a sanitized name to its Tool record, or false if unknown.
func (m *Manager) Lookup(sanitizedName string) (Tool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tools {
		if t.SanitizedName == sanitizedName {
			return t, true
		}
	}
	return Tool{}, false
}

// Call resolves sanitizedName to {server, original_name} and dispatches the
// call, validating args against the tool's input_schema first when one is
// declared. Fails with agenterr.ToolNotFound if lookup misses either by
// sanitized name or by the (server, original) reverse mapping.
func (m *Manager) Call(ctx context.Context, sanitizedName string, args json.RawMessage) (ToolCallResult, error) {
	if m.testHook != nil {
		return m.testHook(sanitizedName, args)
	}
	m.mu.RLock()
	r, ok := m.routes[sanitizedName]
	var c caller
	var schema json.RawMessage
	if ok {
		c, ok = m.callers[r.server]
		for _, t := range m.tools {
			if t.SanitizedName == sanitizedName {
				schema = t.InputSchema
				break
			}
		}
	}
	m.mu.RUnlock()
	if !ok {
		return ToolCallResult{}, agenterr.Errorf(agenterr.ToolNotFound, "no mcp tool registered for %q", sanitizedName)
	}
	if len(schema) > 0 {
		if err := validateAgainstSchema(schema, args); err != nil {
			return ToolCallResult{}, agenterr.Wrap(agenterr.ToolNotFound, fmt.Sprintf("arguments for %q failed schema validation", sanitizedName), err)
		}
	}
	return c.CallTool(ctx, r.original, args)
}

// validateAgainstSchema compiles schemaBytes as a JSON Schema document and
// validates argsJSON against it, grounded on the teacher registry's
// validatePayloadJSONAgainstSchema helper.
func validateAgainstSchema(schemaBytes, argsJSON json.RawMessage) error {
	var schemaDoc any
	if err := json.Unmarshal(schemaBytes, &schemaDoc); err != nil {
		return fmt.Errorf("unmarshal input_schema: %w", err)
	}
	var argsDoc any
	if len(argsJSON) == 0 {
		argsDoc = map[string]any{}
	} else if err := json.Unmarshal(argsJSON, &argsDoc); err != nil {
		return fmt.Errorf("unmarshal arguments: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("input_schema.json", schemaDoc); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("input_schema.json")
	if err != nil {
		return fmt.Errorf("compile input_schema: %w", err)
	}
	return schema.Validate(argsDoc)
}

// Close tears down every connected caller.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.callers {
		_ = c.Close()
	}
}
